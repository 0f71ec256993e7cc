// Converts a shapefile of restricted areas into the no-fly zones
// GeoJSON the dispatch server loads. Points become circles with a fixed
// radius; polygons are kept whole and reduced to their circumscribed
// circle at load time.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outputPath := flag.String("output", "", "Path to output zones .geojson file")
	nameField := flag.String("name-field", "name", "Attribute carrying the zone name")
	category := flag.String("category", "", "Category stamped on every zone")
	radiusM := flag.Float64("radius", 500, "Radius in meters for point shapes")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	if err := run(*inputPath, *outputPath, *nameField, *category, *radiusM); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outputPath, nameField, category string, radiusM float64) error {
	shape, err := shp.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	// Locate the name attribute once; -1 means the file has none.
	nameIdx := -1
	for i, f := range shape.Fields() {
		if strings.EqualFold(f.String(), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		log.Printf("Attribute %q not found, zones will be unnamed", nameField)
	}

	fc := geojson.NewFeatureCollection()
	skipped := 0

	for shape.Next() {
		n, p := shape.Shape()

		var f *geojson.Feature
		switch s := p.(type) {
		case *shp.Null:
			continue
		case *shp.Point:
			f = geojson.NewFeature(orb.Point{s.X, s.Y})
			f.Properties["radius_m"] = radiusM
		case *shp.Polygon:
			f = geojson.NewFeature(convertPolygon(s))
		default:
			// A zone needs an area; lines cannot hold one.
			log.Printf("Skipping unsupported shape type: %T", p)
			skipped++
			continue
		}

		f.Properties["id"] = fmt.Sprintf("shp-%d", n)
		if nameIdx >= 0 {
			f.Properties["name"] = shape.ReadAttribute(n, nameIdx)
		}
		if category != "" {
			f.Properties["category"] = category
		}

		fc.Append(f)
	}

	if err := shape.Err(); err != nil {
		return fmt.Errorf("error iterating shapes: %w", err)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Converted %d zones to %s (%d shapes skipped)\n", len(fc.Features), outputPath, skipped)
	return nil
}

func convertPolygon(s *shp.Polygon) orb.Polygon {
	// All parts become rings of a single polygon.
	var poly orb.Polygon

	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}

		var ring orb.Ring
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		poly = append(poly, ring)
	}
	return poly
}
