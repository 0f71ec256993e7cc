package route

import (
	"container/heap"
	"context"
	"math"

	"skyroute/pkg/geo"
)

// quantKey is a discrete grid cell. Using rounded integers instead of raw
// floats keeps the visited set bounded over a continuous coordinate space.
type quantKey struct {
	lat int64
	lon int64
}

// quantizer rounds coordinates to a decimal precision derived from the grid
// resolution, so one cell never spans more than one search step.
type quantizer struct {
	factor float64
}

func newQuantizer(resolutionM float64) quantizer {
	deg := resolutionM / 111000.0
	decimals := int(math.Ceil(-math.Log10(deg)))
	if decimals < 0 {
		decimals = 0
	}
	return quantizer{factor: math.Pow(10, float64(decimals))}
}

func (q quantizer) key(p geo.Point) quantKey {
	return quantKey{
		lat: int64(math.Round(p.Lat * q.factor)),
		lon: int64(math.Round(p.Lon * q.factor)),
	}
}

// searchNode lives in the per-call arena. Parent is an arena index, -1 for
// the start node, so the expansion tree carries no pointers and no cycles.
type searchNode struct {
	pos    geo.Point
	g      float64
	h      float64
	parent int
}

// openEntry is the heap element: f ordering, then smaller h, then insertion
// order, which makes expansion fully deterministic for identical inputs.
type openEntry struct {
	node  int
	f     float64
	h     float64
	seq   int
	index int
}

type openHeap []*openEntry

func (o openHeap) Len() int { return len(o) }

func (o openHeap) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}

func (o openHeap) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}

func (o *openHeap) Push(x any) {
	e := x.(*openEntry)
	e.index = len(*o)
	*o = append(*o, e)
}

func (o *openHeap) Pop() any {
	old := *o
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*o = old[0 : n-1]
	return e
}

// compass directions as (east, north) step multipliers, clockwise from north.
var compassDirs = [8][2]float64{
	{0, 1},   // N
	{1, 1},   // NE
	{1, 0},   // E
	{1, -1},  // SE
	{0, -1},  // S
	{-1, -1}, // SW
	{-1, 0},  // W
	{-1, 1},  // NW
}

type searchResult struct {
	path       []geo.Point
	iterations int
	found      bool
}

// search runs bounded A* from start towards goal. It returns found=false on
// open-set exhaustion or when the iteration budget is hit; the caller decides
// how to degrade. Cancellation is checked once per iteration since the loop
// itself performs no I/O.
func (o *Optimizer) search(ctx context.Context, start, goal geo.Point, cons *Constraints, wx *Weather) (searchResult, error) {
	quant := newQuantizer(o.gridResolutionM)

	arena := make([]searchNode, 0, 256)
	arena = append(arena, searchNode{pos: start, g: 0, h: heuristic(start, goal), parent: -1})

	open := &openHeap{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &openEntry{node: 0, f: arena[0].g + arena[0].h, h: arena[0].h, seq: seq})

	closed := make(map[quantKey]struct{})
	bestG := map[quantKey]float64{quant.key(start): 0}

	iterations := 0
	for open.Len() > 0 && iterations < o.maxIterations {
		if err := ctx.Err(); err != nil {
			return searchResult{iterations: iterations}, err
		}
		iterations++

		entry := heap.Pop(open).(*openEntry)
		// Copy out of the arena: appends below may reallocate it.
		curPos := arena[entry.node].pos
		curG := arena[entry.node].g

		if geo.Distance(curPos, goal) < o.gridResolutionM {
			o.log.Debug("path found", "iterations", iterations, "nodes", len(arena))
			return searchResult{path: reconstruct(arena, entry.node), iterations: iterations, found: true}, nil
		}

		key := quant.key(curPos)
		if _, ok := closed[key]; ok {
			continue
		}
		closed[key] = struct{}{}

		for _, nb := range o.neighbors(curPos, cons) {
			nbKey := quant.key(nb)
			if _, ok := closed[nbKey]; ok {
				continue
			}

			tentativeG := curG + o.edgeCost(curPos, nb, cons, wx)
			if known, ok := bestG[nbKey]; ok && tentativeG >= known {
				continue
			}
			bestG[nbKey] = tentativeG

			h := heuristic(nb, goal)
			arena = append(arena, searchNode{pos: nb, g: tentativeG, h: h, parent: entry.node})
			seq++
			heap.Push(open, &openEntry{node: len(arena) - 1, f: tentativeG + h, h: h, seq: seq})
		}
	}

	o.log.Debug("search exhausted", "iterations", iterations, "open", open.Len())
	return searchResult{iterations: iterations}, nil
}

// neighbors generates the 8 compass-adjacent positions one grid step away,
// filtered by the hard constraints. Altitude is held constant across
// expansion. The longitude step widens with latitude to keep the ground
// distance near the grid resolution.
func (o *Optimizer) neighbors(p geo.Point, cons *Constraints) []geo.Point {
	latStep := o.gridResolutionM / 111000.0
	cosLat := math.Cos(p.Lat * math.Pi / 180.0)
	if cosLat < 1e-6 {
		cosLat = 1e-6 // polar guard
	}
	lonStep := o.gridResolutionM / (111000.0 * cosLat)

	out := make([]geo.Point, 0, 8)
	for _, d := range compassDirs {
		nb := geo.Point{
			Lat:  p.Lat + d[1]*latStep,
			Lon:  p.Lon + d[0]*lonStep,
			AltM: p.AltM,
		}
		if cons.Allows(nb) {
			out = append(out, nb)
		}
	}
	return out
}
