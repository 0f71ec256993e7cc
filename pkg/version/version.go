// Package version exposes the build version reported by the API, the
// User-Agent of outbound requests, and the startup banner.
package version

// Version is the semantic version of this build.
const Version = "0.9.2"

// UserAgent identifies this build on outbound provider requests.
func UserAgent() string {
	return "SkyRoute Dispatch Service (SkyRoute/" + Version + ")"
}
