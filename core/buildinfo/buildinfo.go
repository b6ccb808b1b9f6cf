// Package buildinfo carries version metadata stamped by the linker:
//
//	go build -ldflags "-X 'github.com/m3rciful/tgscreens/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/m3rciful/tgscreens/core/buildinfo.Commit=abcdef0'"
package buildinfo

import "fmt"

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders version metadata for startup logs and the metrics build label.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
