// Package version holds storyqa build information, injected with
// -ldflags "-X storyqa/pkg/version.Version=v1.2.3".
package version

import "fmt"

//nolint:gochecknoglobals // set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build information for --version and logs.
func String() string {
	if Commit == "none" && Date == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
