// Package version exposes the build metadata stamped into the importerd
// binary at link time.
package version

import (
	"fmt"
	"runtime"
)

// Overridden via -ldflags "-X .../version.Version=v1.2.3 ..." by the
// release build; a plain `go build` reports a dev binary.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Info is the full build description, as reported by `importerd version`
// and the /health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get collects the stamped variables plus the runtime's own details.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("importerd %s (commit %s, built %s)", i.Version, i.Commit, i.BuildTime)
}
