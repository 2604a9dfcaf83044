package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Info is the JSON shape of `partest version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// GetInfo returns the stamped values. When the binary was built without
// ldflags, the main module version and VCS revision recorded by the Go
// toolchain fill in for "dev" and "unknown".
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = shortRev(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		}
	}
	return info
}

func shortRev(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String formats i for `partest version`.
// Example: "partest v1.2.0 (commit: a1b2c3d, built: 2026-10-01T10:00:00Z)"
func (i Info) String() string {
	return fmt.Sprintf("partest v%s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}
