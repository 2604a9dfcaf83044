// Package buildinfo reports the partest version stamped in at link time.
//
//	go build -ldflags "-X github.com/AbdelazizMoustafa10m/partest/internal/buildinfo.Version=1.2.0"
package buildinfo

// Set with -ldflags -X.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
