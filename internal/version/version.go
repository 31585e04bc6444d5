// Package version carries build identification stamped in via -ldflags.
package version

// Unstamped builds (go run, tests) report the defaults below.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
