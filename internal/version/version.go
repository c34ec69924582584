// Package version holds build metadata injected via ldflags.
package version

// Service names this binary in log output and health payloads.
const Service = "phytodex"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
