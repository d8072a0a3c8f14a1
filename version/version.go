// Package version holds build metadata injected at link time.
package version

import "runtime"

// Populated via -ldflags at build time, e.g.:
//
//	-X github.com/jackzampolin/distill/version.GitRelease=v0.3.0
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go runtime the binary was built with.
var GoInfo = runtime.Version()
