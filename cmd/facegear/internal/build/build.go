// Package build holds version information stamped at build time, e.g.:
//
//	go build -ldflags "-X github.com/littleai/facegear/cmd/facegear/internal/build.Version=v0.3.0"
package build

import (
	"fmt"
	"runtime"
)

// Set via -ldflags; defaults describe a local dev build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats a one-line version banner.
func String() string {
	return fmt.Sprintf("facegear %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
