// Package version reports the build's version, commit, and date.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	// If version wasn't set via ldflags, try to get it from Go module info.
	// This works when installed via "go install github.com/strataorm/strata/cmd/strata@version".
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				Version = info.Main.Version
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if len(setting.Value) >= 7 {
						Commit = setting.Value[:7]
					} else {
						Commit = setting.Value
					}
				case "vcs.time":
					Date = setting.Value
				}
			}
		}
	}
}

// Info returns the full version line.
func Info() string {
	return fmt.Sprintf("strata %s (commit: %s, built: %s) %s",
		Version, Commit, Date, runtime.Version())
}

// Short returns just the version string.
func Short() string {
	return Version
}
