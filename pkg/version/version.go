// Package version exposes build metadata.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/NERVsystems/roadoverlay/pkg/version.BuildVersion=..."
var (
	BuildVersion = "0.1.0"
	BuildCommit  = ""
	BuildDate    = ""
)

// Info returns version details merged with VCS data from the build.
func Info() map[string]string {
	info := map[string]string{
		"version":    BuildVersion,
		"go_version": runtime.Version(),
		"commit":     BuildCommit,
		"build_date": BuildDate,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info["commit"] == "" {
					info["commit"] = s.Value
				}
			case "vcs.time":
				if info["build_date"] == "" {
					info["build_date"] = s.Value
				}
			}
		}
	}

	return info
}

// String returns a one-line version description.
func String() string {
	i := Info()
	s := "roadoverlay " + i["version"]
	if c := i["commit"]; c != "" {
		if len(c) > 12 {
			c = c[:12]
		}
		s += " (" + c + ")"
	}
	return s + " " + i["go_version"]
}
