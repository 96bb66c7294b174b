// Package version carries the build metadata of the foldersync binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	devVersion  = "0.1.0-dev"
	devRevision = "HEAD"
)

var (
	// Name of the application
	AppName = "foldersync"

	// Version of the application, set with -ldflags on release builds
	Version = devVersion

	// Git commit hash of the application
	Revision = devRevision

	// Build date of the application
	BuildDate = ""
)

// applyBuildInfo fills in whatever -ldflags left at its development default.
func applyBuildInfo(mainVersion string, settings map[string]string) {
	if Version == devVersion || Version == "" {
		if v := mainVersion; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	if Revision == devRevision || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

func resolveFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	applyBuildInfo(info.Main.Version, settings)
}

// Short returns a concise version string - `0.1.0 (5e23a4)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// ShortWithApp returns the short version prefixed with the application name - `foldersync 0.1.0 (5e23a4)`
func ShortWithApp() string {
	return AppName + " " + Short()
}

// Detailed returns a detailed version string - `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2025-01-01T00:00:00Z)`
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, BuildDate)
}

func init() {
	resolveFromBuildInfo()
	if BuildDate == "" {
		BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
}
