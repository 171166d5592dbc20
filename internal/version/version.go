// Package version provides build-time version information for mixarr.
//
// Version, Commit, and Date are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/mixarr/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/mixarr/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/mixarr/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// ApplicationName is the canonical application name, used in CLI
// output and HTTP User-Agent strings.
const ApplicationName = "mixarr"

// Injected via ldflags; defaults describe an untagged dev build.
var (
	// Version follows SemVer 2.0.0. Releases look like "1.2.3";
	// snapshots like "1.2.4-SNAPSHOT.abc1234".
	Version = "dev"
	// Commit is the full git commit SHA.
	Commit = "unknown"
	// Date is the build timestamp in RFC3339.
	Date = "unknown"
)

// GoVersion is the Go toolchain the binary was built with.
var GoVersion = runtime.Version()

// Info is the structured form of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo collects the build metadata.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// shortCommit abbreviates the commit SHA, or returns "" when the build
// carries no usable commit.
func shortCommit() string {
	if Commit == "unknown" || len(Commit) < 8 {
		return ""
	}
	return Commit[:8]
}

// String returns the full human-readable version line.
func String() string {
	info := GetInfo()
	if sc := shortCommit(); sc != "" {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, sc, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)",
		ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the compact form used for --version output.
func Short() string {
	if sc := shortCommit(); sc != "" {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, sc)
	}
	return ApplicationName + " " + Version
}

// UserAgent returns the User-Agent value for outbound HTTP requests.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// IsSnapshot reports whether this is a dev or snapshot build.
func IsSnapshot() bool {
	return Version == "dev" || strings.Contains(Version, "-SNAPSHOT")
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return !IsSnapshot()
}
