package version

import (
	"fmt"
	"runtime"
)

// Version information - using semantic versioning
const (
	Major      = 0
	Minor      = 3
	Patch      = 0
	PreRelease = "" // e.g., "alpha", "beta", "rc1"
	Name       = "nftminter"
)

// Set at build time with -ldflags "-X".
var (
	GitCommit = ""
	BuildDate = ""
)

// Version returns the semantic version string
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		version += "-" + PreRelease
	}
	return version
}

// BuildInfo contains comprehensive build information
type BuildInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	PreRelease string `json:"pre_release,omitempty"`
	GitCommit  string `json:"git_commit,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// GetBuildInfo returns complete build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Name:       Name,
		Version:    Version(),
		PreRelease: PreRelease,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersionString returns the version with the short commit when known.
func GetVersionString() string {
	info := GetBuildInfo()
	if len(info.GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
	}
	return info.Version
}

// GetFullVersionString returns a complete version string with build info
func GetFullVersionString() string {
	info := GetBuildInfo()
	result := fmt.Sprintf("%s v%s", info.Name, info.Version)
	if len(info.GitCommit) >= 7 {
		result += fmt.Sprintf(" (commit: %s)", info.GitCommit[:7])
	}
	if info.BuildDate != "" {
		result += fmt.Sprintf(" (built: %s)", info.BuildDate)
	}
	result += fmt.Sprintf(" (go: %s, platform: %s)", info.GoVersion, info.Platform)
	return result
}
