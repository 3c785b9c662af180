// Package version reports build metadata for the Chartfy backend.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build metadata. Override with -ldflags "-X .../version.Version=...".
var (
	Name      = "Chartfy"
	Version   = "0.3.0"
	BuildTime = ""
	GitCommit = ""
)

const projectURL = "https://github.com/edumarques81/chartfy-backend"

// Info describes the running binary. It is served by /api/v1/version.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
}

// GetInfo returns the build metadata. Values missing from -ldflags are
// filled from the VCS stamp the Go toolchain embeds.
func GetInfo() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.applyVCS(bi.Settings)
	}
	return info
}

func (i *Info) applyVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "" {
				i.GitCommit = s.Value
			}
		case "vcs.time":
			if i.BuildTime == "" {
				i.BuildTime = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

// UserAgent is sent to Last.fm, Spotify and artwork hosts.
func (i Info) UserAgent() string {
	return fmt.Sprintf("%s/%s (+%s)", i.Name, i.Version, projectURL)
}

// ShortCommit is the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.GitCommit) > 7 {
		return i.GitCommit[:7]
	}
	return i.GitCommit
}

// String is the banner form, e.g. "Chartfy v0.3.0 (0123456-dirty) built 2026-01-02".
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if commit := i.ShortCommit(); commit != "" {
		if i.Modified {
			commit += "-dirty"
		}
		s += fmt.Sprintf(" (%s)", commit)
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}
