// Package version exposes the build's version and commit.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit are set at release time via ldflags
// (-X github.com/muurk/devtree/internal/version.Version=v1.2.3). Unset
// values are filled from the binary's VCS build info, falling back to
// dev placeholders.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo()
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	var revision, modified, vcsTime string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}
	if Commit == "" && revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		Commit = revision
		if modified == "true" {
			Commit += "-dirty"
		}
	}
	// Build info carries no tags, so derive a dev version from the
	// commit time when one is available.
	if Version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version and commit as one display string.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
