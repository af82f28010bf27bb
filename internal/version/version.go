package version

import (
	"runtime/debug"
	"strings"
)

// Set at link time by release builds.
var (
	Version = "0.1.0"
	Commit  = ""
)

// Resolve returns Version, suffixed with the VCS revision recorded in the
// build info when the binary was not produced by a release build.
func Resolve() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(Version, Commit, info)
}

func resolveVersion(base, commit string, info *debug.BuildInfo) string {
	if base == "" {
		base = "0.0.0"
	}
	if commit != "" {
		return base
	}

	revision, modified := vcsState(info)
	if revision == "" {
		return base
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}

	suffix := revision
	if modified {
		suffix += "-dirty"
	}
	return base + "-" + suffix
}

func vcsState(info *debug.BuildInfo) (revision string, modified bool) {
	if info == nil {
		return "", false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = strings.TrimSpace(setting.Value)
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, modified
}
