package jailkit

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	//go:embed VERSION
	version string
	// revOverride replaces the VCS revision when builds happen outside a
	// checkout (release tarballs).
	//go:embed REV_OVERRIDE
	revOverride string
)

// Version returns the jailkit version, the revision it was built from, and
// the versions of its dependencies.
func Version() string {
	v := strings.TrimSpace(version)
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v + " (unknown)"
	}

	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%s (%s)\n", v, revision(bi))
	sb.WriteString("go: " + bi.GoVersion)
	for _, dep := range bi.Deps {
		fmt.Fprintf(&sb, "\n%s: %s", dep.Path, dep.Version)
	}
	return sb.String()
}

func revision(bi *debug.BuildInfo) string {
	if o := strings.TrimSpace(revOverride); o != "" {
		return o
	}
	rev := ""
	dirty := false
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		rev += "*"
	}
	return rev
}
