// Package version reports build metadata for the daybook binaries.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X daybook/internal/version.Version=..." at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info is served by /api/version and printed at startup
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	BuildTime   string `json:"buildTime"`
	GoVersion   string `json:"goVersion"`
	Revision    string `json:"revision,omitempty"`
	CommittedAt string `json:"committedAt,omitempty"`
	Dirty       bool   `json:"dirty"`
}

// Get collects version information from ldflags and the embedded build info
func Get() Info {
	info := Info{
		Name:      "daybook",
		Version:   Version,
		BuildTime: BuildTime,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.CommittedAt = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// ShortRevision returns the first 8 characters of the commit hash
func (i Info) ShortRevision() string {
	if len(i.Revision) > 8 {
		return i.Revision[:8]
	}
	return i.Revision
}

func (i Info) String() string {
	parts := []string{fmt.Sprintf("%s %s", i.Name, i.Version)}
	if i.BuildTime != "unknown" {
		parts = append(parts, "built "+i.BuildTime)
	}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	if rev := i.ShortRevision(); rev != "" {
		if i.Dirty {
			rev += "-dirty"
		}
		parts = append(parts, "commit "+rev)
	}
	return strings.Join(parts, ", ")
}

// Warning describes a build that cannot be traced back to a clean commit, or ""
func (i Info) Warning() string {
	switch {
	case i.Dirty:
		return "binary built from a modified source tree"
	case i.Revision == "" && i.Version == "dev":
		return "no version control information (development build)"
	}
	return ""
}
