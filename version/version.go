// Package version reports build metadata for chatstream binaries.
//
// The variables are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/chatstream/version.Version=1.2.0 \
//	    -X github.com/kbukum/chatstream/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Unset values fall back to the VCS stamps embedded by the Go toolchain.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
)

// Info is the build metadata served by /info and `chatstream version`.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GitBranch string    `json:"git_branch,omitempty"`
	BuildTime string    `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"-"`
	IsRelease bool      `json:"is_release"`
	IsDirty   bool      `json:"is_dirty"`
}

// Get resolves the build metadata.
func Get() Info {
	return resolve(debug.ReadBuildInfo())
}

func resolve(bi *debug.BuildInfo, ok bool) Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildTime: BuildTime,
		IsRelease: Version != "dev" && !strings.Contains(Version, "dirty"),
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}
	if ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = shortCommit(s.Value)
				}
			case "vcs.modified":
				info.IsDirty = s.Value == "true"
			case "vcs.time":
				if info.BuildTime == "" {
					if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
						info.BuildDate = t
						info.BuildTime = s.Value
					}
				}
			}
		}
	}
	if info.IsDirty {
		info.IsRelease = false
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Short is "<version>[-<commit>][-dirty]".
func (i Info) Short() string {
	s := i.Version
	if i.GitCommit != "" {
		s += "-" + i.GitCommit
	}
	if i.IsDirty {
		s += "-dirty"
	}
	return s
}

// String is the long form printed by `chatstream version`. Mainline branches
// are omitted.
func (i Info) String() string {
	parts := []string{i.Short()}
	if i.GitBranch != "" && i.GitBranch != "main" && i.GitBranch != "master" {
		parts = append(parts, "("+i.GitBranch+")")
	}
	if !i.BuildDate.IsZero() {
		parts = append(parts, "built "+i.BuildDate.UTC().Format(time.RFC3339))
	}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	return strings.Join(parts, " ")
}

// UserAgent is the User-Agent header outbound requests carry.
func UserAgent(product string) string {
	return fmt.Sprintf("%s/%s", product, Get().Short())
}
