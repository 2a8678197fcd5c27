// Package vars holds build-time variables populated via the linker (ldflags).
//
//	go build -ldflags "-X github.com/woozymasta/lmsbridge/internal/vars.Version=v0.1.0 \
//	  -X github.com/woozymasta/lmsbridge/internal/vars._buildTime=2026-01-01T00:00:00Z"
package vars

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "lmsbridge"

	// Version is the git tag the binary was built from
	Version = "dev"

	// Commit is the full or short git SHA
	Commit = "unknown"

	// Revision is the commit count
	Revision = 0

	// BuildTime in UTC
	BuildTime = time.Unix(0, 0).UTC()

	// URL of the repository
	URL = "https://github.com/woozymasta/lmsbridge"

	// string forms set by ldflags, parsed in init
	_revision  string
	_buildTime string
)

// BuildInfo is the build metadata served by the version endpoint.
type BuildInfo struct {
	// betteralign:ignore

	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	CommitShort string    `json:"commit_short,omitempty"`
	Revision    int       `json:"revision,omitempty"`
	BuildTime   time.Time `json:"build_time,omitempty"`
	URL         string    `json:"url,omitempty"`
	License     string    `json:"license,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		BuildTime = t.UTC()
	}
}

// Info returns the build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		URL:         URL,
		License:     License,
	}
}

// Fprint writes the build information as aligned "key: value" lines.
func Fprint(w io.Writer) {
	info := Info()

	rows := []struct {
		key   string
		value any
	}{
		{"name", info.Name},
		{"url", info.URL},
		{"version", info.Version},
		{"commit", info.Commit},
		{"revision", info.Revision},
		{"built", info.BuildTime.Format(time.RFC3339)},
		{"license", info.License},
	}

	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%-9s %v\n", row.key+":", row.value)
	}
}

// String returns a one-line "name version (commit)" summary used in startup logs.
func String() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, CommitShort())
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
