// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at link time:
//
//	go build -ldflags "-X nowplaying/pkg/build.buildVersion=0.3.0 \
//	  -X nowplaying/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X nowplaying/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unlike a release build, a development build (go run, go test) carries no
// flags at all, so every field falls back to a usable default instead of
// failing startup.
package build

import (
	"fmt"
	"time"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

const (
	defaultName        = "nowplaying"
	defaultDescription = "Live loopback spectrum and now-playing session feed"
	devVersion         = "dev"
)

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     devVersion,
	}
)

// Initialize copies the ldflags variables into the build info. Empty flags
// keep their development defaults. A build time that is set but not RFC3339
// is rejected, since it indicates a broken release pipeline.
func Initialize() error {
	if buildTime != "" {
		if _, err := time.Parse(time.RFC3339, buildTime); err != nil {
			return fmt.Errorf("build time %q is not RFC3339: %w", buildTime, err)
		}
		buildInfo.Time = buildTime
	}
	if buildName != "" {
		buildInfo.Name = buildName
	}
	if buildCommit != "" {
		buildInfo.Commit = buildCommit
	}
	if buildVersion != "" {
		buildInfo.Version = buildVersion
	}
	return nil
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}

// IsDev reports whether the binary was built without a version flag.
func IsDev() bool {
	return buildInfo.Version == devVersion
}

// String renders a one-line version banner, e.g. "nowplaying 0.3.0 (abc123)".
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (%s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
