// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origInfo = *buildInfo

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildInfo = origInfo

	os.Exit(exitCode)
}

func resetInfo() {
	buildInfo = &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     devVersion,
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErr     bool
		wantName    string
		wantVersion string
	}{
		{"Development build", "", "", "", "", false, defaultName, devVersion},
		{"Release build", "np", "2025-04-13T10:00:00Z", "abcdef1", "0.3.0", false, "np", "0.3.0"},
		{"Partial flags keep defaults", "", "", "abcdef1", "0.3.1", false, defaultName, "0.3.1"},
		{"Malformed build time", "np", "2025-04-13", "abcdef1", "0.3.0", true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetInfo()
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Initialize() expected error, got nil")
				}
				if !strings.Contains(err.Error(), "RFC3339") {
					t.Errorf("Initialize() error = %v, want RFC3339 hint", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			info := GetBuildInfo()
			if info.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", info.Name, tt.wantName)
			}
			if info.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", info.Version, tt.wantVersion)
			}
			if IsDev() != (tt.wantVersion == devVersion) {
				t.Errorf("IsDev() = %v for version %q", IsDev(), tt.wantVersion)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := &Info{Name: "np", Version: "0.3.0", Commit: "abc", Time: "2025-04-13T10:00:00Z"}
	want := "np 0.3.0 (abc, built 2025-04-13T10:00:00Z)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
