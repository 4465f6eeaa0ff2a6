package cli

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/aidanlsb/crate/internal/index"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	t.Cleanup(func() { readBuildInfo = prev })
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestCurrentVersionInfo(t *testing.T) {
	tests := []struct {
		name string
		bi   *debug.BuildInfo
		want versionInfo
	}{
		{
			name: "release build",
			bi: &debug.BuildInfo{
				GoVersion: "go1.24.2",
				Main:      debug.Module{Path: "github.com/aidanlsb/crate", Version: "v0.4.0"},
				Deps:      []*debug.Module{{Path: "modernc.org/sqlite", Version: "v1.29.1"}},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abc123"},
					{Key: "vcs.time", Value: "2026-09-30T08:00:00Z"},
					{Key: "vcs.modified", Value: "true"},
					{Key: "GOOS", Value: "linux"},
					{Key: "GOARCH", Value: "arm64"},
				},
			},
			want: versionInfo{
				Version:      "v0.4.0",
				Commit:       "abc123",
				Built:        "2026-09-30T08:00:00Z",
				Dirty:        true,
				GoVersion:    "go1.24.2",
				Platform:     "linux/arm64",
				SQLiteDriver: "v1.29.1",
				IndexSchema:  index.CurrentDBVersion,
			},
		},
		{
			name: "replaced sqlite driver",
			bi: &debug.BuildInfo{
				GoVersion: "go1.24.2",
				Main:      debug.Module{Version: "(devel)"},
				Deps: []*debug.Module{{
					Path:    "modernc.org/sqlite",
					Version: "v1.29.1",
					Replace: &debug.Module{Path: "modernc.org/sqlite", Version: "v1.30.0"},
				}},
			},
			want: versionInfo{
				Version:      "devel",
				GoVersion:    "go1.24.2",
				Platform:     runtime.GOOS + "/" + runtime.GOARCH,
				SQLiteDriver: "v1.30.0",
				IndexSchema:  index.CurrentDBVersion,
			},
		},
		{
			name: "no build info",
			want: versionInfo{
				Version:     "devel",
				GoVersion:   runtime.Version(),
				Platform:    runtime.GOOS + "/" + runtime.GOARCH,
				IndexSchema: index.CurrentDBVersion,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubBuildInfo(t, tt.bi)
			if got := currentVersionInfo(); got != tt.want {
				t.Errorf("currentVersionInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCurrentVersionInfoLdflags(t *testing.T) {
	stubBuildInfo(t, nil)
	prevVersion, prevCommit, prevDate := releaseVersion, releaseCommit, releaseDate
	t.Cleanup(func() {
		releaseVersion, releaseCommit, releaseDate = prevVersion, prevCommit, prevDate
	})
	releaseVersion, releaseCommit, releaseDate = "v0.5.0", "feedface", "2026-10-01"

	info := currentVersionInfo()
	if info.Version != "v0.5.0" || info.Commit != "feedface" || info.Built != "2026-10-01" {
		t.Errorf("ldflags not applied: %+v", info)
	}
}

func TestVersionCommandJSONOutput(t *testing.T) {
	prevJSON := jsonOutput
	t.Cleanup(func() { jsonOutput = prevJSON })
	jsonOutput = true

	stubBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.24.2",
		Main:      debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeef"},
			{Key: "GOOS", Value: "darwin"},
			{Key: "GOARCH", Value: "arm64"},
		},
	})

	out := captureStdout(t, func() {
		if err := versionCmd.RunE(versionCmd, nil); err != nil {
			t.Fatalf("versionCmd.RunE: %v", err)
		}
	})

	var resp struct {
		OK   bool        `json:"ok"`
		Data versionInfo `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("expected JSON output, got parse error: %v; out=%s", err, out)
	}
	if !resp.OK {
		t.Fatalf("expected ok=true; out=%s", out)
	}
	if resp.Data.Version != "devel" || resp.Data.Commit != "deadbeef" {
		t.Errorf("data = %+v", resp.Data)
	}
	if resp.Data.Platform != "darwin/arm64" {
		t.Errorf("Platform = %q, want darwin/arm64", resp.Data.Platform)
	}
}
