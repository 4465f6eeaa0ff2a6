package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/index"
	"github.com/aidanlsb/crate/internal/ui"
)

// Release builds set these with
// -ldflags "-X github.com/aidanlsb/crate/internal/cli.releaseVersion=...".
var (
	releaseVersion string
	releaseCommit  string
	releaseDate    string
)

const sqliteModule = "modernc.org/sqlite"

type versionInfo struct {
	Version      string `json:"version"`
	Commit       string `json:"commit,omitempty"`
	Built        string `json:"built,omitempty"`
	Dirty        bool   `json:"dirty"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
	SQLiteDriver string `json:"sqlite_driver,omitempty"`
	IndexSchema  int    `json:"index_schema"`
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show crate version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Println(ui.Header("crate " + info.Version))
		table := ui.NewTable(2)
		if info.Commit != "" {
			commit := info.Commit
			if info.Dirty {
				commit += " (dirty)"
			}
			table.AddRow(ui.Muted.Render("commit"), commit)
		}
		if info.Built != "" {
			table.AddRow(ui.Muted.Render("built"), info.Built)
		}
		table.AddRow(ui.Muted.Render("go"), info.GoVersion)
		table.AddRow(ui.Muted.Render("platform"), info.Platform)
		if info.SQLiteDriver != "" {
			table.AddRow(ui.Muted.Render("sqlite"), info.SQLiteDriver)
		}
		table.AddRow(ui.Muted.Render("index schema"), fmt.Sprintf("v%d", info.IndexSchema))
		fmt.Print(table.String())
		return nil
	},
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:     "devel",
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		IndexSchema: index.CurrentDBVersion,
	}

	if bi, ok := readBuildInfo(); ok && bi != nil {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			info.Version = v
		}
		if bi.GoVersion != "" {
			info.GoVersion = bi.GoVersion
		}
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		if goos, goarch := settings["GOOS"], settings["GOARCH"]; goos != "" && goarch != "" {
			info.Platform = goos + "/" + goarch
		}
		info.Commit = settings["vcs.revision"]
		info.Built = settings["vcs.time"]
		info.Dirty = strings.EqualFold(settings["vcs.modified"], "true")
		for _, dep := range bi.Deps {
			if dep.Path == sqliteModule {
				info.SQLiteDriver = dep.Version
				if dep.Replace != nil {
					info.SQLiteDriver = dep.Replace.Version
				}
				break
			}
		}
	}

	if info.Version == "devel" && releaseVersion != "" {
		info.Version = releaseVersion
	}
	if info.Commit == "" {
		info.Commit = releaseCommit
	}
	if info.Built == "" {
		info.Built = releaseDate
	}
	return info
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
