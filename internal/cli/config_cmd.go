package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/config"
	"github.com/aidanlsb/crate/internal/ui"
)

// configFile is a config loaded for editing, which may not exist on disk yet.
type configFile struct {
	path   string
	exists bool
	cfg    *config.Config
}

func openConfigFile() (*configFile, error) {
	path := config.ResolveConfigPath(configPath)
	_, statErr := os.Stat(path)
	if statErr != nil && !os.IsNotExist(statErr) {
		return nil, statErr
	}
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, err
	}
	return &configFile{path: path, exists: statErr == nil, cfg: cfg}, nil
}

func (f *configFile) values() map[string]string {
	out := make(map[string]string)
	for _, s := range config.Settings() {
		out[s.Key] = s.Get(f.cfg)
	}
	return out
}

func (f *configFile) data(changed []string) map[string]interface{} {
	data := map[string]interface{}{
		"config_path": f.path,
		"exists":      f.exists,
		"settings":    f.values(),
	}
	if changed != nil {
		data["changed"] = changed
	}
	return data
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	f, err := openConfigFile()
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}

	if len(args) == 1 {
		s, err := config.LookupSetting(args[0])
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"key": s.Key, "value": s.Get(f.cfg)}, nil)
			return nil
		}
		fmt.Println(s.Get(f.cfg))
		return nil
	}

	if isJSONOutput() {
		outputSuccess(f.data(nil), nil)
		return nil
	}

	if f.exists {
		fmt.Println(ui.Header(f.path))
	} else {
		fmt.Println(ui.Header(f.path) + " " + ui.Hint("(not created; run 'crate config init')"))
	}
	table := ui.NewTable(2)
	for _, s := range config.Settings() {
		v := s.Get(f.cfg)
		if v == "" {
			v = ui.Muted.Render("-")
		}
		table.AddRow(s.Key, v)
	}
	fmt.Print(table.String())
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit config.toml",
	Long: `Show or edit the crate config.toml.

Settings are addressed by dotted key. Values shown include defaults.

Examples:
  crate config
  crate config show dedup.singles
  crate config set query.timeout 30s
  crate config unset query.timeout dedup.fuzzy`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show [KEY]",
	Short: "Show all settings, or one setting's value",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config.toml if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openConfigFile()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		created, err := config.CreateDefault(f.path)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"config_path": created,
				"created":     !f.exists,
			}, nil)
			return nil
		}
		if f.exists {
			fmt.Println(ui.Hint("Config already exists: " + created))
		} else {
			fmt.Println(ui.Successf("Created %s", created))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE [KEY VALUE...]",
	Short: "Set one or more settings",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected KEY VALUE pairs, got %d argument(s)", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openConfigFile()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		changed := make([]string, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			s, err := config.LookupSetting(args[i])
			if err != nil {
				return handleError(ErrInvalidInput, err, "Run 'crate config' to list keys")
			}
			if err := s.Set(f.cfg, args[i+1]); err != nil {
				return handleError(ErrInvalidInput, err, s.Usage)
			}
			changed = append(changed, s.Key)
		}
		return saveConfigFile(f, changed, "set")
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset KEY...",
	Short: "Restore settings to their defaults",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openConfigFile()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		if !f.exists {
			return handleErrorMsg(ErrFileReadError, fmt.Sprintf("config file not found: %s", f.path), "Run 'crate config init' first")
		}

		changed := make([]string, 0, len(args))
		for _, key := range args {
			s, err := config.LookupSetting(key)
			if err != nil {
				return handleError(ErrInvalidInput, err, "Run 'crate config' to list keys")
			}
			s.Unset(f.cfg)
			changed = append(changed, s.Key)
		}
		return saveConfigFile(f, changed, "cleared")
	},
}

func saveConfigFile(f *configFile, changed []string, verb string) error {
	if err := config.SaveTo(f.path, f.cfg); err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	f.exists = true

	if isJSONOutput() {
		outputSuccess(f.data(changed), nil)
		return nil
	}
	fmt.Println(ui.Successf("Updated %s", f.path))
	fmt.Printf("%s: %s\n", verb, strings.Join(changed, ", "))
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
