// Package cli implements the command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/config"
	"github.com/aidanlsb/crate/internal/ui"
)

var (
	// Global flags
	configPath  string
	libraryFlag string
	verbose     bool

	// Resolved values
	resolvedConfigPath string
	cfg                *config.Config

	log = newLogger()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crate",
	Short: "crate - filter queries over a media library",
	Long: `crate indexes a media library (artists, albums, tracks, shows, seasons,
episodes, movies and playlists) and answers filter queries against it.

Queries are compact clause lists such as 'artist = Queen rating >= 8'.
Run 'crate syntax' for the full language reference.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}

		// Skip config loading for commands that don't need it
		switch cmd.Name() {
		case "completion", "help", "version":
			return nil
		}
		if cmd.Parent() != nil && (cmd.Parent().Name() == "completion" || cmd.Parent().Name() == "config") {
			return nil
		}

		var err error
		resolvedConfigPath = config.ResolveConfigPath(configPath)
		cfg, err = config.LoadPath(resolvedConfigPath)
		if err != nil {
			return handleError(ErrConfigInvalid, fmt.Errorf("failed to load config: %w", err), "Run 'crate config show' to inspect it")
		}
		if libraryFlag != "" {
			cfg.Library = libraryFlag
		}
		ui.ConfigureTheme(cfg.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)

		log.WithFields(logrus.Fields{
			"config":  resolvedConfigPath,
			"library": cfg.LibraryPath(),
		}).Debug("configuration loaded")
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with ctx, which cancels in-flight queries when done.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&libraryFlag, "library", "", "Path to the library index (overrides library in config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug details to stderr")
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}

// commandContext returns the command's context, or a background context when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
