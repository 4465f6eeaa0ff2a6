package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/index"
	"github.com/aidanlsb/crate/internal/record"
	"github.com/aidanlsb/crate/internal/ui"
	"github.com/aidanlsb/crate/internal/watcher"
)

var indexWatch bool

var indexCmd = &cobra.Command{
	Use:   "index FILE...",
	Short: "Build the library index from YAML library files",
	Long: `Parses one or more YAML library files and rebuilds the SQLite index.

Each file may list artists (with nested albums and tracks), shows (with
seasons and episodes), movies and playlists. Files are merged in order;
a playlist repeated in a later file replaces the earlier one, and a record
key used twice is an error.

Examples:
  crate index music.yaml
  crate index music.yaml tv.yaml movies.yaml --library ./library.db
  crate index music.yaml --watch`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return handleErrorMsg(ErrMissingArgument, "no library files given", "Usage: crate index FILE...")
		}
		ctx := commandContext(cmd)
		dbPath := getConfig().LibraryPath()

		var progress io.Writer
		if !jsonOutput {
			progress = os.Stderr
		}
		var stats *index.IndexStats
		err := ui.Spin(progress, fmt.Sprintf("Indexing %d %s", len(args), ui.Pluralize("file", len(args))), func() error {
			var err error
			stats, err = buildIndex(ctx, dbPath, args)
			return err
		})
		if err != nil {
			return handleIndexError(err)
		}

		if jsonOutput {
			outputSuccess(map[string]interface{}{
				"library":    dbPath,
				"files":      args,
				"records":    stats.Records,
				"named_sets": stats.NamedSets,
				"members":    stats.Members,
			}, nil)
		} else {
			fmt.Println(ui.Successf("Indexed %d %s into %s", len(args), ui.Pluralize("file", len(args)), dbPath))
			printIndexStats(stats)
		}

		if !indexWatch {
			return nil
		}
		return watchLibrary(ctx, dbPath, args)
	},
}

// indexError carries the error code for a failed index build.
type indexError struct {
	code       string
	suggestion string
	err        error
}

func (e *indexError) Error() string { return e.err.Error() }
func (e *indexError) Unwrap() error { return e.err }

func handleIndexError(err error) error {
	var ie *indexError
	if errors.As(err, &ie) {
		return handleError(ie.code, ie.err, ie.suggestion)
	}
	return handleError(ErrInternal, err, "")
}

// buildIndex parses the library files and replaces the index contents under
// the index lock.
func buildIndex(ctx context.Context, dbPath string, files []string) (*index.IndexStats, error) {
	lock, err := index.AcquireLock(dbPath)
	if err != nil {
		if errors.Is(err, index.ErrIndexLocked) {
			return nil, &indexError{ErrIndexLocked, "Another 'crate index' is running; try again when it finishes", err}
		}
		return nil, &indexError{ErrDatabaseError, "", err}
	}
	defer func() { _ = lock.Release() }()

	lib, err := index.LoadFiles(ctx, files)
	if err != nil {
		return nil, &indexError{ErrFileReadError, "Fix the library files and run 'crate index' again", err}
	}
	log.WithField("records", len(lib.Records)).Debug("library files parsed")

	db, err := index.Open(dbPath)
	if err != nil {
		return nil, &indexError{ErrDatabaseError, "", fmt.Errorf("failed to open index: %w", err)}
	}
	defer db.Close()

	if err := db.ReplaceAll(ctx, lib); err != nil {
		return nil, &indexError{ErrDatabaseError, "", fmt.Errorf("failed to write index: %w", err)}
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		return nil, &indexError{ErrDatabaseError, "", err}
	}
	return stats, nil
}

// watchLibrary rebuilds the index whenever a library file changes, until
// the context is cancelled.
func watchLibrary(ctx context.Context, dbPath string, files []string) error {
	w, err := watcher.New(watcher.Config{
		Files:   files,
		Logger:  log,
		Rebuild: func(ctx context.Context) error {
			_, err := buildIndex(ctx, dbPath, files)
			return err
		},
		OnRebuild: func(changed []string, err error) {
			if jsonOutput {
				return
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.Error(fmt.Sprintf("Rebuild failed: %v", err)))
				return
			}
			fmt.Fprintln(os.Stderr, ui.Successf("Reindexed after %s changed", strings.Join(changed, ", ")))
		},
	})
	if err != nil {
		return handleError(ErrInvalidInput, err, "")
	}

	if !jsonOutput {
		fmt.Fprintln(os.Stderr, ui.Hint("Watching for changes (Ctrl-C to stop)"))
	}
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return handleError(ErrInternal, err, "")
	}
	return nil
}

func printIndexStats(stats *index.IndexStats) {
	kinds := make([]string, 0, len(stats.Records))
	for kind := range stats.Records {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kindOrder(kinds[i]) < kindOrder(kinds[j])
	})

	table := ui.NewTable(2)
	for _, kind := range kinds {
		n := stats.Records[kind]
		table.AddRow(ui.Bold.Render(ui.Pluralize(kind, n)), fmt.Sprintf("%d", n))
	}
	if stats.NamedSets > 0 {
		table.AddRow(ui.Bold.Render("playlist entries"), fmt.Sprintf("%d", stats.Members))
	}
	fmt.Print(table.String())
}

func kindOrder(name string) int {
	k, err := record.ParseKind(name)
	if err != nil {
		return len(record.QueryableKinds()) + 1
	}
	return int(k)
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "Keep running and reindex when a library file changes")
	rootCmd.AddCommand(indexCmd)
}
