package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/index"
	"github.com/aidanlsb/crate/internal/lastresults"
	"github.com/aidanlsb/crate/internal/record"
	"github.com/aidanlsb/crate/internal/shellquote"
	"github.com/aidanlsb/crate/internal/ui"
)

var playlistsMatch string

type playlistSummary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

var playlistsCmd = &cobra.Command{
	Use:   "playlists [NAME]",
	Short: "List playlists, or the members of one playlist",
	Long: `Without NAME, lists every playlist with its member count.
With NAME, lists the playlist's members in playlist order.

Examples:
  crate playlists
  crate playlists --match '^Road'
  crate playlists "Road Trip"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		dbPath := getConfig().LibraryPath()
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return handleErrorMsg(ErrDatabaseError, fmt.Sprintf("library index not found: %s", dbPath), "Run 'crate index FILE...' to build it")
		}
		db, err := index.Open(dbPath)
		if err != nil {
			return handleError(ErrDatabaseError, fmt.Errorf("failed to open index: %w", err), "")
		}
		defer db.Close()

		if len(args) == 1 {
			return showPlaylist(cmd, db, args[0])
		}

		var names []string
		if playlistsMatch != "" {
			names, err = db.MatchNamedSets(ctx, playlistsMatch)
			if err != nil {
				return handleError(ErrInvalidInput, err, "--match takes a regular expression")
			}
		} else {
			names, err = db.NamedSets(ctx)
			if err != nil {
				return handleError(ErrDatabaseError, err, "")
			}
		}

		summaries := make([]playlistSummary, 0, len(names))
		for _, name := range names {
			keys, err := db.NamedSetMembers(ctx, name)
			if err != nil {
				return handleError(ErrDatabaseError, err, "")
			}
			summaries = append(summaries, playlistSummary{Name: name, Members: len(keys)})
		}

		if jsonOutput {
			outputSuccess(map[string]interface{}{"playlists": summaries}, &Meta{Count: len(summaries)})
			return nil
		}

		if len(summaries) == 0 {
			fmt.Println(ui.Hint("No playlists found"))
			return nil
		}
		rows := make([]ui.NamedSetRow, len(summaries))
		for i, s := range summaries {
			rows[i] = ui.NamedSetRow{Num: i + 1, Name: s.Name, Members: s.Members}
		}
		fmt.Print(ui.RenderNamedSets(ui.TermWidth(), rows))
		return nil
	},
}

func showPlaylist(cmd *cobra.Command, db *index.Database, name string) error {
	ctx := commandContext(cmd)
	keys, err := db.NamedSetMembers(ctx, name)
	if err != nil {
		if errors.Is(err, record.ErrNamedSetNotFound) {
			return handleError(ErrUnknownNamedSet, err, "Run 'crate playlists' to list playlist names")
		}
		return handleError(ErrDatabaseError, err, "")
	}
	members, err := db.Lookup(ctx, keys)
	if err != nil {
		return handleError(ErrDatabaseError, err, "")
	}

	rememberResults(getConfig().LibraryPath(), lastresults.New(lastresults.SourcePlaylist, record.KindGeneric, name, members))

	if jsonOutput {
		outputSuccess(map[string]interface{}{
			"name":    name,
			"keys":    keys,
			"records": members,
		}, &Meta{Count: len(members)})
		return nil
	}

	fmt.Println(ui.Header(name) + " " + ui.Count(len(members), "item", "items"))
	if len(members) == 0 {
		return nil
	}
	rows := make([]ui.RecordRow, len(members))
	for i, r := range members {
		rows[i] = recordRow(i+1, r.Kind(), r)
	}
	fmt.Print(ui.RenderRecords(ui.TermWidth(), len(members), rows))
	fmt.Println(ui.Hint("Filter it: " + shellquote.Command("query", "tracks", "in_playlist = "+name)))
	return nil
}

func init() {
	playlistsCmd.Flags().StringVar(&playlistsMatch, "match", "", "Only list playlists whose name matches this regular expression")
	rootCmd.AddCommand(playlistsCmd)
}
