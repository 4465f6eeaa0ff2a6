package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/config"
	"github.com/aidanlsb/crate/internal/index"
	"github.com/aidanlsb/crate/internal/lastresults"
	"github.com/aidanlsb/crate/internal/namematch"
	"github.com/aidanlsb/crate/internal/query"
	"github.com/aidanlsb/crate/internal/record"
	"github.com/aidanlsb/crate/internal/shellquote"
	"github.com/aidanlsb/crate/internal/ui"
)

var (
	queryTitle             string
	queryAllowInst         bool
	queryUnique            bool
	queryNoRated           bool
	queryNoLatest          bool
	querySingles           bool
	queryNoFuzzy           bool
	queryExcludeRatedDupes bool
	queryTimeout           string
	queryLimit             int
)

var queryCmd = &cobra.Command{
	Use:   "query KIND [QUERY...]",
	Short: "Run a filter query against the library",
	Long: `Returns the records of KIND that match every clause of QUERY.

KIND is one of artist, album, track, show, season, episode, movie or
playlist (plurals work too). The query words are joined with spaces, so
quoting the whole query is optional.

Run 'crate syntax' for the full language reference.

Examples:
  crate query tracks artist = Queen rating >= 8
  crate query tracks "in_playlist = Road Trip" --unique
  crate query albums genre in Pop Rock year < 1995
  crate query tracks -t bohemian --allow-inst
  crate query episodes show ~ office`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	kind, err := record.ParseKind(args[0])
	if err != nil {
		return handleError(ErrInvalidInput, err, "")
	}
	q := joinQueryArgs(args[1:])
	c := getConfig()

	timeout, err := resolveQueryTimeout(c, cmd.Flags().Changed("timeout"), queryTimeout)
	if err != nil {
		return handleError(ErrInvalidInput, err, "Use a duration such as 30s or 2m")
	}

	dbPath := c.LibraryPath()
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return handleErrorMsg(ErrDatabaseError, fmt.Sprintf("library index not found: %s", dbPath), "Run 'crate index FILE...' to build it")
	}
	db, err := index.Open(dbPath)
	if err != nil {
		return handleError(ErrDatabaseError, fmt.Errorf("failed to open index: %w", err), "")
	}
	defer db.Close()

	engine, err := newEngine(db, c)
	if err != nil {
		return handleError(ErrInternal, err, "")
	}

	ctx := commandContext(cmd)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	popts := query.ParseOptions{
		Title:             queryTitle,
		AllowInstrumental: queryAllowInst || c.Query.AllowInstrumental,
	}
	sopts := query.SearchOptions{
		ExcludeRatedDupes: queryExcludeRatedDupes || c.Query.ExcludeRatedDupes,
	}

	start := time.Now()
	rs, err := engine.Query(ctx, kind, q, popts, sopts)
	if err != nil {
		return handleQueryError(err)
	}
	if queryUnique {
		rs = rs.Dedup(dedupPolicy(c.Dedup), namematch.New())
	}
	elapsed := time.Since(start).Milliseconds()

	records := rs.Records()
	if queryLimit > 0 && len(records) > queryLimit {
		records = records[:queryLimit]
	}
	log.WithField("results", rs.Len()).Debug("query finished")

	rememberResults(dbPath, lastresults.New(lastresults.SourceQuery, kind, q, records))

	warnings := diagnosticWarnings(rs.Diagnostics())
	if jsonOutput {
		outputSuccessWithWarnings(map[string]interface{}{
			"kind":    kind.String(),
			"query":   q,
			"total":   rs.Len(),
			"records": records,
		}, warnings, &Meta{Count: len(records), QueryTimeMs: elapsed})
		return nil
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, ui.Warning(w.Message))
	}
	if len(records) == 0 {
		fmt.Println(ui.Hint(fmt.Sprintf("No %s match %s", ui.Pluralize(kind.String(), 2), shellquote.Arg(q))))
		return nil
	}
	printRecords(kind, records)
	if len(records) < rs.Len() {
		fmt.Println(ui.Hint(fmt.Sprintf("showing %d of %d", len(records), rs.Len())))
	}
	return nil
}

// newEngine builds a query engine over the index, honoring the query config.
func newEngine(db *index.Database, c *config.Config) (*query.Engine, error) {
	opts := []query.Option{
		query.WithLogger(log),
		query.WithNameMatcher(namematch.New()),
		query.WithEscape(c.Query.EscapeChars()),
	}
	if !c.Query.ValidateKeys() {
		opts = append(opts, query.WithSchema(nil))
	}
	return query.NewEngine(db, opts...)
}

// joinQueryArgs rebuilds the query text from shell words.
func joinQueryArgs(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

func resolveQueryTimeout(c *config.Config, flagSet bool, flagValue string) (time.Duration, error) {
	if !flagSet {
		return c.Query.QueryTimeout()
	}
	d, err := time.ParseDuration(strings.TrimSpace(flagValue))
	if err != nil {
		return 0, fmt.Errorf("invalid --timeout %q: %w", flagValue, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid --timeout %q: must not be negative", flagValue)
	}
	return d, nil
}

// dedupPolicy combines the configured policy with the command-line overrides.
func dedupPolicy(d config.DedupConfig) query.DedupPolicy {
	return query.DedupPolicy{
		PreferRated:      d.PreferRated() && !queryNoRated,
		PreferMostRecent: d.PreferLatest() && !queryNoLatest,
		AllowSingles:     !(d.PenalizeSingles() || querySingles),
		Fuzzy:            d.FuzzyTitles() && !queryNoFuzzy,
	}
}

func diagnosticWarnings(diags query.Diagnostics) []Warning {
	if len(diags) == 0 {
		return nil
	}
	warnings := make([]Warning, 0, len(diags))
	for _, d := range diags {
		warnings = append(warnings, Warning{
			Code:    "AMBIGUOUS_CAST",
			Message: d.Error(),
			Key:     d.Key,
			Value:   d.Value,
			Count:   d.Count,
		})
	}
	return warnings
}

func printRecords(kind record.Kind, records []*record.Record) {
	rows := make([]ui.RecordRow, len(records))
	for i, r := range records {
		rows[i] = recordRow(i+1, kind, r)
	}
	fmt.Print(ui.RenderRecords(ui.TermWidth(), len(records), rows))
}

func recordRow(num int, kind record.Kind, r *record.Record) ui.RecordRow {
	return ui.RecordRow{
		Num:     num,
		Title:   r.Title(),
		Context: recordContext(kind, r),
		Year:    recordYear(r),
		Key:     r.Key(),
	}
}

// recordContext names what a record belongs to: "artist - album" for tracks,
// "show - season" for episodes, the parent title for albums and seasons.
func recordContext(kind record.Kind, r *record.Record) string {
	attrs := r.Attrs()
	parent := attrs.Get("parentTitle").String()
	switch kind {
	case record.KindTrack, record.KindEpisode:
		grandparent := attrs.Get("grandparentTitle").String()
		if kind == record.KindTrack {
			if performer := attrs.Get("originalTitle").String(); performer != "" {
				grandparent = performer
			}
		}
		switch {
		case grandparent == "":
			return parent
		case parent == "":
			return grandparent
		}
		return grandparent + " - " + parent
	case record.KindAlbum, record.KindSeason:
		return parent
	case record.KindPlaylist:
		if n := attrs.Get("leafCount").String(); n != "" {
			return n + " items"
		}
	}
	return ""
}

func recordYear(r *record.Record) string {
	attrs := r.Attrs()
	if y := attrs.Get("year").String(); y != "" {
		return y
	}
	return attrs.Get("parentYear").String()
}

func init() {
	queryCmd.Flags().StringVarP(&queryTitle, "title", "t", "", "Add a title clause unless the query already has one")
	queryCmd.Flags().BoolVar(&queryAllowInst, "allow-inst", false, "Keep instrumental versions")
	queryCmd.Flags().BoolVarP(&queryUnique, "unique", "u", false, "Keep one record per performer and title")
	queryCmd.Flags().BoolVar(&queryNoRated, "no-rated", false, "With --unique, do not prefer rated records")
	queryCmd.Flags().BoolVar(&queryNoLatest, "no-latest", false, "With --unique, do not prefer later releases")
	queryCmd.Flags().BoolVar(&querySingles, "singles", false, "With --unique, let album releases beat singles")
	queryCmd.Flags().BoolVar(&queryNoFuzzy, "no-fuzzy", false, "With --unique, merge only identical titles")
	queryCmd.Flags().BoolVar(&queryExcludeRatedDupes, "exclude-rated-dupes", false, "Drop unrated tracks that duplicate a rated track")
	queryCmd.Flags().StringVar(&queryTimeout, "timeout", "", "Abort the query after this long (e.g. 30s)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "Show at most this many results (0 = all)")
	rootCmd.AddCommand(queryCmd)
}
