package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/internal/lastresults"
	"github.com/aidanlsb/crate/internal/record"
	"github.com/aidanlsb/crate/internal/ui"
)

var lastCmd = &cobra.Command{
	Use:   "last [NUMBERS...]",
	Short: "Show results from the most recent query",
	Long: `Shows the records returned by the last 'crate query' or 'crate playlists NAME'.

With NUMBERS, shows only those rows. Numbers match the row numbers of the
original table and accept lists and ranges.

Examples:
  crate last
  crate last 3
  crate last 1,4-6 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lr, err := lastresults.Read(getConfig().LibraryPath())
		if err != nil {
			if errors.Is(err, lastresults.ErrNoLastResults) {
				return handleError(ErrInvalidInput, err, "Run 'crate query' first")
			}
			return handleError(ErrFileReadError, err, "")
		}

		records := lr.Results
		nums := make([]int, len(records))
		for i := range nums {
			nums[i] = i + 1
		}
		if len(args) > 0 {
			nums, err = lastresults.ParseNumberArgs(args)
			if err != nil {
				return handleError(ErrInvalidInput, err, "Use numbers like 3, 1,4 or 2-5")
			}
			records, err = lr.GetByNumbers(nums)
			if err != nil {
				return handleError(ErrInvalidInput, err, "")
			}
		}

		if jsonOutput {
			outputSuccess(map[string]interface{}{
				"source":    lr.Source,
				"kind":      lr.Kind,
				"query":     lr.Query,
				"timestamp": lr.Timestamp,
				"numbers":   nums,
				"records":   records,
			}, &Meta{Count: len(records)})
			return nil
		}

		fmt.Println(ui.Hint(fmt.Sprintf("%s %s %s", lr.Source, lr.Query, ui.Count(len(lr.Results), "result", "results"))))
		if len(records) == 0 {
			return nil
		}
		kind, kindErr := record.ParseKind(lr.Kind)
		rows := make([]ui.RecordRow, len(records))
		for i, r := range records {
			k := kind
			if kindErr != nil {
				k = r.Kind()
			}
			rows[i] = recordRow(nums[i], k, r)
		}
		fmt.Print(ui.RenderRecords(ui.TermWidth(), len(lr.Results), rows))
		return nil
	},
}

// rememberResults saves results for 'crate last'. Failures are logged, not returned.
func rememberResults(dbPath string, lr *lastresults.LastResults) {
	if err := lastresults.Write(dbPath, lr); err != nil {
		log.WithError(err).Warn("could not save last results")
	}
}

func init() {
	rootCmd.AddCommand(lastCmd)
}
