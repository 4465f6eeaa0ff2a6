package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/crate/docs"
	"github.com/aidanlsb/crate/internal/ui"
)

var syntaxCmd = &cobra.Command{
	Use:   "syntax",
	Short: "Show the query language reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			outputSuccess(map[string]interface{}{"markdown": docs.Syntax}, nil)
			return nil
		}
		if !ui.IsTerminal(os.Stdout) {
			fmt.Print(docs.Syntax)
			return nil
		}

		rendered, err := ui.RenderMarkdown(docs.Syntax, ui.TermWidth())
		if err != nil {
			log.WithError(err).Debug("markdown rendering failed")
			fmt.Print(docs.Syntax)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syntaxCmd)
}
