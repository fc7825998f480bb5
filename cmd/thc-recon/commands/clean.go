package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reewardius/thc-recon/pkg/state"
)

// NewCleanCommand builds the clean subcommand.
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean FILE",
		Short: "Strip ANSI codes and status lines from a lookup dump",
		Long: `Clean rewrites a raw lookup dump as a plain subdomain list: ANSI
escape codes stripped, ";;" status lines dropped, duplicates collapsed,
output sorted. Without -o the file is rewritten in place.`,
		Example: `  # Clean a file in place
  thc-recon clean subs.txt

  # Write the cleaned records elsewhere
  thc-recon clean subs.txt -o clean_subs.txt`,
		Args: cobra.ExactArgs(1),
		RunE: runClean,
	}

	cmd.Flags().StringP("output", "o", "", "write cleaned records here instead of rewriting FILE")

	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	count, err := state.Clean(args[0], output)
	if err != nil {
		return err
	}

	saved := output
	if saved == "" {
		saved = args[0]
	}

	color.Green("Cleaned %s: %d unique records", args[0], count)
	color.Green("Saved to: %s", saved)

	return nil
}
