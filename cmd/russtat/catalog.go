package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/russtat/internal/catalog"
)

var (
	RefreshOverwrite bool
	FindOpts         catalog.FindOptions
)

func init() {
	catalogRefreshCmd.Flags().BoolVarP(&RefreshOverwrite, "overwrite", "o", false, "Download the catalog even if a snapshot exists")

	catalogFindCmd.Flags().BoolVarP(&FindOpts.Regex, "regex", "r", false, "Treat the pattern as a regular expression")
	catalogFindCmd.Flags().BoolVarP(&FindOpts.CaseSensitive, "case", "C", false, "Match case")
	catalogFindCmd.Flags().BoolVarP(&FindOpts.FullMatch, "full", "f", false, "Match the whole title")
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the portal catalog",
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Load the catalog and save its snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		datasets, err := a.Catalog.Refresh(cmd.Context(), RefreshOverwrite)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d datasets in catalog\n", len(datasets))
		return nil
	},
}

var catalogFindCmd = &cobra.Command{
	Use:   "find <pattern>",
	Short: "List catalog entries whose title matches pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Catalog.Refresh(cmd.Context(), false); err != nil {
			return err
		}
		found, err := a.Catalog.Find(args[0], FindOpts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, d := range found {
			fmt.Fprintf(out, "%s\t%s\n", d.Identifier, d.Title)
		}
		return nil
	},
}
