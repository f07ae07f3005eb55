package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/russtat/internal/classifier"
)

var (
	DropRoot bool
	RunLimit int
)

func init() {
	treeCmd.Flags().BoolVarP(&DropRoot, "drop-root", "d", false, "Drop the first segment of every classifier path")
	runsCmd.Flags().IntVarP(&RunLimit, "limit", "n", 10, "Number of runs to list")
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the classifier tree of stored datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.Datasets.ClassifierRows(cmd.Context())
		if err != nil {
			return err
		}
		entries := make([]classifier.Entry, 0, len(rows))
		names := make(classifier.MapNames, len(rows))
		for _, r := range rows {
			entries = append(entries, classifier.Entry{Path: r.ClassifierPath, DatasetID: r.ID})
			names[r.ID] = r.FullName
		}

		dropRoot := DropRoot || a.Config.Classifier.DropRoot
		tree := classifier.Build(entries, classifier.Options{DropRoot: dropRoot})
		out := cmd.OutOrStdout()
		for _, l := range classifier.Render(tree, names) {
			fmt.Fprintln(out, l.Indent("    "))
		}
		if n := len(tree.Unclassified); n > 0 {
			fmt.Fprintf(out, "(%d unclassified)\n", n)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent fetch runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.Runs.ListRecent(cmd.Context(), RunLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTOTAL\tPROCESSED\tFAILED\tSKIPPED\tSTARTED")
		for _, r := range runs {
			started := ""
			if r.StartedAt != nil {
				started = r.StartedAt.Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.ID, r.Status, r.TotalJobs, r.ProcessedJobs, r.FailedJobs, r.SkippedJobs, started)
		}
		return w.Flush()
	},
}
