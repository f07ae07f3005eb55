package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/russtat/internal/catalog"
	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/service"
)

var (
	FetchPattern   string
	FetchRegex     bool
	FetchTitles    []string
	FetchAll       bool
	FetchOverwrite bool
	SkipExisting   bool
)

func init() {
	fetchCmd.Flags().StringVarP(&FetchPattern, "pattern", "p", "", "Select datasets whose title matches pattern")
	fetchCmd.Flags().BoolVarP(&FetchRegex, "regex", "r", false, "Treat the pattern as a regular expression")
	fetchCmd.Flags().StringSliceVarP(&FetchTitles, "title", "t", nil, "Select a dataset by exact title (repeatable)")
	fetchCmd.Flags().BoolVarP(&FetchAll, "all", "a", false, "Select the whole catalog")
	fetchCmd.Flags().BoolVarP(&FetchOverwrite, "overwrite", "o", false, "Download source documents even if stored")
	fetchCmd.Flags().BoolVarP(&SkipExisting, "skip-existing", "s", false, "Skip datasets already in the database")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [id|#index ...]",
	Short: "Download, parse and store datasets",
	Long: "Download, parse and store datasets. Arguments select catalog entries by\n" +
		"identifier, or by catalog position when prefixed with '#'.\n" +
		"Interrupting stops new downloads; started ones finish and are stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.Logger

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		// a second interrupt kills the process
		context.AfterFunc(ctx, func() {
			log.Info("Received shutdown signal, finishing started jobs...")
			stop()
		})

		if _, err := a.Catalog.Refresh(ctx, false); err != nil {
			return err
		}
		selected, err := selectDatasets(a.Catalog, args)
		if err != nil {
			return err
		}
		if SkipExisting || a.Config.Fetch.SkipExisting {
			fresh, known, err := service.FilterNewWith(ctx, selected, a.Datasets)
			if err != nil {
				return err
			}
			log.WithField(logger.FieldCount, len(known)).Info("Skipping stored datasets")
			selected = fresh
		}
		if len(selected) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to fetch")
			return nil
		}

		policy := a.Policy()
		policy.Overwrite = policy.Overwrite || FetchOverwrite
		jobs, err := service.BuildJobs(selected, policy, service.Overrides{})
		if err != nil {
			return err
		}

		loader := service.NewLoader(a.Datasets, log)
		res, err := a.Fetch.Run(ctx, jobs, loader.OnDataset)
		if err != nil {
			return err
		}

		ls := loader.Stats()
		log.WithFields(logger.Fields{
			"run_id":    res.RunID,
			"total":     res.Stats.TotalJobs,
			"processed": res.Stats.ProcessedJobs,
			"failed":    res.Stats.FailedJobs,
			"skipped":   res.Stats.SkippedJobs,
			"cached":    res.Stats.CachedJobs,
			"saved":     ls.Saved,
		}).Info("Fetch completed")
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d datasets stored\n", ls.Saved, len(jobs))
		return res.Err()
	},
}

// selectDatasets combines positional selectors with the selection flags.
func selectDatasets(store *catalog.Store, args []string) ([]domain.Descriptor, error) {
	if FetchAll {
		return store.Datasets(), nil
	}

	var lookups []catalog.Lookup
	for _, arg := range args {
		if len(arg) > 1 && arg[0] == '#' {
			i, err := strconv.Atoi(arg[1:])
			if err != nil {
				return nil, fmt.Errorf("bad index %q: %w", arg, domain.ErrInvalidArgument)
			}
			lookups = append(lookups, catalog.ByIndex(i))
			continue
		}
		lookups = append(lookups, catalog.ByID(arg))
	}
	for _, t := range FetchTitles {
		lookups = append(lookups, catalog.ByTitle(t))
	}

	selected, err := store.ResolveAll(lookups)
	if err != nil {
		return nil, err
	}
	if FetchPattern != "" {
		found, err := store.Find(FetchPattern, catalog.FindOptions{Regex: FetchRegex})
		if err != nil {
			return nil, err
		}
		selected = append(selected, found...)
	}
	if len(selected) == 0 && len(lookups) == 0 && FetchPattern == "" {
		return nil, fmt.Errorf("select datasets by id, --title, --pattern or --all: %w", domain.ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(selected))
	out := selected[:0]
	for _, d := range selected {
		if _, ok := seen[d.Identifier]; ok {
			continue
		}
		seen[d.Identifier] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}
