package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/timmy/russtat/internal/app"
	"github.com/timmy/russtat/internal/config"
	"github.com/timmy/russtat/internal/logger"
)

var (
	ConfigPath string
	Verbose    bool
	Workers    int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Activate verbose log output")
	rootCmd.PersistentFlags().IntVarP(&Workers, "workers", "w", 0, "Fetch workers (0 uses the configured value)")

	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogFindCmd)

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "russtat",
	Short:         "Download and browse the Rosstat open-data catalog",
	SilenceUsage: true,
}

// setup loads the configuration and wires the application.
func setup(ctx context.Context) (*app.App, error) {
	envCfg := logger.LoadFromEnv()
	if Verbose {
		envCfg.Level = "debug"
	}
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)

	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	if Workers > 0 {
		cfg.Fetch.Workers = Workers
	}
	return app.New(ctx, cfg, appLogger)
}
