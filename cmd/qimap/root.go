package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"qimap/internal/logging"
	"qimap/pkg/config"
	"qimap/pkg/mapping"
)

var (
	logLevel   string
	configPath string
	threads    int

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qimap",
	Short: "Quantitative relaxometry maps from steady-state MR signals",
	Long: `qimap estimates PD, T1 and T2 per voxel from series of steady-state
MR measurements and synthesizes signals for known tissue parameters.
Voxel data are CSV tables with one voxel per row.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || cfg.Processing.LogLevel == "" {
			cfg.Processing.LogLevel = logLevel
		}
		if cmd.Flags().Changed("threads") {
			if threads < 1 {
				return fmt.Errorf("--threads must be at least 1, got %d", threads)
			}
			cfg.Processing.NumCores = threads
		}
		logger = logging.InitLogger("qimap", os.Stderr, cfg.Processing.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "qimap.yaml", "Configuration file (.yaml or .toml)")
	rootCmd.PersistentFlags().IntVarP(&threads, "threads", "T", 1, "Number of worker goroutines")
}

// newMapper builds the voxel harness from the loaded configuration
func newMapper() *mapping.Mapper {
	return mapping.NewMapper(&mapping.Params{
		NumCores: cfg.Processing.NumCores,
		Logger:   logger,
	})
}
