package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qimap/pkg/fitting"
	"qimap/pkg/sequence"
)

var multiechoFlags fitFlags

var multiechoCmd = &cobra.Command{
	Use:   "multiecho",
	Short: "Estimate PD and T2 from a multi-echo spin-echo train",
	Long: `Fits a mono-exponential decay to every voxel of a multi-echo series.
Outputs ME_maps.csv (PD, T2), ME_status.csv and optionally ME_residuals.csv.`,
	RunE: runMultiecho,
}

func init() {
	multiechoFlags.register(multiechoCmd)
	rootCmd.AddCommand(multiechoCmd)
}

func runMultiecho(cmd *cobra.Command, args []string) error {
	opts, err := multiechoFlags.options(cmd)
	if err != nil {
		return err
	}
	_, seqs, err := multiechoFlags.sequences()
	if err != nil {
		return err
	}
	var train *sequence.MultiEcho
	for _, s := range seqs {
		if v, ok := s.(*sequence.MultiEcho); ok {
			train = v
			break
		}
	}
	if train == nil {
		return fmt.Errorf("multiecho needs a MultiEcho sequence")
	}

	e, err := fitting.NewT2Estimator(opts)
	if err != nil {
		return err
	}
	alg, err := e.Bind(train)
	if err != nil {
		return err
	}
	logger.Info().
		Str("algorithm", opts.Strategy.String()).
		Int("echoes", train.Size()).
		Msg("Running multi-echo T2")
	return multiechoFlags.run("ME", alg, "")
}
