package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qimap/pkg/fitting"
	"qimap/pkg/sequence"
)

var (
	despot1Flags fitFlags
	b1Path       string
)

var despot1Cmd = &cobra.Command{
	Use:   "despot1",
	Short: "Estimate PD and T1 from a variable flip angle SPGR series",
	Long: `Fits the DESPOT1 signal equation to every voxel of a spoiled gradient-echo
series. The first SPGR sequence of the sequence file describes the data.
Outputs D1_maps.csv (PD, T1), D1_status.csv and optionally D1_residuals.csv.`,
	RunE: runDespot1,
}

func init() {
	despot1Flags.register(despot1Cmd)
	despot1Cmd.Flags().StringVarP(&b1Path, "b1", "b", "", "B1 table, one value per row (relative flip angle scale)")
	rootCmd.AddCommand(despot1Cmd)
}

func runDespot1(cmd *cobra.Command, args []string) error {
	opts, err := despot1Flags.options(cmd)
	if err != nil {
		return err
	}
	_, seqs, err := despot1Flags.sequences()
	if err != nil {
		return err
	}
	var spgr *sequence.SPGR
	for _, s := range seqs {
		if v, ok := s.(*sequence.SPGR); ok {
			spgr = v
			break
		}
	}
	if spgr == nil {
		return fmt.Errorf("despot1 needs an SPGR sequence")
	}

	e, err := fitting.NewT1Estimator(opts)
	if err != nil {
		return err
	}
	alg, err := e.Bind(spgr, cfg.Fitting.DefaultConstants...)
	if err != nil {
		return err
	}
	logger.Info().
		Str("algorithm", opts.Strategy.String()).
		Int("flips", spgr.Size()).
		Float64("tr", spgr.TR()).
		Msg("Running DESPOT1")
	return despot1Flags.run("D1", alg, b1Path)
}
