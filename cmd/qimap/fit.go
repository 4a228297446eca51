package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"qimap/internal/models"
	"qimap/internal/table"
	"qimap/pkg/config"
	"qimap/pkg/fitting"
	"qimap/pkg/mapping"
	"qimap/pkg/sequence"
	"qimap/pkg/signal"
)

// fitFlags are shared by the fitting commands
type fitFlags struct {
	sequencePath string
	dataPath     string
	maskPath     string
	outPrefix    string
	algo         string
	its          int
	resids       bool
}

func (f *fitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.sequencePath, "sequence", "s", "", "Sequence file (.yaml or .toml); defaults to the sequences in the config")
	cmd.Flags().StringVarP(&f.dataPath, "data", "d", "", "Measurement table, one voxel per row (required)")
	cmd.Flags().StringVarP(&f.maskPath, "mask", "m", "", "Mask table, one value per row; zero rows are skipped")
	cmd.Flags().StringVarP(&f.outPrefix, "out", "o", "", "Prefix for output files")
	cmd.Flags().StringVarP(&f.algo, "algo", "a", "l", "Algorithm: l (LLS), w (WLLS), n (NLLS)")
	cmd.Flags().IntVarP(&f.its, "its", "i", 4, "Max iterations for WLLS/NLLS")
	cmd.Flags().BoolVarP(&f.resids, "resids", "r", false, "Write the residual table")
	cmd.MarkFlagRequired("data")
}

// options merges the command-line overrides into the configured options
func (f *fitFlags) options(cmd *cobra.Command) (fitting.Options, error) {
	if cmd.Flags().Changed("algo") {
		cfg.Fitting.Algorithm = f.algo
	}
	if cmd.Flags().Changed("its") {
		cfg.Fitting.MaxIterations = f.its
	}
	return cfg.FittingOptions()
}

// sequences loads the descriptors from --sequence or the config
func (f *fitFlags) sequences() ([]sequence.Spec, []signal.Sequence, error) {
	if f.sequencePath == "" {
		if len(cfg.Sequences) == 0 {
			return nil, nil, fmt.Errorf("no --sequence file given and the config lists no sequences")
		}
		seqs, err := cfg.BuildSequences()
		return cfg.Sequences, seqs, err
	}
	return config.LoadSequences(f.sequencePath)
}

// run reads the inputs, fits every voxel and writes the maps
func (f *fitFlags) run(name string, alg fitting.Algorithm, constsPath string) error {
	data, err := table.ReadFile(f.dataPath, alg.DataSize())
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	in := mapping.Input{Data: data}
	if constsPath != "" {
		if in.Constants, err = table.ReadFile(constsPath, alg.NumConstants()); err != nil {
			return fmt.Errorf("failed to read constants: %w", err)
		}
	}
	if f.maskPath != "" {
		if in.Mask, err = table.ReadMaskFile(f.maskPath); err != nil {
			return fmt.Errorf("failed to read mask: %w", err)
		}
	}

	start := time.Now()
	out, err := newMapper().Process(alg, in)
	if err != nil {
		return err
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("Processing complete")

	if err := f.write(name+"_maps.csv", alg.OutputNames(), out.Estimates); err != nil {
		return err
	}
	status := models.NewSeries(len(out.Status), 1)
	for i, s := range out.Status {
		status.Data[i] = float64(s)
	}
	if err := f.write(name+"_status.csv", []string{"status"}, status); err != nil {
		return err
	}
	if f.resids {
		header := make([]string, alg.DataSize())
		for i := range header {
			header[i] = fmt.Sprintf("r%d", i)
		}
		if err := f.write(name+"_residuals.csv", header, out.Residuals); err != nil {
			return err
		}
	}
	return nil
}

func (f *fitFlags) write(name string, header []string, s *models.Series) error {
	path := f.outPrefix + name
	if err := table.WriteFile(path, header, s); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	logger.Info().Str("file", path).Msg("Wrote table")
	return nil
}
