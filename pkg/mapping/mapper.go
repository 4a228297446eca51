// Package mapping drives a bound estimator over every voxel of an image.
//
// Voxels are independent, so the work is split into contiguous regions and
// each region is processed by its own goroutine. Workers write only the
// output slots of their own voxels and keep their own tallies, which are
// merged after all workers have finished.
package mapping

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"qimap/internal/models"
	"qimap/pkg/errs"
	"qimap/pkg/fitting"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

// Params holds the harness configuration.
type Params struct {
	// NumCores specifies how many regions are processed concurrently.
	// Values below one mean a single worker.
	NumCores int

	// Logger receives progress and summary messages. The zero value
	// discards them.
	Logger zerolog.Logger
}

// Input is one image worth of fitting input.
type Input struct {
	// Data holds DataSize() measurements per voxel.
	Data *models.Series

	// Constants holds NumConstants() values per voxel. When nil the
	// algorithm defaults are used for every voxel.
	Constants *models.Series

	// Mask selects the voxels to fit. When nil every voxel is fitted.
	Mask []bool
}

// Summary counts voxel outcomes and describes the residuals of the
// converged voxels.
type Summary struct {
	Voxels    int
	Converged int
	Diverged  int
	Failed    int
	Masked    int

	// ResidualMean and ResidualStd are the mean and standard deviation of the
	// per-voxel residual RMS over converged voxels.
	ResidualMean float64
	ResidualStd  float64
}

// Output is the result of Process. Estimates and Residuals of voxels that
// did not converge are zero.
type Output struct {
	Estimates *models.Series
	Residuals *models.Series
	Status    []models.VoxelStatus
	Summary   Summary
}

// Mapper fits voxel series in parallel.
type Mapper struct {
	// params stores the harness configuration
	params *Params
}

// NewMapper creates a mapper with the provided parameters.
//
// Parameters:
//   - params: Configuration of the parallel harness
//
// Returns:
//   - A new Mapper instance
func NewMapper(params *Params) *Mapper {
	if params == nil {
		params = &Params{Logger: zerolog.Nop()}
	}
	return &Mapper{params: params}
}

func (m *Mapper) regions(n int) []models.Region {
	cores := m.params.NumCores
	if cores < 1 {
		cores = 1
	}
	return models.Split(n, cores)
}

// regionTally is the per-worker bookkeeping merged after Wait.
type regionTally struct {
	converged, diverged, failed, masked int
	rms                                 []float64
}

// Process fits every unmasked voxel of in with alg.
//
// A voxel that diverges or fails is recorded in Status and does not stop the
// batch. Only inconsistent input (sizes that do not match alg) is returned
// as an error.
func (m *Mapper) Process(alg fitting.Algorithm, in Input) (*Output, error) {
	if in.Data == nil {
		return nil, errs.Contract("mapping", "no data")
	}
	if err := in.Data.Check(alg.DataSize()); err != nil {
		return nil, errs.Contract("mapping", "data: %v", err)
	}
	n := in.Data.Voxels()
	if in.Constants != nil {
		if err := in.Constants.Check(alg.NumConstants()); err != nil {
			return nil, errs.Contract("mapping", "constants: %v", err)
		}
		if in.Constants.Voxels() != n {
			return nil, errs.Contract("mapping", "constants cover %d voxels, data %d", in.Constants.Voxels(), n)
		}
	}
	if in.Mask != nil && len(in.Mask) != n {
		return nil, errs.Contract("mapping", "mask covers %d voxels, data %d", len(in.Mask), n)
	}

	out := &Output{
		Estimates: models.NewSeries(n, alg.NumOutputs()),
		Residuals: models.NewSeries(n, alg.DataSize()),
		Status:    make([]models.VoxelStatus, n),
	}
	regions := m.regions(n)
	tallies := make([]regionTally, len(regions))
	log := m.params.Logger

	log.Info().
		Int("voxels", n).
		Int("regions", len(regions)).
		Strs("outputs", alg.OutputNames()).
		Msg("Fitting voxels")

	var wg sync.WaitGroup
	for r, region := range regions {
		wg.Add(1)

		go func(r int, region models.Region) {
			defer wg.Done()
			tally := &tallies[r]

			for i := region.Start; i < region.End; i++ {
				if in.Mask != nil && !in.Mask[i] {
					out.Status[i] = models.Masked
					tally.masked++
					continue
				}

				var consts []float64
				if in.Constants != nil {
					consts = in.Constants.Voxel(i)
				}
				res, err := alg.Apply(in.Data.Voxel(i), consts)
				switch {
				case err == nil:
					copy(out.Estimates.Voxel(i), res.Outputs)
					copy(out.Residuals.Voxel(i), res.Residuals)
					out.Status[i] = models.Converged
					tally.converged++
					tally.rms = append(tally.rms, rms(res.Residuals))
				case errors.Is(err, errs.ErrDiverged):
					out.Status[i] = models.Diverged
					tally.diverged++
					log.Debug().Int("voxel", i).Err(err).Msg("Voxel diverged")
				default:
					out.Status[i] = models.Failed
					tally.failed++
					log.Debug().Int("voxel", i).Err(err).Msg("Voxel failed")
				}
			}

			log.Debug().
				Int("region", r).
				Int("start", region.Start).
				Int("end", region.End).
				Msg("Region complete")
		}(r, region)
	}

	// Wait for all regions to finish
	wg.Wait()

	out.Summary = summarize(n, tallies)
	log.Info().
		Int("converged", out.Summary.Converged).
		Int("diverged", out.Summary.Diverged).
		Int("failed", out.Summary.Failed).
		Int("masked", out.Summary.Masked).
		Float64("residual_mean", out.Summary.ResidualMean).
		Float64("residual_std", out.Summary.ResidualStd).
		Msg("Fitting complete")
	return out, nil
}

func summarize(n int, tallies []regionTally) Summary {
	s := Summary{Voxels: n}
	var all []float64
	for _, t := range tallies {
		s.Converged += t.converged
		s.Diverged += t.diverged
		s.Failed += t.failed
		s.Masked += t.masked
		all = append(all, t.rms...)
	}
	switch len(all) {
	case 0:
	case 1:
		s.ResidualMean = all[0]
	default:
		s.ResidualMean, s.ResidualStd = stat.MeanStdDev(all, nil)
	}
	return s
}

func rms(r []float64) float64 {
	if len(r) == 0 {
		return 0
	}
	return floats.Norm(r, 2) / math.Sqrt(float64(len(r)))
}

// Synthesize evaluates seq for every voxel of a parameter series and adds
// complex Gaussian noise of standard deviation sigma. Each voxel draws from
// a stream seeded by seed and its index, so the result does not depend on
// NumCores.
func (m *Mapper) Synthesize(seq signal.Sequence, model tissue.Model, params *models.Series, sigma float64, seed uint64) (*models.ComplexSeries, error) {
	if params == nil {
		return nil, errs.Contract("synthesize", "no parameters")
	}
	if err := params.Check(model.NumParameters()); err != nil {
		return nil, errs.Contract("synthesize", "parameters: %v", err)
	}
	n := params.Voxels()
	out := models.NewComplexSeries(n, seq.Size())
	regions := m.regions(n)
	failures := make([]error, len(regions))

	m.params.Logger.Info().
		Int("voxels", n).
		Str("sequence", seq.Name()).
		Str("model", model.Name()).
		Float64("noise", sigma).
		Msg("Synthesizing signals")

	var wg sync.WaitGroup
	for r, region := range regions {
		wg.Add(1)

		go func(r int, region models.Region) {
			defer wg.Done()
			src := rand.NewSource(seed)

			for i := region.Start; i < region.End; i++ {
				src.Seed(seed + uint64(i))
				s, err := signal.Synthesize(seq, model, params.Voxel(i), sigma, src)
				if err != nil {
					failures[r] = fmt.Errorf("voxel %d: %w", i, err)
					return
				}
				copy(out.Voxel(i), s)
			}
		}(r, region)
	}
	wg.Wait()

	for _, err := range failures {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
