package fitting

import (
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"qimap/pkg/errs"
)

// Range of the global T1 search. The position is searched on [0, 1] and
// mapped logarithmically, so short and long T1 get equal attention.
const (
	seedT1Min = 0.01
	seedT1Max = 10.0
)

func seedT1(u float64) float64 {
	u = math.Min(math.Max(u, 0), 1)
	return seedT1Min * math.Exp(u*math.Log(seedT1Max/seedT1Min))
}

// profiled reports, for a fixed T1, the PD that minimises the residual
// together with that minimum cost.
type profiled func(T1 float64) (pd, cost float64)

// globalSeed runs a mayfly search over T1 with PD profiled out and returns
// the best (PD, T1) pair.
func globalSeed(o Options, prof profiled) ([]float64, error) {
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 {
		_, c := prof(seedT1(x[0]))
		if math.IsNaN(c) {
			return math.Inf(1)
		}
		return c
	}
	config.ProblemSize = 1
	config.MaxIterations = o.SeedIterations
	config.NPop = o.SeedPopulation
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(o.RandSeed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, errs.Diverged("seed", "global search failed: %v", err)
	}
	T1 := seedT1(result.GlobalBest.Position[0])
	pd, _ := prof(T1)
	return []float64{pd, T1}, nil
}
