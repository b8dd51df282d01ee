// Package bootstrap repeats an attribution estimator under independent
// internal randomness and condenses the per-key results into a median point
// estimate and a percentile confidence interval.
package bootstrap

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"gocause/internal/errors"
)

// Estimator is one attribution run. It must use only the rng it is handed so
// repetitions are independent and the whole query stays reproducible from a
// single seed.
type Estimator func(rng *rand.Rand) (map[string]float64, error)

// Options tunes the confidence interval computation.
type Options struct {
	// Repetitions is the number of estimator re-runs.
	Repetitions int
	// ConfidenceLevel is the interval mass, e.g. 0.95 for a [2.5, 97.5]
	// percentile interval.
	ConfidenceLevel float64
}

const (
	defaultRepetitions     = 20
	defaultConfidenceLevel = 0.95
	maxConcurrentRuns      = 8
)

// Result is the aggregated outcome: per-key median and interval bounds.
type Result struct {
	Median    map[string]float64
	Intervals map[string][2]float64
}

// ConfidenceIntervals re-executes the estimator with independently seeded
// rngs (the fitted model and input data stay fixed) and aggregates per key.
// Repetitions are embarrassingly parallel and combined only at the end. All
// repetitions must produce the same key set; a mismatch is fatal.
func ConfidenceIntervals(estimator Estimator, opts Options, rng *rand.Rand) (*Result, error) {
	reps := opts.Repetitions
	if reps <= 0 {
		reps = defaultRepetitions
	}
	level := opts.ConfidenceLevel
	if level <= 0 || level >= 1 {
		level = defaultConfidenceLevel
	}

	// Seeds are drawn up front so the fan-out order cannot affect results.
	seeds := make([]int64, reps)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	runs := make([]map[string]float64, reps)
	var g errgroup.Group
	g.SetLimit(maxConcurrentRuns)
	for i := 0; i < reps; i++ {
		i := i
		g.Go(func() error {
			out, err := estimator(rand.New(rand.NewSource(seeds[i])))
			if err != nil {
				return err
			}
			runs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys, err := commonKeys(runs)
	if err != nil {
		return nil, err
	}

	alpha := (1 - level) / 2
	result := &Result{
		Median:    make(map[string]float64, len(keys)),
		Intervals: make(map[string][2]float64, len(keys)),
	}
	for _, key := range keys {
		values := make(stats.Float64Data, reps)
		for i, run := range runs {
			values[i] = run[key]
		}
		median, err := stats.Median(values)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to aggregate key %q", key)
		}
		lower, err := stats.Percentile(values, alpha*100)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to aggregate key %q", key)
		}
		upper, err := stats.Percentile(values, (1-alpha)*100)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to aggregate key %q", key)
		}
		result.Median[key] = median
		result.Intervals[key] = [2]float64{lower, upper}
	}
	return result, nil
}

func commonKeys(runs []map[string]float64) ([]string, error) {
	if len(runs) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(runs[0]))
	for k := range runs[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, run := range runs {
		if len(run) != len(keys) {
			return nil, errors.InconsistentKeySet(fmt.Sprintf("repetition %d produced %d keys, expected %d", i, len(run), len(keys)))
		}
		for _, k := range keys {
			if _, ok := run[k]; !ok {
				return nil, errors.InconsistentKeySet(fmt.Sprintf("repetition %d is missing key %q", i, k))
			}
		}
	}
	return keys, nil
}
