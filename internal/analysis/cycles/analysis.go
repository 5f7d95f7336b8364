package cycles

import (
	"signal-council/internal/models"
)

// Options controls when and how cycle analysis runs.
type Options struct {
	MinObservations int     // analysis runs only on series longer than this
	SeasonalPeriod  int     // observations per seasonal cycle
	CycleMin        float64 // exclusive lower bound on reported cycle length
	CycleMax        float64 // exclusive upper bound on reported cycle length
	TopCycles       int
}

// DefaultOptions approximates a quarterly cycle on daily bars.
func DefaultOptions() Options {
	return Options{
		MinObservations: 300,
		SeasonalPeriod:  60,
		CycleMin:        20,
		CycleMax:        365,
		TopCycles:       20,
	}
}

// Analysis bundles the decomposition and filtered spectrum of a series.
type Analysis struct {
	Decomposition *models.Decomposition `json:"decomposition,omitempty"`
	Cycles        models.Spectrum       `json:"cycles"`
}

// Dominant returns the strongest cycle, if any survived filtering.
func (a *Analysis) Dominant() (models.Cycle, bool) {
	if a == nil || len(a.Cycles) == 0 {
		return models.Cycle{}, false
	}
	return a.Cycles[0], true
}

// Analyze decomposes series and extracts its dominant cycles. It returns
// nil without error when the series is not longer than MinObservations.
func Analyze(series []float64, opts Options) (*Analysis, error) {
	if len(series) <= opts.MinObservations {
		return nil, nil
	}

	decomp, err := Decompose(series, opts.SeasonalPeriod)
	if err != nil {
		return nil, err
	}

	spectrum, err := Spectrum(series)
	if err != nil {
		return nil, err
	}

	filtered := spectrum.Between(opts.CycleMin, opts.CycleMax)
	if opts.TopCycles > 0 && len(filtered) > opts.TopCycles {
		filtered = filtered[:opts.TopCycles]
	}

	return &Analysis{
		Decomposition: decomp,
		Cycles:        filtered,
	}, nil
}
