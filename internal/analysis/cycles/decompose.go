// Package cycles provides seasonal decomposition and spectral analysis of
// price series.
package cycles

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// Decompose splits series into trend, seasonal and residual components using
// classical additive decomposition.
//
// The trend is a centered moving average of length period (a 2 x period
// average for even periods), so the first and last period/2 trend values are
// NaN, as are the matching residuals. The seasonal component is the mean of
// the detrended values at each phase, shifted to zero mean and tiled across
// the series.
func Decompose(series []float64, period int) (*models.Decomposition, error) {
	if period < 2 {
		return nil, apperrors.NewValidationError("period", period, "must be at least 2")
	}
	if len(series) < 2*period {
		return nil, apperrors.NewInsufficientDataError("seasonal decomposition", 2*period, len(series))
	}

	n := len(series)
	trend := centeredMovingAverage(series, period)

	detrended := make([]float64, n)
	floats.SubTo(detrended, series, trend)

	phaseMeans := make([]float64, period)
	for phase := 0; phase < period; phase++ {
		var sum float64
		var count int
		for i := phase; i < n; i += period {
			if math.IsNaN(detrended[i]) {
				continue
			}
			sum += detrended[i]
			count++
		}
		if count > 0 {
			phaseMeans[phase] = sum / float64(count)
		}
	}
	floats.AddConst(-stat.Mean(phaseMeans, nil), phaseMeans)

	seasonal := make([]float64, n)
	for i := range seasonal {
		seasonal[i] = phaseMeans[i%period]
	}

	residual := make([]float64, n)
	floats.SubTo(residual, detrended, seasonal)

	return &models.Decomposition{
		Period:   period,
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
	}, nil
}

// centeredMovingAverage applies a symmetric filter of period taps, or
// period+1 taps with half weight at both ends when period is even.
func centeredMovingAverage(series []float64, period int) []float64 {
	var weights []float64
	if period%2 == 0 {
		weights = make([]float64, period+1)
		for i := range weights {
			weights[i] = 1.0 / float64(period)
		}
		weights[0] /= 2
		weights[period] /= 2
	} else {
		weights = make([]float64, period)
		for i := range weights {
			weights[i] = 1.0 / float64(period)
		}
	}

	half := len(weights) / 2
	out := make([]float64, len(series))
	for i := range out {
		if i < half || i+half >= len(series) {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Dot(weights, series[i-half:i+half+1])
	}
	return out
}
