package indicators

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = apperrors.ErrInsufficientData
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrUnknownIndicator is returned when no indicator is registered under a name.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// nan returns a slice of n NaN values. NaN marks values that are undefined
// because the window has not filled yet.
func nan(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// abs returns the absolute value of a float64.
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// stdDev calculates the standard deviation of a slice of float64.
// With sample set the variance is divided by n-1 instead of n. Rounding
// noise below zero on flat windows is clamped.
func stdDev(values []float64, sample bool) float64 {
	if len(values) == 0 {
		return 0
	}
	var variance float64
	if sample {
		if len(values) < 2 {
			return math.NaN()
		}
		variance = stat.Variance(values, nil)
	} else {
		variance = stat.PopVariance(values, nil)
	}
	return math.Sqrt(math.Max(variance, 0))
}

// trueRange calculates the true range for a candle.
func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := abs(current.High - previous.Close)
	lowClose := abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// rollingMean computes the mean over a trailing window. A window containing
// any NaN yields NaN.
func rollingMean(values []float64, period int) []float64 {
	result := nan(len(values))
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if hasNaN(window) {
			continue
		}
		result[i] = stat.Mean(window, nil)
	}
	return result
}

// emaSpan computes an exponential moving average with alpha = 2/(span+1),
// seeded with the first value and without bias adjustment.
func emaSpan(values []float64, span int) []float64 {
	result := nan(len(values))
	if len(values) == 0 {
		return result
	}
	alpha := 2.0 / float64(span+1)
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = alpha*values[i] + (1-alpha)*result[i-1]
	}
	return result
}

// ewmAdjusted computes an exponentially weighted mean with bias-adjusted
// weights (1-alpha)^k over every prior observation. NaN inputs are skipped
// and the output is NaN until minPeriods observations have been seen.
func ewmAdjusted(values []float64, alpha float64, minPeriods int) []float64 {
	result := nan(len(values))
	decay := 1 - alpha
	var num, den float64
	seen := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		num = v + decay*num
		den = 1 + decay*den
		seen++
		if seen >= minPeriods {
			result[i] = num / den
		}
	}
	return result
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
