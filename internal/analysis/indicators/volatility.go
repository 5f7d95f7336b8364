package indicators

import (
	"fmt"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// ATR calculates the Average True Range as a rolling mean of true range.
// The first candle has no prior close, so its true range is undefined.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.period+1 {
		return nil, apperrors.NewInsufficientDataError(a.Name(), a.period+1, len(candles))
	}

	tr := nan(len(candles))
	for i := 1; i < len(candles); i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	return rollingMean(tr, a.period), nil
}

// BollingerBands calculates Bollinger Bands around a simple moving average.
type BollingerBands struct {
	period    int
	stdDevMul float64
	sample    bool
}

// NewBollingerBands creates a new Bollinger Bands indicator using the
// population standard deviation.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

// WithSampleStdDev switches the band width to the n-1 standard deviation.
func (b *BollingerBands) WithSampleStdDev(sample bool) *BollingerBands {
	b.sample = sample
	return b
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BollingerBands_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if b.period <= 0 || b.stdDevMul <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < b.period {
		return nil, apperrors.NewInsufficientDataError(b.Name(), b.period, len(candles))
	}

	n := len(candles)
	closes := closePrices(candles)

	middle := rollingMean(closes, b.period)
	upper := nan(n)
	lower := nan(n)

	for i := b.period - 1; i < n; i++ {
		sd := stdDev(closes[i-b.period+1:i+1], b.sample)
		upper[i] = middle[i] + b.stdDevMul*sd
		lower[i] = middle[i] - b.stdDevMul*sd
	}

	return map[string][]float64{
		"middle": middle,
		"upper":  upper,
		"lower":  lower,
	}, nil
}
