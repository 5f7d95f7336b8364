package indicators

import (
	"fmt"
	"math"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// RSI calculates the Relative Strength Index.
//
// Average gain and loss are exponentially weighted means with
// com = period-1 (alpha = 1/period) and bias-adjusted weights; the first
// value appears once period price changes have been observed. A window
// without losses saturates at 100.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.period+1 {
		return nil, apperrors.NewInsufficientDataError(r.Name(), r.period+1, len(candles))
	}

	n := len(candles)
	closes := closePrices(candles)

	gains := nan(n)
	losses := nan(n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
	}

	alpha := 1.0 / float64(r.period)
	avgGain := ewmAdjusted(gains, alpha, r.period)
	avgLoss := ewmAdjusted(losses, alpha, r.period)

	result := nan(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			result[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		result[i] = 100 - (100 / (1 + rs))
	}

	return result, nil
}

// DailyReturn calculates the fractional change from the prior close.
type DailyReturn struct{}

// NewDailyReturn creates a new DailyReturn indicator.
func NewDailyReturn() *DailyReturn {
	return &DailyReturn{}
}

func (d *DailyReturn) Name() string {
	return "DailyReturn"
}

func (d *DailyReturn) Period() int {
	return 2
}

func (d *DailyReturn) Calculate(candles []models.Candle) ([]float64, error) {
	if len(candles) < 2 {
		return nil, apperrors.NewInsufficientDataError(d.Name(), 2, len(candles))
	}

	result := nan(len(candles))
	for i := 1; i < len(candles); i++ {
		result[i] = candles[i].Close/candles[i-1].Close - 1
	}
	return result, nil
}
