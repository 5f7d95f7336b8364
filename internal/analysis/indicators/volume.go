package indicators

import (
	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// OBV calculates On-Balance Volume. The running sum starts at the second
// candle; an unchanged close contributes zero.
type OBV struct{}

// NewOBV creates a new OBV indicator.
func NewOBV() *OBV {
	return &OBV{}
}

func (o *OBV) Name() string {
	return "OBV"
}

func (o *OBV) Period() int {
	return 2
}

func (o *OBV) Calculate(candles []models.Candle) ([]float64, error) {
	if len(candles) < 2 {
		return nil, apperrors.NewInsufficientDataError(o.Name(), 2, len(candles))
	}

	n := len(candles)
	result := nan(n)
	var running float64

	for i := 1; i < n; i++ {
		if candles[i].Close > candles[i-1].Close {
			running += float64(candles[i].Volume)
		} else if candles[i].Close < candles[i-1].Close {
			running -= float64(candles[i].Volume)
		}
		result[i] = running
	}

	return result, nil
}
