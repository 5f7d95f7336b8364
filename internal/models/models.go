// Package models provides domain models for the signal council.
package models

import (
	"fmt"
	"math"
	"time"

	apperrors "signal-council/internal/errors"
)

// Candle represents one OHLCV observation for a trading period.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// ValidateCandles checks that prices are positive, volume is non-negative and
// timestamps are strictly increasing. The first violation is returned.
func ValidateCandles(candles []Candle) error {
	for i, c := range candles {
		for _, p := range []struct {
			field string
			value float64
		}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}} {
			if !(p.value > 0) || math.IsInf(p.value, 0) {
				return apperrors.NewValidationError(fmt.Sprintf("candles[%d].%s", i, p.field), p.value, "must be positive")
			}
		}
		if c.Volume < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].volume", i), c.Volume, "must be non-negative")
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].timestamp", i), c.Timestamp, "must be strictly increasing")
		}
	}
	return nil
}

// EnrichedBar is a candle augmented with derived indicator values.
// Every field at index i depends only on candles at indices <= i.
type EnrichedBar struct {
	Candle
	SMAShort       float64 `json:"sma_short"`
	SMALong        float64 `json:"sma_long"`
	RSI            float64 `json:"rsi"`
	BollingerUpper float64 `json:"bollinger_upper"`
	BollingerLower float64 `json:"bollinger_lower"`
	DailyReturn    float64 `json:"daily_return"`
	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	MACDHist       float64 `json:"macd_hist"`
	ATR            float64 `json:"atr"`
	OBV            float64 `json:"obv"`
}

// FeatureNames lists the predictor features in the order returned by Features.
var FeatureNames = []string{
	"open", "high", "low", "close", "volume",
	"sma_short", "sma_long", "rsi",
	"bollinger_upper", "bollinger_lower", "daily_return",
	"macd", "macd_signal", "atr", "obv",
}

// Features returns the bar's feature vector in FeatureNames order.
func (b EnrichedBar) Features() []float64 {
	return []float64{
		b.Open, b.High, b.Low, b.Close, float64(b.Volume),
		b.SMAShort, b.SMALong, b.RSI,
		b.BollingerUpper, b.BollingerLower, b.DailyReturn,
		b.MACD, b.MACDSignal, b.ATR, b.OBV,
	}
}

// Closes extracts close prices from enriched bars.
func Closes(bars []EnrichedBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Decomposition holds an additive trend/seasonal/residual split of a series.
// Trend and Residual are NaN where the centered moving average is undefined.
type Decomposition struct {
	Period   int
	Trend    []float64
	Seasonal []float64
	Residual []float64
}

// Cycle is one candidate periodicity found by spectral analysis.
type Cycle struct {
	Length    float64 // in observations
	Amplitude float64
}

// Spectrum is a list of cycles sorted by amplitude, strongest first.
type Spectrum []Cycle

// Between returns the cycles whose length lies strictly inside (min, max).
func (s Spectrum) Between(min, max float64) Spectrum {
	out := make(Spectrum, 0, len(s))
	for _, c := range s {
		if c.Length > min && c.Length < max {
			out = append(out, c)
		}
	}
	return out
}

// PredictionResult is the fused return forecast for the next period.
type PredictionResult struct {
	CurrentPrice         float64            `json:"current_price"`
	TechnicalReturn      float64            `json:"technical_return"`
	SentimentImpact      float64            `json:"sentiment_impact"`
	FinalPredictedReturn float64            `json:"final_predicted_return"`
	PredictedPrice       float64            `json:"predicted_price"`
	FeatureImportance    map[string]float64 `json:"feature_importance"`
}

// Evaluation reports held-out quality of a trained predictor.
type Evaluation struct {
	R2                  float64 `json:"r2"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	MAE                 float64 `json:"mae"`
	TrainSize           int     `json:"train_size"`
	TestSize            int     `json:"test_size"`
}
