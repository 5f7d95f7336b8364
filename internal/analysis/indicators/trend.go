package indicators

import (
	"fmt"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// SMA calculates Simple Moving Average of close.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, apperrors.NewInsufficientDataError(s.Name(), s.period, len(candles))
	}
	return rollingMean(closePrices(candles), s.period), nil
}

// EMA calculates Exponential Moving Average of close using span smoothing.
// The first value seeds the average, so EMA is defined from the first candle.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) == 0 {
		return nil, apperrors.NewInsufficientDataError(e.Name(), 1, 0)
	}
	return emaSpan(closePrices(candles), e.period), nil
}

// MACD calculates Moving Average Convergence Divergence from a fast and a
// slow EMA of close.
type MACD struct {
	fast         *EMA
	slow         *EMA
	signalPeriod int
}

// NewMACD creates a new MACD indicator, conventionally (12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:         NewEMA(fast),
		slow:         NewEMA(slow),
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast.period, m.slow.period, m.signalPeriod)
}

func (m *MACD) Period() int {
	return m.slow.period
}

func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.signalPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	fastEMA, err := m.fast.Calculate(candles)
	if err != nil {
		return nil, err
	}
	slowEMA, err := m.slow.Calculate(candles)
	if err != nil {
		return nil, err
	}

	// MACD Line = Fast EMA - Slow EMA
	macdLine := make([]float64, len(candles))
	for i := range macdLine {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := emaSpan(macdLine, m.signalPeriod)

	histogram := make([]float64, len(candles))
	for i := range histogram {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return map[string][]float64{
		"macd":      macdLine,
		"signal":    signalLine,
		"histogram": histogram,
	}, nil
}
