package indicators

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

func closesToCandles(closes ...float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func risingCandles(n int) []models.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closesToCandles(closes...)
}

func TestRollingMean(t *testing.T) {
	got := rollingMean([]float64{1, 2, 3, 4}, 2)

	assert.True(t, math.IsNaN(got[0]))
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 3.5}, got[1:], 1e-12)
}

func TestRollingMeanPropagatesNaN(t *testing.T) {
	got := rollingMean([]float64{math.NaN(), 2, 4}, 2)

	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 3.0, got[2], 1e-12)
}

func TestEMASpan(t *testing.T) {
	got := emaSpan([]float64{1, 2, 3}, 3)

	assert.InDeltaSlice(t, []float64{1, 1.5, 2.25}, got, 1e-12)
}

func TestEWMAdjusted(t *testing.T) {
	got := ewmAdjusted([]float64{math.NaN(), 1, 2, 3}, 0.5, 2)

	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.5/1.5, got[2], 1e-12)
	assert.InDelta(t, 4.25/1.75, got[3], 1e-12)
}

func TestRSISaturatesWithoutLosses(t *testing.T) {
	values, err := NewRSI(14).Calculate(risingCandles(30))
	require.NoError(t, err)

	for i := 14; i < len(values); i++ {
		assert.Equal(t, 100.0, values[i])
	}
}

func TestRSIFlatSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 50
	}
	values, err := NewRSI(14).Calculate(closesToCandles(closes...))
	require.NoError(t, err)

	assert.Equal(t, 100.0, values[19])
}

func TestRSIFallingSeriesIsZero(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	values, err := NewRSI(14).Calculate(closesToCandles(closes...))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, values[19], 1e-12)
}

func TestBollingerPopulationAndSample(t *testing.T) {
	candles := closesToCandles(1, 2, 3, 4, 5)

	pop, err := NewBollingerBands(5, 2).Calculate(candles)
	require.NoError(t, err)
	assert.InDelta(t, 3+2*math.Sqrt(2), pop["upper"][4], 1e-12)
	assert.InDelta(t, 3-2*math.Sqrt(2), pop["lower"][4], 1e-12)

	sample, err := NewBollingerBands(5, 2).WithSampleStdDev(true).Calculate(candles)
	require.NoError(t, err)
	assert.InDelta(t, 3+2*math.Sqrt(2.5), sample["upper"][4], 1e-12)
}

func TestATRSkipsFirstBar(t *testing.T) {
	candles := []models.Candle{
		{Timestamp: time.Unix(0, 0), Open: 10, High: 12, Low: 9, Close: 11, Volume: 1},
		{Timestamp: time.Unix(1, 0), Open: 11, High: 13, Low: 10, Close: 12, Volume: 1},
		{Timestamp: time.Unix(2, 0), Open: 12, High: 12, Low: 8, Close: 9, Volume: 1},
		{Timestamp: time.Unix(3, 0), Open: 9, High: 10, Low: 9, Close: 10, Volume: 1},
	}

	values, err := NewATR(2).Calculate(candles)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(values[0]))
	assert.True(t, math.IsNaN(values[1]))
	// TR[1] = 3, TR[2] = max(4, 0, 4) = 4, TR[3] = max(1, 1, 0) = 1
	assert.InDelta(t, 3.5, values[2], 1e-12)
	assert.InDelta(t, 2.5, values[3], 1e-12)
}

func TestOBVZeroChangeContributesZero(t *testing.T) {
	candles := closesToCandles(10, 11, 11, 10)
	candles[1].Volume = 500
	candles[2].Volume = 700
	candles[3].Volume = 200

	values, err := NewOBV().Calculate(candles)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(values[0]))
	assert.Equal(t, []float64{500, 500, 300}, values[1:])
}

func TestMACDKeys(t *testing.T) {
	values, err := NewMACD(12, 26, 9).Calculate(risingCandles(40))
	require.NoError(t, err)

	require.Contains(t, values, "macd")
	require.Contains(t, values, "signal")
	require.Contains(t, values, "histogram")
	assert.Equal(t, 0.0, values["macd"][0])
	assert.Greater(t, values["macd"][39], 0.0)
	assert.InDelta(t, values["macd"][39]-values["signal"][39], values["histogram"][39], 1e-12)
}

func TestEnrichInsufficientData(t *testing.T) {
	_, err := Enrich(context.Background(), risingCandles(49))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var ide *apperrors.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 50, ide.Need)
	assert.Equal(t, 49, ide.Have)
}

func TestEnrichMinimalInput(t *testing.T) {
	candles := risingCandles(50)

	bars, err := Enrich(context.Background(), candles)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	b := bars[0]
	assert.Equal(t, candles[49].Timestamp, b.Timestamp)
	assert.InDelta(t, 149-9.5, b.SMAShort, 1e-9)
	assert.InDelta(t, 149-24.5, b.SMALong, 1e-9)
	assert.Equal(t, 100.0, b.RSI)
	assert.InDelta(t, 149.0/148.0-1, b.DailyReturn, 1e-12)
	assert.InDelta(t, 2.0, b.ATR, 1e-12)
	assert.Equal(t, 49*1000.0, b.OBV)
}

func TestEngineCalculateAllPropagatesErrors(t *testing.T) {
	engine := NewEngine(2)
	engine.RegisterIndicator(NewSMA(5))
	engine.RegisterIndicator(NewSMA(100))

	_, _, err := engine.CalculateAll(context.Background(), risingCandles(10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Contains(t, err.Error(), "SMA_100")
}

func TestEngineCancelledContext(t *testing.T) {
	engine := NewEngine(2)
	engine.RegisterIndicator(NewSMA(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := engine.CalculateAll(ctx, risingCandles(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineListAndWarmup(t *testing.T) {
	enricher := NewEnricher(DefaultOptions())

	names := enricher.Engine().ListIndicators()
	assert.Contains(t, names, "SMA_50")
	assert.Contains(t, names, "MACD_12_26_9")
	assert.IsIncreasing(t, names)
	assert.Equal(t, 50, enricher.Engine().Warmup())
}

func TestEngineCalculateByName(t *testing.T) {
	engine := NewEngine(1)
	engine.RegisterIndicator(NewSMA(2))

	values, err := engine.Calculate(context.Background(), "SMA_2", closesToCandles(1, 3))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, values[1], 1e-12)

	_, err = engine.Calculate(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownIndicator)
}

func TestEMASeedsFromFirstClose(t *testing.T) {
	values, err := NewEMA(3).Calculate(closesToCandles(10, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, "EMA_3", NewEMA(3).Name())
	assert.Equal(t, []float64{10, 15, 22.5}, values)

	_, err = NewEMA(0).Calculate(closesToCandles(1))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = NewEMA(3).Calculate(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMACDLineIsFastMinusSlowEMA(t *testing.T) {
	candles := risingCandles(40)
	fast, err := NewEMA(12).Calculate(candles)
	require.NoError(t, err)
	slow, err := NewEMA(26).Calculate(candles)
	require.NoError(t, err)

	values, err := NewMACD(12, 26, 9).Calculate(candles)
	require.NoError(t, err)
	for i := range candles {
		assert.InDelta(t, fast[i]-slow[i], values["macd"][i], 1e-12)
	}

	_, err = NewMACD(0, 26, 9).Calculate(candles)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestEngineCalculateMultiByName(t *testing.T) {
	engine := NewEnricher(DefaultOptions()).Engine()
	candles := risingCandles(40)

	values, err := engine.CalculateMulti(context.Background(), "MACD_12_26_9", candles)
	require.NoError(t, err)
	assert.Len(t, values["signal"], len(candles))

	bands, err := engine.CalculateMulti(context.Background(), "BollingerBands_20_2.0", candles)
	require.NoError(t, err)
	assert.Contains(t, bands, "upper")

	_, err = engine.CalculateMulti(context.Background(), "SMA_20", candles)
	assert.ErrorIs(t, err, ErrUnknownIndicator, "single-value names are not multi-value indicators")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.CalculateMulti(ctx, "MACD_12_26_9", candles)
	assert.ErrorIs(t, err, context.Canceled)
}
