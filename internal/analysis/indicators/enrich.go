package indicators

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// Options holds the indicator windows used for enrichment.
type Options struct {
	ShortWindow  int
	LongWindow   int
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	BollingerMul float64
	ATRPeriod    int
	SampleStdDev bool
	Workers      int
}

// DefaultOptions returns the standard daily-bar configuration.
func DefaultOptions() Options {
	return Options{
		ShortWindow:  20,
		LongWindow:   50,
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BollingerMul: 2.0,
		ATRPeriod:    14,
		Workers:      4,
	}
}

// Enricher computes the enriched bar sequence from raw candles.
type Enricher struct {
	engine *Engine
	logger zerolog.Logger

	smaShort  string
	smaLong   string
	rsi       string
	atr       string
	obv       string
	ret       string
	macd      string
	bollinger string
}

// NewEnricher registers the enrichment indicators on a fresh engine.
func NewEnricher(opts Options) *Enricher {
	engine := NewEngine(opts.Workers)

	smaShort := NewSMA(opts.ShortWindow)
	smaLong := NewSMA(opts.LongWindow)
	rsi := NewRSI(opts.RSIPeriod)
	atr := NewATR(opts.ATRPeriod)
	obv := NewOBV()
	ret := NewDailyReturn()
	macd := NewMACD(opts.MACDFast, opts.MACDSlow, opts.MACDSignal)
	bb := NewBollingerBands(opts.ShortWindow, opts.BollingerMul).WithSampleStdDev(opts.SampleStdDev)

	for _, ind := range []Indicator{smaShort, smaLong, rsi, atr, obv, ret} {
		engine.RegisterIndicator(ind)
	}
	engine.RegisterMultiIndicator(macd)
	engine.RegisterMultiIndicator(bb)

	return &Enricher{
		engine:    engine,
		logger:    zerolog.Nop(),
		smaShort:  smaShort.Name(),
		smaLong:   smaLong.Name(),
		rsi:       rsi.Name(),
		atr:       atr.Name(),
		obv:       obv.Name(),
		ret:       ret.Name(),
		macd:      macd.Name(),
		bollinger: bb.Name(),
	}
}

// WithLogger sets the logger used for enrichment diagnostics.
func (e *Enricher) WithLogger(logger zerolog.Logger) *Enricher {
	e.logger = logger
	return e
}

// Engine exposes the underlying indicator engine.
func (e *Enricher) Engine() *Engine {
	return e.engine
}

// Enrich computes every indicator and returns only the rows where all of
// them are defined. The output starts at the first bar whose longest window
// is fully populated.
func (e *Enricher) Enrich(ctx context.Context, candles []models.Candle) ([]models.EnrichedBar, error) {
	warmup := e.engine.Warmup()
	if len(candles) < warmup {
		return nil, apperrors.NewInsufficientDataError("enrich", warmup, len(candles))
	}

	single, multi, err := e.engine.CalculateAll(ctx, candles)
	if err != nil {
		return nil, apperrors.Wrap(err, "calculate indicators")
	}

	macd := multi[e.macd]
	bb := multi[e.bollinger]

	out := make([]models.EnrichedBar, 0, len(candles)-warmup+1)
	for i, c := range candles {
		bar := models.EnrichedBar{
			Candle:         c,
			SMAShort:       single[e.smaShort][i],
			SMALong:        single[e.smaLong][i],
			RSI:            single[e.rsi][i],
			BollingerUpper: bb["upper"][i],
			BollingerLower: bb["lower"][i],
			DailyReturn:    single[e.ret][i],
			MACD:           macd["macd"][i],
			MACDSignal:     macd["signal"][i],
			MACDHist:       macd["histogram"][i],
			ATR:            single[e.atr][i],
			OBV:            single[e.obv][i],
		}
		if !defined(bar) {
			continue
		}
		out = append(out, bar)
	}

	if len(out) == 0 {
		return nil, apperrors.NewInsufficientDataError("enrich", warmup, len(candles))
	}

	e.logger.Debug().
		Int("input", len(candles)).
		Int("output", len(out)).
		Int("dropped", len(candles)-len(out)).
		Msg("Enriched bars")

	return out, nil
}

// Enrich runs the default enrichment over candles.
func Enrich(ctx context.Context, candles []models.Candle) ([]models.EnrichedBar, error) {
	return NewEnricher(DefaultOptions()).Enrich(ctx, candles)
}

func defined(bar models.EnrichedBar) bool {
	for _, v := range bar.Features() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !math.IsNaN(bar.MACDHist)
}
