// Package pipeline runs the full signal fusion flow: enrichment, sentiment,
// prediction, cycle analysis and the council verdict.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"signal-council/internal/agents"
	"signal-council/internal/analysis/cycles"
	"signal-council/internal/analysis/indicators"
	apperrors "signal-council/internal/errors"
	"signal-council/internal/logging"
	"signal-council/internal/models"
	"signal-council/internal/predictor"
	"signal-council/internal/sentiment"
	"signal-council/internal/store"
	"signal-council/pkg/utils"
)

// Config groups the per-stage settings.
type Config struct {
	Indicators indicators.Options
	Predictor  predictor.Config
	Analysis   cycles.Options
}

// DefaultConfig returns the default stage settings.
func DefaultConfig() Config {
	return Config{
		Indicators: indicators.DefaultOptions(),
		Predictor:  predictor.DefaultConfig(),
		Analysis:   cycles.DefaultOptions(),
	}
}

// Input is everything one run needs. Items may be empty.
type Input struct {
	Symbol  string
	Candles []models.Candle
	Items   []models.TextItem
}

// FeatureWeight is one entry of a ranked importance list.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Report holds every intermediate of a run for presentation.
type Report struct {
	Symbol      string                   `json:"symbol"`
	Bars        []models.EnrichedBar     `json:"-"`
	Latest      models.EnrichedBar       `json:"latest"`
	Items       []models.TextItem        `json:"items"`
	Sentiment   models.SentimentSummary  `json:"sentiment"`
	Evaluation  *models.Evaluation       `json:"evaluation"`
	Prediction  *models.PredictionResult `json:"prediction"`
	TopFeatures []FeatureWeight          `json:"top_features"`
	Analysis    *cycles.Analysis         `json:"-"`
	Dominant    *models.Cycle            `json:"dominant_cycle,omitempty"`
	Verdict     *models.CouncilVerdict   `json:"verdict"`
	Duration    time.Duration            `json:"duration"`
}

// Pipeline wires the stages together. A zero store disables persistence.
type Pipeline struct {
	cfg     Config
	scorer  sentiment.Scorer
	council *agents.Council
	store   store.DataStore
	rng     *rand.Rand
	logger  zerolog.Logger
}

// New creates a pipeline with the lexicon scorer and the default council.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		scorer:  sentiment.NewLexiconScorer(),
		council: agents.NewCouncil(),
		logger:  zerolog.Nop(),
	}
}

// WithLogger sets the logger for stage events.
func (p *Pipeline) WithLogger(logger zerolog.Logger) *Pipeline {
	p.logger = logger
	p.council.WithLogger(logger)
	return p
}

// WithScorer replaces the text scorer.
func (p *Pipeline) WithScorer(scorer sentiment.Scorer) *Pipeline {
	p.scorer = scorer
	return p
}

// WithCouncil replaces the council.
func (p *Pipeline) WithCouncil(council *agents.Council) *Pipeline {
	p.council = council.WithLogger(p.logger)
	return p
}

// WithStore enables persistence of inputs and verdicts.
func (p *Pipeline) WithStore(s store.DataStore) *Pipeline {
	p.store = s
	return p
}

// WithRand sets the source used to seed the forest. Without one each run
// is seeded from the predictor config.
func (p *Pipeline) WithRand(rng *rand.Rand) *Pipeline {
	p.rng = rng
	return p
}

// Run executes every stage in order and returns the assembled report.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Report, error) {
	start := time.Now()
	logger := logging.WithSymbol(p.logger, in.Symbol)
	ctx = logging.WithLogger(ctx, logger)
	report := &Report{Symbol: in.Symbol}

	if err := models.ValidateCandles(in.Candles); err != nil {
		return nil, fmt.Errorf("validating bars: %w", err)
	}

	bars, err := stage(logger, "enrich", func() ([]models.EnrichedBar, error) {
		return indicators.NewEnricher(p.cfg.Indicators).WithLogger(logger).Enrich(ctx, in.Candles)
	})
	if err != nil {
		return nil, err
	}
	report.Bars = bars
	report.Latest = bars[len(bars)-1]

	items, err := stage(logger, "sentiment", func() ([]models.TextItem, error) {
		return sentiment.ScoreAll(ctx, p.scorer, sentiment.Prepare(in.Items))
	})
	if err != nil {
		return nil, err
	}
	report.Items = items
	report.Sentiment = sentiment.Summarize(items)

	if err := p.forecast(ctx, logger, report); err != nil {
		return nil, err
	}

	analysis, err := stage(logger, "cycles", func() (*cycles.Analysis, error) {
		return cycles.Analyze(models.Closes(bars), p.cfg.Analysis)
	})
	switch {
	case apperrors.Is(err, apperrors.ErrInsufficientData):
		logger.Warn().Err(err).Msg("Cycle analysis skipped")
	case err != nil:
		return nil, err
	default:
		report.Analysis = analysis
		if dominant, ok := analysis.Dominant(); ok {
			report.Dominant = &dominant
		}
	}

	req := agents.Request{
		Symbol:     in.Symbol,
		Bars:       bars,
		Items:      items,
		Prediction: report.Prediction,
	}
	if report.Analysis != nil {
		req.Decomposition = report.Analysis.Decomposition
	}

	verdict, err := stage(logger, "council", func() (*models.CouncilVerdict, error) {
		return p.council.Verdict(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	report.Verdict = verdict

	if p.store != nil {
		if err := p.persist(ctx, in, report); err != nil {
			return nil, err
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// forecast trains a fresh predictor and fuses the overall sentiment mean.
func (p *Pipeline) forecast(ctx context.Context, logger zerolog.Logger, report *Report) error {
	model := predictor.New(p.cfg.Predictor, p.seedSource()).WithLogger(logger)

	trainStart := time.Now()
	eval, err := model.Train(ctx, report.Bars)
	logging.LogStage(logger, "train", time.Since(trainStart), err)
	if err != nil {
		return fmt.Errorf("training predictor: %w", err)
	}
	logging.LogTraining(logger, eval, time.Since(trainStart))
	report.Evaluation = eval

	prediction, err := stage(logger, "predict", func() (*models.PredictionResult, error) {
		return model.PredictWithSentiment(report.Bars, report.Sentiment.OverallMean)
	})
	if err != nil {
		return err
	}
	report.Prediction = prediction
	report.TopFeatures = TopFeatures(prediction.FeatureImportance, 5)
	return nil
}

func (p *Pipeline) seedSource() *rand.Rand {
	if p.rng == nil {
		return nil
	}
	return rand.New(rand.NewSource(p.rng.Int63()))
}

// persist saves the run. Writes replace existing rows, so a retry after a
// lock conflict is safe.
func (p *Pipeline) persist(ctx context.Context, in Input, report *Report) error {
	retry := utils.DefaultRetryConfig()
	retry.Retryable = store.IsBusy

	_, err := stage(p.logger, "persist", func() (struct{}, error) {
		return struct{}{}, utils.Retry(ctx, retry, func() error {
			if err := p.store.SaveCandles(ctx, in.Symbol, in.Candles); err != nil {
				return err
			}
			if err := p.store.SaveTextItems(ctx, in.Symbol, report.Items); err != nil {
				return err
			}
			return p.store.SaveVerdict(ctx, report.Verdict)
		})
	})
	if err != nil {
		return apperrors.NewDataError("store", in.Symbol, "failed to persist run", err)
	}
	return nil
}

// stage times fn and logs its outcome.
func stage[T any](logger zerolog.Logger, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	logging.LogStage(logger, name, time.Since(start), err)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// TopFeatures ranks importance weights, heaviest first, ties by name.
func TopFeatures(importance map[string]float64, n int) []FeatureWeight {
	out := make([]FeatureWeight, 0, len(importance))
	for name, w := range importance {
		out = append(out, FeatureWeight{Name: name, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
