// Package predictor forecasts next-period returns with a random forest and
// fuses the forecast with a sentiment adjustment.
package predictor

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// Config holds model and fusion parameters.
type Config struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	TestFraction    float64
	ImpactFactor    float64 // return added per unit of sentiment
	Seed            int64
}

// DefaultConfig returns the standard forest configuration.
func DefaultConfig() Config {
	return Config{
		NumTrees:        200,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		TestFraction:    0.2,
		ImpactFactor:    0.015,
		Seed:            42,
	}
}

// Predictor trains on enriched bars and predicts the next-period return.
// Prediction is safe for concurrent use; Train is not.
type Predictor struct {
	cfg    Config
	rng    *rand.Rand
	logger zerolog.Logger

	mu         sync.RWMutex
	model      *forest
	evaluation *models.Evaluation
}

// New creates an untrained predictor. A nil rng is replaced by one seeded
// from cfg.Seed.
func New(cfg Config, rng *rand.Rand) *Predictor {
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = 1
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	return &Predictor{
		cfg:    cfg,
		rng:    rng,
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger used for training diagnostics.
func (p *Predictor) WithLogger(logger zerolog.Logger) *Predictor {
	p.logger = logger
	return p
}

// Trained reports whether Train has completed successfully.
func (p *Predictor) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// Train fits the forest on the chronological prefix of bars and evaluates it
// on the held-out suffix. The target for bar t is close[t+1]/close[t] - 1,
// so the last bar is not used.
func (p *Predictor) Train(ctx context.Context, bars []models.EnrichedBar) (*models.Evaluation, error) {
	rows := len(bars) - 1
	if rows < 2 {
		return nil, apperrors.NewInsufficientDataError("train predictor", 3, len(bars))
	}

	x := make([][]float64, rows)
	y := make([]float64, rows)
	for t := 0; t < rows; t++ {
		x[t] = bars[t].Features()
		y[t] = bars[t+1].Close/bars[t].Close - 1
	}

	testSize := int(math.Ceil(p.cfg.TestFraction * float64(rows)))
	testSize = max(1, min(testSize, rows-1))
	trainSize := rows - testSize

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := fitForest(x[:trainSize], y[:trainSize], p.cfg.NumTrees, treeParams{
		maxDepth:        p.cfg.MaxDepth,
		minSamplesSplit: p.cfg.MinSamplesSplit,
	}, p.rng)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	predicted := make([]float64, testSize)
	actual := y[trainSize:]
	for i := range predicted {
		predicted[i] = model.predict(x[trainSize+i])
	}

	eval := &models.Evaluation{
		R2:                  finite(stat.RSquaredFrom(predicted, actual, nil)),
		DirectionalAccuracy: directionalAccuracy(predicted, actual),
		MAE:                 meanAbsoluteError(predicted, actual),
		TrainSize:           trainSize,
		TestSize:            testSize,
	}

	p.mu.Lock()
	p.model = model
	p.evaluation = eval
	p.mu.Unlock()

	p.logger.Debug().
		Int("train_size", trainSize).
		Int("test_size", testSize).
		Int("trees", len(model.trees)).
		Float64("r2", eval.R2).
		Float64("directional_accuracy", eval.DirectionalAccuracy).
		Msg("Predictor trained")

	return eval, nil
}

// Evaluation returns the held-out metrics of the last training run.
func (p *Predictor) Evaluation() (*models.Evaluation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, apperrors.ErrModelNotTrained
	}
	eval := *p.evaluation
	return &eval, nil
}

// PredictWithSentiment predicts the return following the latest bar and
// shifts it by the sentiment score (clamped to [-1, 1], NaN read as 0) times
// ImpactFactor.
func (p *Predictor) PredictWithSentiment(bars []models.EnrichedBar, sentimentScore float64) (*models.PredictionResult, error) {
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()

	if model == nil {
		return nil, apperrors.ErrModelNotTrained
	}
	if len(bars) == 0 {
		return nil, apperrors.NewInsufficientDataError("predict", 1, 0)
	}

	latest := bars[len(bars)-1]
	technical := model.predict(latest.Features())
	impact := clampUnit(sentimentScore) * p.cfg.ImpactFactor
	final := technical + impact

	return &models.PredictionResult{
		CurrentPrice:         latest.Close,
		TechnicalReturn:      technical,
		SentimentImpact:      impact,
		FinalPredictedReturn: final,
		PredictedPrice:       latest.Close * (1 + final),
		FeatureImportance:    importanceMap(model),
	}, nil
}

// FeatureImportance returns the normalized importance of each feature.
func (p *Predictor) FeatureImportance() (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, apperrors.ErrModelNotTrained
	}
	return importanceMap(p.model), nil
}

func importanceMap(model *forest) map[string]float64 {
	weights := model.importance()
	out := make(map[string]float64, len(weights))
	for i, w := range weights {
		out[models.FeatureNames[i]] = w
	}
	return out
}

func directionalAccuracy(predicted, actual []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	hits := 0
	for i := range actual {
		if sign(predicted[i]) == sign(actual[i]) {
			hits++
		}
	}
	return float64(hits) / float64(len(actual))
}

func meanAbsoluteError(predicted, actual []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(predicted[i] - actual[i])
	}
	return sum / float64(len(actual))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// clampUnit limits v to [-1, 1]. Non-finite input counts as neutral.
func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, finite(v)))
}

// finite maps NaN and infinities to 0. R2 is undefined on a constant
// held-out target.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
