package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"signal-council/internal/logging"
	"signal-council/internal/models"
)

// Scorer assigns a polarity in [-1, 1] and a subjectivity in [0, 1] to a
// piece of text. Implementations must be pure.
type Scorer interface {
	Score(text string) (polarity, subjectivity float64)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(text string) (float64, float64)

// Score calls f(text).
func (f ScorerFunc) Score(text string) (float64, float64) {
	return f(text)
}

var positiveWords = map[string]struct{}{
	"surge": {}, "surges": {}, "rally": {}, "rallies": {}, "gain": {}, "gains": {},
	"profit": {}, "profits": {}, "growth": {}, "bullish": {}, "upgrade": {},
	"beat": {}, "beats": {}, "exceed": {}, "exceeds": {}, "strong": {},
	"positive": {}, "outperform": {}, "buy": {}, "record": {}, "high": {},
	"boost": {}, "improve": {}, "improves": {}, "success": {}, "optimistic": {},
	"soar": {}, "soars": {}, "moon": {}, "great": {}, "good": {}, "up": {},
}

var negativeWords = map[string]struct{}{
	"fall": {}, "falls": {}, "drop": {}, "drops": {}, "decline": {}, "declines": {},
	"loss": {}, "losses": {}, "bearish": {}, "downgrade": {}, "miss": {}, "misses": {},
	"weak": {}, "negative": {}, "underperform": {}, "sell": {}, "concern": {},
	"concerns": {}, "low": {}, "cut": {}, "cuts": {}, "reduce": {}, "warning": {},
	"risk": {}, "pessimistic": {}, "crash": {}, "plunge": {}, "bad": {}, "down": {},
}

// opinionWords mark subjective language that carries no direction.
var opinionWords = map[string]struct{}{
	"think": {}, "believe": {}, "feel": {}, "maybe": {}, "probably": {},
	"amazing": {}, "terrible": {}, "love": {}, "hate": {}, "huge": {},
	"awesome": {}, "awful": {}, "really": {}, "very": {}, "insane": {},
}

// LexiconScorer scores text by counting directional keywords. Polarity is
// (positive - negative) / (positive + negative); subjectivity is the share
// of tokens that are directional or opinion words.
type LexiconScorer struct{}

// NewLexiconScorer creates the default keyword scorer.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{}
}

func (s *LexiconScorer) Score(text string) (float64, float64) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return 0, 0
	}

	var positive, negative, opinion int
	for _, tok := range tokens {
		if _, ok := positiveWords[tok]; ok {
			positive++
		} else if _, ok := negativeWords[tok]; ok {
			negative++
		} else if _, ok := opinionWords[tok]; ok {
			opinion++
		}
	}

	subjectivity := float64(positive+negative+opinion) / float64(len(tokens))

	total := positive + negative
	if total == 0 {
		return 0, subjectivity
	}
	return float64(positive-negative) / float64(total), subjectivity
}

// ScoreAll returns a copy of items where every unscored item has been run
// through scorer. Already scored items are kept as they are.
func ScoreAll(ctx context.Context, scorer Scorer, items []models.TextItem) ([]models.TextItem, error) {
	out := make([]models.TextItem, len(items))
	copy(out, items)

	scored := 0
	for i := range out {
		if out[i].Scored {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		polarity, subjectivity := scorer.Score(out[i].Title)
		out[i].SentimentScore = clamp(polarity, -1, 1)
		out[i].Subjectivity = clamp(subjectivity, 0, 1)
		out[i].Scored = true
		scored++
	}

	logger := logging.FromContext(ctx)
	logger.Debug().
		Int("items", len(out)).
		Int("scored", scored).
		Msg("Sentiment scored")
	return out, nil
}

// Prepare deduplicates items by title, orders them newest first and assigns
// an ID to items that arrived without one.
func Prepare(items []models.TextItem) []models.TextItem {
	out := models.SortByTimeDesc(models.DedupeByTitle(items))
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}

// clamp limits v to [lo, hi]. NaN and infinities become 0 so a faulty
// scorer reads as neutral.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
