package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(fmt.Errorf("save: %w", sqlite3.Error{Code: sqlite3.ErrBusy})))
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsBusy(errors.New("disk full")))
	assert.False(t, IsBusy(nil))
}

func TestCandlesFreshness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts, err := s.GetCandlesFreshness(ctx, "ACME")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	candles := generateTestCandles(5, 100, 1000)
	require.NoError(t, s.SaveCandles(ctx, "ACME", candles))

	ts, err = s.GetCandlesFreshness(ctx, "ACME")
	require.NoError(t, err)
	assert.True(t, ts.Equal(candles[4].Timestamp))
}

func TestGetCandlesOpenRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	candles := generateTestCandles(10, 100, 1000)
	require.NoError(t, s.SaveCandles(ctx, "ACME", candles))
	require.NoError(t, s.SaveCandles(ctx, "OTHER", candles[:3]))

	all, err := s.GetCandles(ctx, "ACME", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 10)

	tail, err := s.GetCandles(ctx, "ACME", candles[7].Timestamp, time.Time{})
	require.NoError(t, err)
	require.Len(t, tail, 3)
	assert.True(t, tail[0].Timestamp.Equal(candles[7].Timestamp))
}

func TestTextItemsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	items := []models.TextItem{
		{ID: "a", Timestamp: base, Title: "Earnings beat", Source: "wire", Category: models.CategoryNews, SentimentScore: 0.6, Subjectivity: 0.4, Scored: true},
		{ID: "b", Timestamp: base.Add(time.Hour), Title: "to the moon", Source: "forum", Category: models.CategorySocial, SentimentScore: 0.9, Scored: true},
		{ID: "c", Timestamp: base.Add(2 * time.Hour), Title: "Guidance cut", Category: models.CategoryNews, SentimentScore: -0.5},
	}
	require.NoError(t, s.SaveTextItems(ctx, "ACME", items))

	got, err := s.GetTextItems(ctx, TextFilter{Symbol: "ACME"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[2].ID)
	assert.Equal(t, models.CategoryNews, got[2].Category)
	assert.InDelta(t, 0.6, got[2].SentimentScore, 1e-12)
	assert.True(t, got[2].Scored)
	assert.False(t, got[0].Scored)
	assert.Equal(t, "", got[0].Source)

	social, err := s.GetTextItems(ctx, TextFilter{Symbol: "ACME", Category: models.CategorySocial})
	require.NoError(t, err)
	require.Len(t, social, 1)
	assert.Equal(t, "to the moon", social[0].Title)

	recent, err := s.GetTextItems(ctx, TextFilter{Symbol: "ACME", Since: base.Add(30 * time.Minute), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)
}

func TestTextItemsDuplicateTitleReplaced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveTextItems(ctx, "ACME", []models.TextItem{{ID: "1", Timestamp: ts, Title: "same", Category: models.CategoryNews}}))
	require.NoError(t, s.SaveTextItems(ctx, "ACME", []models.TextItem{{ID: "2", Timestamp: ts, Title: "same", Category: models.CategoryNews, SentimentScore: 0.3}}))

	got, err := s.GetTextItems(ctx, TextFilter{Symbol: "ACME"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestSaveTextItemsRequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveTextItems(context.Background(), "ACME", []models.TextItem{{Title: "no id"}})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func sampleVerdict(id, symbol string, ts time.Time, decision models.Decision) *models.CouncilVerdict {
	return &models.CouncilVerdict{
		ID:        id,
		Timestamp: ts,
		Symbol:    symbol,
		Agents: []models.AgentVerdict{
			{Name: "Dr. Chart", Role: "Technical Analysis", Vote: models.VoteBullish, Confidence: 0.5, Reasons: []string{"RSI extremely low (25)."}},
			{Name: "Mr. Hype", Role: "Sentiment Analysis", Vote: models.VoteNeutral, Confidence: 0.1, Reasons: []string{"Social media is calm."}},
			{Name: "The Brain", Role: "Quantitative Analysis", Vote: models.VoteBullish, Confidence: 0.8, Reasons: []string{"Model predicts a rise."}},
		},
		Decision: decision,
		Severity: models.SeverityGreen,
		Tally:    models.Tally{Bullish: 2, Neutral: 1},
	}
}

func TestVerdictRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)

	want := sampleVerdict("v1", "ACME", ts, models.DecisionBuy)
	require.NoError(t, s.SaveVerdict(ctx, want))

	got, err := s.GetVerdictByID(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(ts))
	got.Timestamp = want.Timestamp
	assert.Equal(t, want, got)
}

func TestGetVerdictByIDMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetVerdictByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestGetVerdictsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("v1", "ACME", base, models.DecisionBuy)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("v2", "ACME", base.AddDate(0, 0, 1), models.DecisionHold)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("v3", "ACME", base.AddDate(0, 0, 2), models.DecisionBuy)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("v4", "OTHER", base, models.DecisionSell)))

	all, err := s.GetVerdicts(ctx, VerdictFilter{Symbol: "ACME"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "v3", all[0].ID)

	limited, err := s.GetVerdicts(ctx, VerdictFilter{Symbol: "ACME", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	buys, err := s.GetVerdicts(ctx, VerdictFilter{Decision: models.DecisionBuy})
	require.NoError(t, err)
	assert.Len(t, buys, 2)

	ranged, err := s.GetVerdicts(ctx, VerdictFilter{StartDate: base.AddDate(0, 0, 1), EndDate: base.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "v2", ranged[0].ID)
}
