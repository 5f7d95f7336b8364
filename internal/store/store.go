// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"signal-council/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error)

	// Text items
	SaveTextItems(ctx context.Context, symbol string, items []models.TextItem) error
	GetTextItems(ctx context.Context, filter TextFilter) ([]models.TextItem, error)

	// Council verdicts
	SaveVerdict(ctx context.Context, verdict *models.CouncilVerdict) error
	GetVerdicts(ctx context.Context, filter VerdictFilter) ([]models.CouncilVerdict, error)
	GetVerdictByID(ctx context.Context, id string) (*models.CouncilVerdict, error)

	// Lifecycle
	Close() error
}

// TextFilter represents filters for querying text items.
type TextFilter struct {
	Symbol   string
	Category models.Category
	Since    time.Time
	Limit    int
}

// VerdictFilter represents filters for querying verdicts.
type VerdictFilter struct {
	Symbol    string
	Decision  models.Decision
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
