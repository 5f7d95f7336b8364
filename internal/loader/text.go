package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// textRecord is the on-disk form of a text item. A missing sentiment score
// leaves the item unscored so the scorer fills it in.
type textRecord struct {
	ID           string   `json:"id"`
	Timestamp    string   `json:"timestamp"`
	Title        string   `json:"title"`
	Source       string   `json:"source"`
	Category     string   `json:"category"`
	Sentiment    *float64 `json:"sentiment_score"`
	Subjectivity *float64 `json:"subjectivity"`
}

// ParseCategory maps a category name to a Category. Empty input is news.
func ParseCategory(s string) (models.Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "news":
		return models.CategoryNews, nil
	case "social":
		return models.CategorySocial, nil
	default:
		return "", apperrors.NewValidationError("category", s, "must be News or Social")
	}
}

// ReadTextItems parses a JSON array of text items.
func ReadTextItems(r io.Reader) ([]models.TextItem, error) {
	var records []textRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, apperrors.NewDataError("json", "", "failed to parse text items", err)
	}

	items := make([]models.TextItem, 0, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Title) == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("items[%d].title", i), rec.Title, "must not be empty")
		}
		cat, err := ParseCategory(rec.Category)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		item := models.TextItem{
			ID:       rec.ID,
			Title:    rec.Title,
			Source:   rec.Source,
			Category: cat,
		}
		if rec.Timestamp != "" {
			ts, err := parseDate(rec.Timestamp)
			if err != nil {
				return nil, apperrors.NewValidationError(fmt.Sprintf("items[%d].timestamp", i), rec.Timestamp, err.Error())
			}
			item.Timestamp = ts
		}
		if rec.Sentiment != nil {
			item.SentimentScore = *rec.Sentiment
			item.Scored = true
		}
		if rec.Subjectivity != nil {
			item.Subjectivity = *rec.Subjectivity
		}
		items = append(items, item)
	}

	return items, nil
}

// LoadTextItems reads a JSON text item file from disk.
func LoadTextItems(path string) ([]models.TextItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("json", path, "failed to open text file", err)
	}
	defer f.Close()

	items, err := ReadTextItems(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}
