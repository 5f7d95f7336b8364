package models

import (
	"sort"
	"time"
)

// Category tags a text item as editorial news or peer opinion.
type Category string

const (
	CategoryNews   Category = "News"
	CategorySocial Category = "Social"
)

// TextItem is one headline or social post about the instrument.
type TextItem struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	Category       Category  `json:"category"`
	SentimentScore float64   `json:"sentiment_score"` // -1 to 1
	Subjectivity   float64   `json:"subjectivity"`    // 0 to 1
	Scored         bool      `json:"scored"`
}

// DedupeByTitle drops items whose title exactly matches an earlier item.
func DedupeByTitle(items []TextItem) []TextItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]TextItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Title]; ok {
			continue
		}
		seen[it.Title] = struct{}{}
		out = append(out, it)
	}
	return out
}

// SortByTimeDesc sorts items newest first. The input slice is not modified.
func SortByTimeDesc(items []TextItem) []TextItem {
	out := make([]TextItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// FilterCategory returns the items tagged with the given category.
func FilterCategory(items []TextItem, cat Category) []TextItem {
	var out []TextItem
	for _, it := range items {
		if it.Category == cat {
			out = append(out, it)
		}
	}
	return out
}

// SentimentSummary holds arithmetic means of item sentiment.
// Means default to 0 when the corresponding subset is empty.
type SentimentSummary struct {
	OverallMean float64 `json:"overall_mean"`
	SocialMean  float64 `json:"social_mean"`
	NewsMean    float64 `json:"news_mean"`
	Count       int     `json:"count"`
	SocialCount int     `json:"social_count"`
	NewsCount   int     `json:"news_count"`
}
