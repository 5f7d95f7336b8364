// Package sentiment reduces scored text items into summary statistics and
// provides a default lexicon scorer for unscored items.
package sentiment

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"signal-council/internal/models"
)

// Summarize computes arithmetic means of item sentiment overall and per
// category. Empty input or an empty category yields 0 for that mean, and a
// non-finite score counts as 0.
func Summarize(items []models.TextItem) models.SentimentSummary {
	social := models.FilterCategory(items, models.CategorySocial)
	news := models.FilterCategory(items, models.CategoryNews)

	return models.SentimentSummary{
		OverallMean: mean(scores(items)),
		SocialMean:  mean(scores(social)),
		NewsMean:    mean(scores(news)),
		Count:       len(items),
		SocialCount: len(social),
		NewsCount:   len(news),
	}
}

func scores(items []models.TextItem) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		if !math.IsNaN(it.SentimentScore) && !math.IsInf(it.SentimentScore, 0) {
			out[i] = it.SentimentScore
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
