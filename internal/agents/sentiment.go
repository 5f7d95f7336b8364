package agents

import (
	"context"
	"fmt"
	"math"

	"signal-council/internal/models"
	"signal-council/internal/sentiment"
)

// Sentiment thresholds.
const (
	overallThreshold = 0.15
	socialThreshold  = 0.25
)

// SentimentAgent scores the mood of news and social posts.
type SentimentAgent struct {
	BaseAgent
}

// NewSentimentAgent creates a new sentiment analysis agent.
func NewSentimentAgent() *SentimentAgent {
	return &SentimentAgent{
		BaseAgent: NewBaseAgent("Mr. Hype", "Sentiment Analysis"),
	}
}

// Analyze scores the overall and social sentiment means. Confidence is three
// times the magnitude of the overall mean, capped at 1.
func (a *SentimentAgent) Analyze(ctx context.Context, req Request) (*models.AgentVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		return a.CreateVerdict(models.VoteNeutral, 0, []string{"No recent news data found."}), nil
	}

	summary := sentiment.Summarize(req.Items)

	var score float64
	var reasons []string

	switch {
	case summary.OverallMean > overallThreshold:
		score++
		reasons = append(reasons, fmt.Sprintf("Overall sentiment is positive (%.2f).", summary.OverallMean))
	case summary.OverallMean < -overallThreshold:
		score--
		reasons = append(reasons, fmt.Sprintf("Overall sentiment is negative (%.2f).", summary.OverallMean))
	default:
		reasons = append(reasons, fmt.Sprintf("Overall sentiment is neutral (%.2f).", summary.OverallMean))
	}

	if summary.SocialCount > 0 {
		switch {
		case summary.SocialMean > socialThreshold:
			score += 0.5
			reasons = append(reasons, "Retail investors on social media are euphoric.")
		case summary.SocialMean < -socialThreshold:
			score -= 0.5
			reasons = append(reasons, "Retail investors on social media are fearful.")
		default:
			reasons = append(reasons, "Social media is calm.")
		}
	} else {
		reasons = append(reasons, "No social media data available.")
	}

	confidence := math.Min(math.Abs(summary.OverallMean)*3, 1)
	return a.CreateVerdict(voteFromScore(score), confidence, reasons), nil
}
