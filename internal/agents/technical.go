package agents

import (
	"context"
	"fmt"
	"math"

	"signal-council/internal/models"
)

// Technical thresholds.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// TechnicalAgent scores the latest enriched bar with RSI, Bollinger Band and
// MACD rules.
type TechnicalAgent struct {
	BaseAgent
}

// NewTechnicalAgent creates a new technical analysis agent.
func NewTechnicalAgent() *TechnicalAgent {
	return &TechnicalAgent{
		BaseAgent: NewBaseAgent("Dr. Chart", "Technical Analysis"),
	}
}

// Analyze performs technical analysis on the latest bar.
//
// Scoring is additive: RSI below 30 adds 1 and above 70 subtracts 1; a close
// below the lower band adds 1 and above the upper band subtracts 1; MACD
// above its signal adds 0.5, otherwise subtracts 0.5. A score of at least 1
// is BULLISH and at most -1 is BEARISH, with confidence |score|/3. Anything
// in between is NEUTRAL at 0.5.
func (a *TechnicalAgent) Analyze(ctx context.Context, req Request) (*models.AgentVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(req.Bars) == 0 {
		return a.CreateVerdict(models.VoteNeutral, 0, []string{"No price data available."}), nil
	}

	last := req.Bars[len(req.Bars)-1]
	if anyNaN(last.RSI, last.BollingerLower, last.BollingerUpper, last.MACD, last.MACDSignal) {
		return a.CreateVerdict(models.VoteNeutral, 0, []string{"Indicators are undefined on the latest bar."}), nil
	}

	var score float64
	var reasons []string

	switch {
	case last.RSI < rsiOversold:
		score++
		reasons = append(reasons, fmt.Sprintf("RSI extremely low (%.0f), rebound likely.", last.RSI))
	case last.RSI > rsiOverbought:
		score--
		reasons = append(reasons, fmt.Sprintf("RSI extremely high (%.0f), overheating risk.", last.RSI))
	default:
		reasons = append(reasons, fmt.Sprintf("RSI is neutral (%.0f).", last.RSI))
	}

	switch {
	case last.Close < last.BollingerLower:
		score++
		reasons = append(reasons, "Price below lower Bollinger Band (buy signal).")
	case last.Close > last.BollingerUpper:
		score--
		reasons = append(reasons, "Price above upper Bollinger Band (sell signal).")
	}

	if last.MACD > last.MACDSignal {
		score += 0.5
		reasons = append(reasons, "MACD trend is positive.")
	} else {
		score -= 0.5
		reasons = append(reasons, "MACD trend is negative.")
	}

	switch {
	case score >= 1:
		return a.CreateVerdict(models.VoteBullish, math.Min(math.Abs(score)/3, 1), reasons), nil
	case score <= -1:
		return a.CreateVerdict(models.VoteBearish, math.Min(math.Abs(score)/3, 1), reasons), nil
	default:
		return a.CreateVerdict(models.VoteNeutral, 0.5, reasons), nil
	}
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
