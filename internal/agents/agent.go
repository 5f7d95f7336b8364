// Package agents provides the scoring agents and the council that combines
// their votes into one verdict.
package agents

import (
	"context"
	"math"

	"signal-council/internal/models"
)

// Agent defines the interface for scoring agents. Agents are stateless per
// call and must not fail on missing optional input; they fall back to a
// NEUTRAL vote with an explanatory reason instead.
type Agent interface {
	// Name returns the display name of the agent.
	Name() string
	// Role returns the agent's discipline.
	Role() string
	// Analyze scores the request and returns a verdict.
	Analyze(ctx context.Context, req Request) (*models.AgentVerdict, error)
}

// Request carries every input an agent may consume. Agents read only the
// fields relevant to them and never mutate the request.
type Request struct {
	Symbol        string
	Bars          []models.EnrichedBar
	Items         []models.TextItem
	Prediction    *models.PredictionResult // nil when no forecast is available
	Decomposition *models.Decomposition    // nil when the series was too short
}

// BaseAgent provides common functionality for all agents.
type BaseAgent struct {
	name string
	role string
}

// NewBaseAgent creates a new base agent with the given name and role.
func NewBaseAgent(name, role string) BaseAgent {
	return BaseAgent{name: name, role: role}
}

// Name returns the agent's name.
func (b *BaseAgent) Name() string {
	return b.name
}

// Role returns the agent's role.
func (b *BaseAgent) Role() string {
	return b.role
}

// CreateVerdict creates a verdict with the agent's identity populated.
func (b *BaseAgent) CreateVerdict(vote models.Vote, confidence float64, reasons []string) *models.AgentVerdict {
	return &models.AgentVerdict{
		Name:       b.name,
		Role:       b.role,
		Vote:       vote,
		Confidence: ClampConfidence(confidence),
		Reasons:    reasons,
	}
}

// ClampConfidence ensures confidence is within valid range [0, 1].
func ClampConfidence(confidence float64) float64 {
	if math.IsNaN(confidence) || confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// voteFromScore applies the symmetric half-point thresholds shared by the
// sentiment and quant agents.
func voteFromScore(score float64) models.Vote {
	switch {
	case score > 0.5:
		return models.VoteBullish
	case score < -0.5:
		return models.VoteBearish
	default:
		return models.VoteNeutral
	}
}
