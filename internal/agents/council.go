package agents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/logging"
	"signal-council/internal/models"
)

// Council runs its agents in parallel and combines their votes by
// unweighted majority. Agent confidence is reported but never weighs in.
type Council struct {
	agents []Agent
	logger zerolog.Logger
	now    func() time.Time
}

// NewCouncil creates a council of the given agents. With no agents it
// seats the technical, sentiment and quant agents, in that order.
func NewCouncil(agents ...Agent) *Council {
	if len(agents) == 0 {
		agents = []Agent{NewTechnicalAgent(), NewSentimentAgent(), NewQuantAgent()}
	}
	return &Council{
		agents: agents,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// WithLogger sets the logger used for vote and verdict events.
func (c *Council) WithLogger(logger zerolog.Logger) *Council {
	c.logger = logger
	return c
}

// Agents returns the seated agents in vote order.
func (c *Council) Agents() []Agent {
	return c.agents
}

// agentResult holds the result from a single agent.
type agentResult struct {
	verdict *models.AgentVerdict
	err     error
}

// Verdict evaluates every agent concurrently and returns the aggregate
// decision. Agent verdicts keep the council's seating order.
func (c *Council) Verdict(ctx context.Context, req Request) (*models.CouncilVerdict, error) {
	results := iter.Map(c.agents, func(a *Agent) agentResult {
		v, err := (*a).Analyze(ctx, req)
		return agentResult{verdict: v, err: err}
	})

	verdicts := make([]models.AgentVerdict, 0, len(results))
	votes := make([]models.Vote, 0, len(results))
	for i, r := range results {
		name := c.agents[i].Name()
		if r.err != nil {
			return nil, apperrors.NewAgentError(name, "analyze", r.err)
		}
		if r.verdict == nil {
			return nil, apperrors.NewAgentError(name, "analyze", apperrors.ErrDataNotFound)
		}
		logging.LogVote(logging.WithAgent(c.logger, name), *r.verdict)
		verdicts = append(verdicts, *r.verdict)
		votes = append(votes, r.verdict.Vote)
	}

	decision, severity, tally := Decide(votes)

	verdict := &models.CouncilVerdict{
		ID:        uuid.NewString(),
		Timestamp: c.now(),
		Symbol:    req.Symbol,
		Agents:    verdicts,
		Decision:  decision,
		Severity:  severity,
		Tally:     tally,
	}
	logging.LogVerdict(c.logger, verdict)

	return verdict, nil
}

// Decide counts votes and applies the majority rule: more bullish than
// bearish is BUY, the reverse is SELL, and any tie is HOLD. Neutral votes
// are counted but favor neither side.
func Decide(votes []models.Vote) (models.Decision, models.Severity, models.Tally) {
	var tally models.Tally
	for _, v := range votes {
		switch v {
		case models.VoteBullish:
			tally.Bullish++
		case models.VoteBearish:
			tally.Bearish++
		default:
			tally.Neutral++
		}
	}

	switch {
	case tally.Bullish > tally.Bearish:
		return models.DecisionBuy, models.SeverityGreen, tally
	case tally.Bearish > tally.Bullish:
		return models.DecisionSell, models.SeverityRed, tally
	default:
		return models.DecisionHold, models.SeverityGray, tally
	}
}
