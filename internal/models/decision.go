package models

import (
	"strings"
	"time"
)

// Vote is an agent's directional view.
type Vote string

const (
	VoteBullish Vote = "BULLISH"
	VoteBearish Vote = "BEARISH"
	VoteNeutral Vote = "NEUTRAL"
)

// AgentVerdict is the output of one scoring agent.
type AgentVerdict struct {
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Vote       Vote     `json:"vote"`
	Confidence float64  `json:"confidence"` // 0-1
	Reasons    []string `json:"reasons"`
}

// Reason joins the justification notes for display.
func (v AgentVerdict) Reason() string {
	return strings.Join(v.Reasons, " | ")
}

// Decision is the council's aggregate action.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Severity is the display color associated with a decision.
type Severity string

const (
	SeverityGreen Severity = "green"
	SeverityRed   Severity = "red"
	SeverityGray  Severity = "gray"
)

// Tally counts the votes cast in a council run.
type Tally struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

// Total returns the number of votes counted.
func (t Tally) Total() int {
	return t.Bullish + t.Bearish + t.Neutral
}

// CouncilVerdict is the aggregate result of one decision run.
type CouncilVerdict struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Symbol    string         `json:"symbol"`
	Agents    []AgentVerdict `json:"agents"`
	Decision  Decision       `json:"decision"`
	Severity  Severity       `json:"severity"`
	Tally     Tally          `json:"tally"`
}

// Label returns the human-readable decision headline.
func (c CouncilVerdict) Label() string {
	switch c.Decision {
	case DecisionBuy:
		return "BUY (BULLISH)"
	case DecisionSell:
		return "SELL (BEARISH)"
	default:
		return "HOLD (NEUTRAL)"
	}
}
