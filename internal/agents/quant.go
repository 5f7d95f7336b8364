package agents

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"signal-council/internal/models"
)

const (
	returnThreshold = 0.005
	seasonalWindow  = 5
	quantConfidence = 0.8
)

// QuantAgent scores the model forecast and the recent seasonal pattern.
// Its confidence is fixed.
type QuantAgent struct {
	BaseAgent
}

// NewQuantAgent creates a new quantitative analysis agent.
func NewQuantAgent() *QuantAgent {
	return &QuantAgent{
		BaseAgent: NewBaseAgent("The Brain", "Quantitative Analysis"),
	}
}

// Analyze scores the predicted return (+/-1 beyond 0.5%) and the last five
// seasonal values (+0.5 when positive on average and rising, -0.5 when
// negative on average).
func (a *QuantAgent) Analyze(ctx context.Context, req Request) (*models.AgentVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var score float64
	var reasons []string

	if req.Prediction == nil || math.IsNaN(req.Prediction.FinalPredictedReturn) || math.IsInf(req.Prediction.FinalPredictedReturn, 0) {
		reasons = append(reasons, "No model forecast available.")
	} else {
		ret := req.Prediction.FinalPredictedReturn
		switch {
		case ret > returnThreshold:
			score++
			reasons = append(reasons, fmt.Sprintf("Model forecasts a rise (+%.2f%%).", ret*100))
		case ret < -returnThreshold:
			score--
			reasons = append(reasons, fmt.Sprintf("Model forecasts a decline (%.2f%%).", ret*100))
		default:
			reasons = append(reasons, fmt.Sprintf("Model expects sideways movement (%.2f%%).", ret*100))
		}
	}

	if req.Decomposition != nil && len(req.Decomposition.Seasonal) > 0 {
		seasonal := req.Decomposition.Seasonal
		recent := seasonal[max(0, len(seasonal)-seasonalWindow):]
		mean := stat.Mean(recent, nil)
		switch {
		case mean > 0 && recent[len(recent)-1] > recent[0]:
			score += 0.5
			reasons = append(reasons, "Cyclical pattern points upward.")
		case mean < 0:
			score -= 0.5
			reasons = append(reasons, "Cyclical pattern points downward.")
		default:
			reasons = append(reasons, "No strong seasonal influence.")
		}
	} else {
		reasons = append(reasons, "Not enough data for cycle analysis.")
	}

	return a.CreateVerdict(voteFromScore(score), quantConfidence, reasons), nil
}
