package classifier

import (
	"errors"
	"fmt"
	"math"
)

// ErrModelContract reports a mismatch between the score vector produced by
// the artifact and the label table shipped with it.
var ErrModelContract = errors.New("model contract violation")

// Result is the outcome of a single forward pass.
type Result struct {
	Label      string             `json:"label"`
	Confidence float32            `json:"confidence"`
	Scores     map[string]float32 `json:"scores"`
}

// decide maps a raw score vector onto the label table. Scores that do not
// already form a probability distribution are passed through a softmax so
// the confidence always lands in [0,1].
func decide(scores []float32, labels []string) (*Result, error) {
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("%w: %d scores for %d labels", ErrModelContract, len(scores), len(labels))
	}

	probs := scores
	if !isDistribution(scores) {
		probs = softmax(scores)
	}

	maxIdx := 0
	perLabel := make(map[string]float32, len(labels))
	for i, p := range probs {
		perLabel[labels[i]] = p
		if p > probs[maxIdx] {
			maxIdx = i
		}
	}

	return &Result{
		Label:      labels[maxIdx],
		Confidence: probs[maxIdx],
		Scores:     perLabel,
	}, nil
}

func isDistribution(scores []float32) bool {
	var sum float32
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += s
	}
	return sum > 0.99 && sum < 1.01
}

func softmax(scores []float32) []float32 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float32, len(scores))
	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - max))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
