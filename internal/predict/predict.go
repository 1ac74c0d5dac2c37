package predict

import (
	"math"

	"github.com/colmduffy/recallrank/internal/domain"
)

// Predictor estimates the probability that the learner recalls a card
// right now, given the four model features. Implementations must be
// stateless and return a value in [0, 1].
type Predictor interface {
	Predict(f domain.Features) (float64, error)
}

// Func adapts a plain function to the Predictor interface.
type Func func(f domain.Features) (float64, error)

// Predict implements Predictor.
func (fn Func) Predict(f domain.Features) (float64, error) {
	return fn(f)
}

// sigmoid maps a linear score to (0, 1).
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
