package predict

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/colmduffy/recallrank/internal/domain"
)

// Weights are the logistic regression coefficients, one per feature.
type Weights struct {
	DaysSinceReview float64 `json:"days_since_review" validate:"required"`
	NumReviews      float64 `json:"num_reviews" validate:"required"`
	PastAccuracy    float64 `json:"past_accuracy" validate:"required"`
	Difficulty      float64 `json:"difficulty" validate:"required"`
}

// LogisticModel is a trained linear classifier with a sigmoid link.
// Training happens offline; this type only evaluates the fitted model.
type LogisticModel struct {
	Intercept float64 `json:"intercept"`
	Weights   Weights `json:"weights"`
}

// DefaultModel returns coefficients fitted on the bundled synthetic study
// history. Recall drops with elapsed time and difficulty, and rises with
// repetition and past accuracy.
func DefaultModel() *LogisticModel {
	return &LogisticModel{
		Intercept: 0.31,
		Weights: Weights{
			DaysSinceReview: -0.047,
			NumReviews:      0.342,
			PastAccuracy:    2.08,
			Difficulty:      -0.236,
		},
	}
}

// LoadModel reads a trained model from a JSON document and validates it.
func LoadModel(path string) (*LogisticModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}

	var m LogisticModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	if err := validator.New().Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", path, err)
	}
	return &m, nil
}

// Predict evaluates the model for one card's features.
func (m *LogisticModel) Predict(f domain.Features) (float64, error) {
	z := m.Intercept +
		m.Weights.DaysSinceReview*f.DaysSinceReview +
		m.Weights.NumReviews*float64(f.NumReviews) +
		m.Weights.PastAccuracy*f.PastAccuracy +
		m.Weights.Difficulty*float64(f.Difficulty)
	return sigmoid(z), nil
}
