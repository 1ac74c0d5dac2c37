package features

import (
	"time"

	"github.com/colmduffy/recallrank/internal/domain"
)

const (
	// defaultDays is the assumed age of a card that has never been reviewed.
	defaultDays = 30.0

	secondsPerDay = 86400.0
)

// Derive computes the model features for a card from its current state.
// It is a pure function of the record and the supplied clock reading.
func Derive(card domain.CardRecord, now time.Time) domain.Features {
	return domain.Features{
		DaysSinceReview: daysSinceReview(card, now),
		NumReviews:      card.NumReviews,
		PastAccuracy:    card.PastAccuracy(),
		Difficulty:      card.Difficulty,
	}
}

// daysSinceReview returns the fractional days since the last review, never
// negative. Cards that were never reviewed count as defaultDays old.
func daysSinceReview(card domain.CardRecord, now time.Time) float64 {
	if card.LastReview == nil {
		return defaultDays
	}
	days := now.Sub(*card.LastReview).Seconds() / secondsPerDay
	if days < 0 {
		return 0
	}
	return days
}
