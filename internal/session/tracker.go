package session

import (
	"log/slog"
	"time"

	"github.com/colmduffy/recallrank/internal/deck"
	"github.com/colmduffy/recallrank/internal/domain"
)

// Tracker records review outcomes against the card store and answers
// same-day session queries. It is the only writer of card state.
type Tracker struct {
	store *deck.Store
	now   func() time.Time
}

// NewTracker creates a tracker over the given store.
func NewTracker(store *deck.Store) *Tracker {
	return &Tracker{
		store: store,
		now:   time.Now,
	}
}

// RecordOutcome records one review: sets the review timestamp, bumps the
// counters, appends a study log entry carrying the recall probability that
// was tested, and persists the whole update synchronously before
// returning. recallProb must be the model's prediction computed before
// this mutation.
func (t *Tracker) RecordOutcome(cardID int64, correct bool, recallProb float64) error {
	entry := domain.StudyLogEntry{
		CardID:            cardID,
		Timestamp:         t.now(),
		Correct:           correct,
		RecallProbability: recallProb,
	}

	card, err := t.store.ApplyOutcome(cardID, correct, entry)
	if err != nil {
		return err
	}

	if err := t.store.PersistReview(card, entry); err != nil {
		return err
	}

	slog.Info("review recorded",
		"card_id", cardID,
		"correct", correct,
		"recall_probability", recallProb,
		"num_reviews", card.NumReviews,
	)
	return nil
}

// SessionStats counts the reviews recorded on the current calendar day
// (local date boundary). This is a same-day rolling count, not lifetime.
func (t *Tracker) SessionStats() domain.SessionStats {
	today := t.now().Local()
	ty, tm, td := today.Date()

	var stats domain.SessionStats
	for _, e := range t.store.Log() {
		y, m, d := e.Timestamp.Local().Date()
		if y != ty || m != tm || d != td {
			continue
		}
		stats.Total++
		if e.Correct {
			stats.Correct++
		}
	}
	if stats.Total > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.Total)
	}
	return stats
}

// Reset wipes all learning progress and persists the cleared state.
func (t *Tracker) Reset() error {
	if err := t.store.Reset(); err != nil {
		return err
	}
	slog.Info("learning progress reset", "cards", t.store.Len())
	return nil
}
