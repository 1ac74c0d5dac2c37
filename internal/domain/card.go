package domain

import "time"

// CardRecord is the persisted learning state of a single flashcard.
// Identity and content are fixed at load time; only the review counters
// and LastReview change, and only through the session tracker.
type CardRecord struct {
	CardID     int64
	Question   string
	Answer     string
	Difficulty int // 1 (easiest) to 5 (hardest)

	LastReview    *time.Time // nil until the first review
	NumReviews    int
	CorrectCount  int
	TotalAttempts int
}

// PastAccuracy is the card's historical correct rate, defaulting to 0.5
// for cards that have never been attempted.
func (c CardRecord) PastAccuracy() float64 {
	if c.TotalAttempts == 0 {
		return 0.5
	}
	return float64(c.CorrectCount) / float64(c.TotalAttempts)
}

// Features are the four inputs the recall predictor was trained on.
type Features struct {
	DaysSinceReview float64
	NumReviews      int
	PastAccuracy    float64
	Difficulty      int
}

// StudyLogEntry records a single review outcome. Entries are append-only.
// RecallProbability is the model's raw prediction immediately before the
// outcome was recorded, i.e. the probability that was tested.
type StudyLogEntry struct {
	CardID            int64
	Timestamp         time.Time
	Correct           bool
	RecallProbability float64
}

// ScheduledCard pairs a card snapshot with the result of one scheduling
// query. It is transient and never persisted.
type ScheduledCard struct {
	Card              CardRecord
	RecallProbability float64
	Priority          float64 // 1 - RecallProbability; higher = review sooner
}

// PriorityReason explains a scheduled card's rank in plain language.
func (s ScheduledCard) PriorityReason() string {
	switch {
	case s.RecallProbability < 0.3:
		return "High risk of forgetting!"
	case s.RecallProbability < 0.5:
		return "Moderate risk of forgetting"
	case s.RecallProbability < 0.7:
		return "Good retention, but review helps"
	default:
		return "Strong memory - low priority"
	}
}

// SessionStats summarises the reviews recorded on one calendar day.
type SessionStats struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}
