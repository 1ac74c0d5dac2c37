package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/colmduffy/recallrank/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveReviewRoundTrip(t *testing.T) {
	db := openTestDB(t)

	when := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	card := domain.CardRecord{
		CardID:        1,
		Question:      "What does SELECT do?",
		Difficulty:    2,
		LastReview:    &when,
		NumReviews:    1,
		CorrectCount:  1,
		TotalAttempts: 1,
	}
	entry := domain.StudyLogEntry{CardID: 1, Timestamp: when, Correct: true, RecallProbability: 0.71}

	if err := db.SaveReview(card, entry); err != nil {
		t.Fatalf("SaveReview failed: %v", err)
	}

	states, err := db.LoadStates()
	if err != nil {
		t.Fatalf("LoadStates failed: %v", err)
	}
	got, ok := states[1]
	if !ok {
		t.Fatal("Expected card 1 in persisted states")
	}
	if got.NumReviews != 1 || got.CorrectCount != 1 || got.TotalAttempts != 1 {
		t.Errorf("Expected counters 1/1/1, got %d/%d/%d", got.NumReviews, got.CorrectCount, got.TotalAttempts)
	}
	if got.LastReview == nil || !got.LastReview.Equal(when) {
		t.Errorf("Expected last review %v, got %v", when, got.LastReview)
	}

	log, err := db.LoadLog()
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(log))
	}
	if log[0].CardID != 1 || !log[0].Correct || log[0].RecallProbability != 0.71 {
		t.Errorf("Unexpected log entry: %+v", log[0])
	}
}

func TestSaveReviewUpserts(t *testing.T) {
	db := openTestDB(t)

	when := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	card := domain.CardRecord{CardID: 1, Question: "q", Difficulty: 3, LastReview: &when, NumReviews: 1, TotalAttempts: 1}
	entry := domain.StudyLogEntry{CardID: 1, Timestamp: when, Correct: false, RecallProbability: 0.4}
	if err := db.SaveReview(card, entry); err != nil {
		t.Fatalf("SaveReview failed: %v", err)
	}

	later := when.Add(time.Hour)
	card.LastReview = &later
	card.NumReviews = 2
	card.TotalAttempts = 2
	card.CorrectCount = 1
	entry.Timestamp = later
	entry.Correct = true
	if err := db.SaveReview(card, entry); err != nil {
		t.Fatalf("Second SaveReview failed: %v", err)
	}

	states, _ := db.LoadStates()
	if len(states) != 1 {
		t.Fatalf("Expected 1 state row, got %d", len(states))
	}
	if states[1].NumReviews != 2 || states[1].CorrectCount != 1 {
		t.Errorf("Expected updated counters 2/1, got %d/%d", states[1].NumReviews, states[1].CorrectCount)
	}

	log, _ := db.LoadLog()
	if len(log) != 2 {
		t.Fatalf("Expected the log to append, got %d entries", len(log))
	}
	if !log[0].Timestamp.Before(log[1].Timestamp) {
		t.Error("Expected log entries in append order")
	}
}

func TestSaveAllAndNullLastReview(t *testing.T) {
	db := openTestDB(t)

	cards := []domain.CardRecord{
		{CardID: 1, Question: "q1", Difficulty: 1},
		{CardID: 2, Question: "q2", Difficulty: 5, NumReviews: 4, CorrectCount: 2, TotalAttempts: 4},
	}
	if err := db.SaveAll(cards); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	states, err := db.LoadStates()
	if err != nil {
		t.Fatalf("LoadStates failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("Expected 2 state rows, got %d", len(states))
	}
	if states[1].LastReview != nil {
		t.Errorf("Expected nil last review for a never-reviewed card, got %v", states[1].LastReview)
	}
	if states[2].NumReviews != 4 {
		t.Errorf("Expected 4 reviews for card 2, got %d", states[2].NumReviews)
	}
}

func TestReset(t *testing.T) {
	db := openTestDB(t)

	when := time.Now().UTC()
	card := domain.CardRecord{CardID: 1, Question: "q", Difficulty: 2, LastReview: &when, NumReviews: 1, TotalAttempts: 1}
	entry := domain.StudyLogEntry{CardID: 1, Timestamp: when, Correct: true, RecallProbability: 0.6}
	if err := db.SaveReview(card, entry); err != nil {
		t.Fatalf("SaveReview failed: %v", err)
	}

	if err := db.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	states, _ := db.LoadStates()
	if len(states) != 0 {
		t.Errorf("Expected no state rows after reset, got %d", len(states))
	}
	log, _ := db.LoadLog()
	if len(log) != 0 {
		t.Errorf("Expected empty log after reset, got %d entries", len(log))
	}
}
