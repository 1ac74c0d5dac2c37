package scheduler

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/colmduffy/recallrank/internal/deck"
	"github.com/colmduffy/recallrank/internal/domain"
	"github.com/colmduffy/recallrank/internal/predict"
	"github.com/colmduffy/recallrank/internal/session"
)

// memPersister is an in-memory deck.Persister for tests.
type memPersister struct {
	states     map[int64]domain.CardRecord
	log        []domain.StudyLogEntry
	failWrites bool
}

func (m *memPersister) LoadStates() (map[int64]domain.CardRecord, error) { return m.states, nil }
func (m *memPersister) LoadLog() ([]domain.StudyLogEntry, error)         { return m.log, nil }

func (m *memPersister) SaveReview(card domain.CardRecord, entry domain.StudyLogEntry) error {
	if m.failWrites {
		return errors.New("disk full")
	}
	if m.states == nil {
		m.states = make(map[int64]domain.CardRecord)
	}
	m.states[card.CardID] = card
	m.log = append(m.log, entry)
	return nil
}

func (m *memPersister) SaveAll(cards []domain.CardRecord) error {
	if m.failWrites {
		return errors.New("disk full")
	}
	m.states = make(map[int64]domain.CardRecord)
	for _, c := range cards {
		m.states[c.CardID] = c
	}
	return nil
}

func (m *memPersister) Reset() error {
	if m.failWrites {
		return errors.New("disk full")
	}
	m.states = nil
	m.log = nil
	return nil
}

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, cards []domain.CardRecord, states map[int64]domain.CardRecord, p predict.Predictor) *Scheduler {
	t.Helper()
	store := deck.NewStore(&memPersister{states: states})
	if err := store.Load(cards); err != nil {
		t.Fatalf("Failed to load deck: %v", err)
	}
	s, err := New(store, p, session.NewTracker(store))
	if err != nil {
		t.Fatalf("Failed to build scheduler: %v", err)
	}
	s.now = func() time.Time { return testNow }
	return s
}

func fixedPredictor(prob float64) predict.Predictor {
	return predict.Func(func(domain.Features) (float64, error) { return prob, nil })
}

func TestScheduleNeverReviewedScenario(t *testing.T) {
	// difficulty 1, never reviewed: days=30, reviews=0, accuracy=0.5.
	// base 0.6 * difficulty 1.15 * decay (1 - 30*0.02 = 0.4) = 0.276;
	// accuracy and repetition modifiers are skipped (no attempts, no
	// reviews), so priority = 1 - 0.276 = 0.724.
	cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 1}}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.6))

	got, err := s.Schedule(5, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 card, got %d", len(got))
	}
	if math.Abs(got[0].RecallProbability-0.276) > 1e-9 {
		t.Errorf("Expected recall probability 0.276, got %v", got[0].RecallProbability)
	}
	if math.Abs(got[0].Priority-0.724) > 1e-9 {
		t.Errorf("Expected priority 0.724, got %v", got[0].Priority)
	}
}

func TestTimeDecayFloor(t *testing.T) {
	// Tier-5 card reviewed 100 days ago: 1 - 100*0.15 is far below zero,
	// so the decay factor must floor at exactly 0.3.
	// base 1.0 * difficulty 0.40 * floor 0.3 = 0.12.
	last := testNow.Add(-100 * 24 * time.Hour)
	cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 5}}
	states := map[int64]domain.CardRecord{1: {CardID: 1, LastReview: &last}}
	s := newTestScheduler(t, cards, states, fixedPredictor(1.0))

	got, err := s.Schedule(1, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if math.Abs(got[0].RecallProbability-0.12) > 1e-9 {
		t.Errorf("Expected recall probability 0.12, got %v", got[0].RecallProbability)
	}
}

func TestRepetitionBonusCap(t *testing.T) {
	// Each review adds 5%, capped at +25%. With base 0.5, perfect
	// accuracy, zero elapsed days and tier 2 (modifier 1.0), the final
	// probability is 0.5 * min(1.25, 1+0.05n).
	for _, reviews := range []int{5, 50, 500} {
		last := testNow
		cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 2}}
		states := map[int64]domain.CardRecord{1: {
			CardID:        1,
			LastReview:    &last,
			NumReviews:    reviews,
			CorrectCount:  reviews,
			TotalAttempts: reviews,
		}}
		s := newTestScheduler(t, cards, states, fixedPredictor(0.5))

		got, err := s.Schedule(1, 0)
		if err != nil {
			t.Fatalf("Schedule failed: %v", err)
		}
		if math.Abs(got[0].RecallProbability-0.625) > 1e-9 {
			t.Errorf("reviews=%d: expected capped probability 0.625, got %v", reviews, got[0].RecallProbability)
		}
	}
}

func TestClampBounds(t *testing.T) {
	t.Run("upper", func(t *testing.T) {
		// 1.0 * 1.15 * 1.0 * 1.0 * 1.25 = 1.4375, clamps to 0.95.
		last := testNow
		cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 1}}
		states := map[int64]domain.CardRecord{1: {
			CardID: 1, LastReview: &last, NumReviews: 10, CorrectCount: 10, TotalAttempts: 10,
		}}
		s := newTestScheduler(t, cards, states, fixedPredictor(1.0))

		got, _ := s.Schedule(1, 0)
		if got[0].RecallProbability != 0.95 {
			t.Errorf("Expected clamp at 0.95, got %v", got[0].RecallProbability)
		}
	})

	t.Run("lower", func(t *testing.T) {
		// 0.05 * 0.40 * 0.3 = 0.006, clamps to 0.05.
		last := testNow.Add(-200 * 24 * time.Hour)
		cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 5}}
		states := map[int64]domain.CardRecord{1: {CardID: 1, LastReview: &last}}
		s := newTestScheduler(t, cards, states, fixedPredictor(0.05))

		got, _ := s.Schedule(1, 0)
		if got[0].RecallProbability != 0.05 {
			t.Errorf("Expected clamp at 0.05, got %v", got[0].RecallProbability)
		}
	})
}

func TestScheduleOrderingAndTruncation(t *testing.T) {
	// Harder cards get lower recall, hence higher priority.
	cards := []domain.CardRecord{
		{CardID: 1, Question: "easy", Answer: "a", Difficulty: 1},
		{CardID: 2, Question: "medium", Answer: "a", Difficulty: 3},
		{CardID: 3, Question: "hard", Answer: "a", Difficulty: 5},
	}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.8))

	got, err := s.Schedule(2, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected truncation to 2 cards, got %d", len(got))
	}
	if got[0].Card.CardID != 3 || got[1].Card.CardID != 2 {
		t.Errorf("Expected order [3 2], got [%d %d]", got[0].Card.CardID, got[1].Card.CardID)
	}
	if got[0].Priority < got[1].Priority {
		t.Errorf("Expected non-increasing priority, got %v then %v", got[0].Priority, got[1].Priority)
	}
}

func TestScheduleMinPriorityFilter(t *testing.T) {
	cards := []domain.CardRecord{
		{CardID: 1, Question: "easy", Answer: "a", Difficulty: 1}, // priority 0.724
		{CardID: 2, Question: "hard", Answer: "a", Difficulty: 5}, // priority ~0.928
	}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.6))

	got, err := s.Schedule(10, 0.8)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(got) != 1 || got[0].Card.CardID != 2 {
		t.Errorf("Expected only the hard card above threshold, got %+v", got)
	}
}

func TestScheduleStableOrderOnTies(t *testing.T) {
	// Identical cards produce identical priorities; deck order must hold.
	cards := []domain.CardRecord{
		{CardID: 7, Question: "a", Answer: "a", Difficulty: 2},
		{CardID: 3, Question: "b", Answer: "a", Difficulty: 2},
		{CardID: 9, Question: "c", Answer: "a", Difficulty: 2},
	}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.5))

	got, err := s.Schedule(3, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	wantOrder := []int64{7, 3, 9}
	for i, sc := range got {
		if sc.Card.CardID != wantOrder[i] {
			t.Errorf("Position %d: expected card %d, got %d", i, wantOrder[i], sc.Card.CardID)
		}
	}
}

func TestScheduleEmptyDeck(t *testing.T) {
	s := newTestScheduler(t, nil, nil, fixedPredictor(0.5))
	got, err := s.Schedule(5, 0)
	if err != nil {
		t.Fatalf("Expected no error for empty deck, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty schedule, got %d cards", len(got))
	}
}

func TestScheduleIsIdempotent(t *testing.T) {
	cards := []domain.CardRecord{
		{CardID: 1, Question: "a", Answer: "a", Difficulty: 1},
		{CardID: 2, Question: "b", Answer: "a", Difficulty: 4},
	}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.7))

	first, err := s.Schedule(5, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	second, err := s.Schedule(5, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("Expected identical results, got %d and %d cards", len(first), len(second))
	}
	for i := range first {
		if first[i].Card.CardID != second[i].Card.CardID || first[i].Priority != second[i].Priority {
			t.Errorf("Position %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPredictorContractEnforced(t *testing.T) {
	cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 2}}

	t.Run("out of range output", func(t *testing.T) {
		s := newTestScheduler(t, cards, nil, fixedPredictor(1.5))
		if _, err := s.Schedule(1, 0); !errors.Is(err, domain.ErrPrediction) {
			t.Errorf("Expected ErrPrediction, got %v", err)
		}
	})

	t.Run("NaN output", func(t *testing.T) {
		s := newTestScheduler(t, cards, nil, fixedPredictor(math.NaN()))
		if _, err := s.Schedule(1, 0); !errors.Is(err, domain.ErrPrediction) {
			t.Errorf("Expected ErrPrediction, got %v", err)
		}
	})

	t.Run("predictor failure", func(t *testing.T) {
		failing := predict.Func(func(domain.Features) (float64, error) {
			return 0, errors.New("model unavailable")
		})
		s := newTestScheduler(t, cards, nil, failing)
		if _, err := s.Schedule(1, 0); !errors.Is(err, domain.ErrPrediction) {
			t.Errorf("Expected ErrPrediction, got %v", err)
		}
	})
}

func TestRecentMissPenalty(t *testing.T) {
	cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 2}}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.8))

	if err := s.RecordAnswer(1, false); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if got := s.recentMiss[1]; math.Abs(got-0.35) > 1e-9 {
		t.Errorf("Expected penalty 0.35 after one miss, got %v", got)
	}

	if err := s.RecordAnswer(1, false); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if got := s.recentMiss[1]; math.Abs(got-0.35*0.35) > 1e-9 {
		t.Errorf("Expected compounded penalty 0.1225, got %v", got)
	}

	if err := s.RecordAnswer(1, true); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if _, ok := s.recentMiss[1]; ok {
		t.Error("Expected penalty cleared after a correct answer")
	}
}

func TestRecordAnswerUnknownCard(t *testing.T) {
	s := newTestScheduler(t, nil, nil, fixedPredictor(0.5))
	if err := s.RecordAnswer(99, true); !errors.Is(err, domain.ErrUnknownCard) {
		t.Errorf("Expected ErrUnknownCard, got %v", err)
	}
}

func TestCardDetailsUsesRawProbability(t *testing.T) {
	// CardDetails reports the model output with no heuristic stack.
	cards := []domain.CardRecord{{CardID: 1, Question: "q", Answer: "a", Difficulty: 5}}
	s := newTestScheduler(t, cards, nil, fixedPredictor(0.6))

	card, f, prob, err := s.CardDetails(1)
	if err != nil {
		t.Fatalf("CardDetails failed: %v", err)
	}
	if card.CardID != 1 {
		t.Errorf("Expected card 1, got %d", card.CardID)
	}
	if f.DaysSinceReview != 30.0 || f.PastAccuracy != 0.5 {
		t.Errorf("Unexpected features: %+v", f)
	}
	if prob != 0.6 {
		t.Errorf("Expected raw probability 0.6, got %v", prob)
	}
}

func TestResetRestoresInitialOrdering(t *testing.T) {
	cards := []domain.CardRecord{
		{CardID: 1, Question: "a", Answer: "a", Difficulty: 1},
		{CardID: 2, Question: "b", Answer: "a", Difficulty: 3},
		{CardID: 3, Question: "c", Answer: "a", Difficulty: 5},
	}
	s := newTestScheduler(t, cards, nil, predict.DefaultModel())

	initial, err := s.Schedule(10, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	for _, id := range []int64{1, 3} {
		if err := s.RecordAnswer(id, false); err != nil {
			t.Fatalf("RecordAnswer failed: %v", err)
		}
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(s.recentMiss) != 0 {
		t.Error("Expected recent-miss penalties cleared on reset")
	}

	after, err := s.Schedule(10, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(after) != len(initial) {
		t.Fatalf("Expected %d cards after reset, got %d", len(initial), len(after))
	}
	for i := range initial {
		if after[i].Card.CardID != initial[i].Card.CardID || after[i].Priority != initial[i].Priority {
			t.Errorf("Position %d: expected %+v, got %+v", i, initial[i], after[i])
		}
	}
}
