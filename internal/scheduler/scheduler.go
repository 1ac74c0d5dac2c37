package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/colmduffy/recallrank/internal/deck"
	"github.com/colmduffy/recallrank/internal/domain"
	"github.com/colmduffy/recallrank/internal/features"
	"github.com/colmduffy/recallrank/internal/predict"
	"github.com/colmduffy/recallrank/internal/session"
)

// The trained model under-penalizes raw difficulty, so a per-tier
// multiplier corrects its output: easy tiers amplify recall, hard tiers
// dampen it.
var difficultyModifiers = map[int]float64{
	1: 1.15,
	2: 1.0,
	3: 0.75,
	4: 0.55,
	5: 0.40,
}

// Per-tier linear decay rates: harder cards are forgotten faster.
var timeDecayRates = map[int]float64{
	1: 0.02,
	2: 0.04,
	3: 0.07,
	4: 0.10,
	5: 0.15,
}

const (
	// timeDecayFloor keeps the decay factor positive for cards untouched
	// for a long time.
	timeDecayFloor = 0.3

	// wrongAnswerPenalty compounds per consecutive miss within the running
	// process. Never persisted.
	wrongAnswerPenalty = 0.35

	// The engine never claims certainty in either direction.
	minRecallProb = 0.05
	maxRecallProb = 0.95
)

// Scheduler ranks the deck by estimated risk of forgetting. It combines
// the recall predictor's output with deterministic heuristic multipliers
// and owns the transient recent-miss penalties.
type Scheduler struct {
	store     *deck.Store
	predictor predict.Predictor
	tracker   *session.Tracker

	recentMiss map[int64]float64
	now        func() time.Time
}

// New creates a scheduler. The heuristic tables must cover difficulty
// tiers 1 through 5 exhaustively; a gap is a programming error caught
// here rather than at scheduling time.
func New(store *deck.Store, predictor predict.Predictor, tracker *session.Tracker) (*Scheduler, error) {
	for tier := 1; tier <= 5; tier++ {
		if _, ok := difficultyModifiers[tier]; !ok {
			return nil, fmt.Errorf("difficulty modifier table missing tier %d", tier)
		}
		if _, ok := timeDecayRates[tier]; !ok {
			return nil, fmt.Errorf("time decay table missing tier %d", tier)
		}
	}
	return &Scheduler{
		store:      store,
		predictor:  predictor,
		tracker:    tracker,
		recentMiss: make(map[int64]float64),
		now:        time.Now,
	}, nil
}

// Schedule returns at most n cards ranked by priority, highest first.
// Cards below minPriority are excluded before truncation. The sort is
// stable: equal priorities keep deck-file order. Scheduling performs no
// mutation, so repeated calls with the same state are identical.
func (s *Scheduler) Schedule(n int, minPriority float64) ([]domain.ScheduledCard, error) {
	now := s.now()
	var scheduled []domain.ScheduledCard

	for _, card := range s.store.All() {
		sc, err := s.score(card, now)
		if err != nil {
			return nil, err
		}
		if sc.Priority >= minPriority {
			scheduled = append(scheduled, sc)
		}
	}

	sort.SliceStable(scheduled, func(i, j int) bool {
		return scheduled[i].Priority > scheduled[j].Priority
	})
	if len(scheduled) > n {
		scheduled = scheduled[:n]
	}
	return scheduled, nil
}

// Next returns the single most urgent card, or nil for an empty deck.
func (s *Scheduler) Next() (*domain.ScheduledCard, error) {
	cards, err := s.Schedule(1, 0)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, nil
	}
	return &cards[0], nil
}

// score computes one card's final recall probability and priority.
func (s *Scheduler) score(card domain.CardRecord, now time.Time) (domain.ScheduledCard, error) {
	f := features.Derive(card, now)
	prob, err := s.basePredict(f)
	if err != nil {
		return domain.ScheduledCard{}, err
	}

	diffModifier, ok := difficultyModifiers[card.Difficulty]
	if !ok {
		return domain.ScheduledCard{}, fmt.Errorf("card %d: difficulty %d outside tiers 1-5", card.CardID, card.Difficulty)
	}
	prob *= diffModifier

	decayRate := timeDecayRates[card.Difficulty]
	prob *= math.Max(timeDecayFloor, 1.0-f.DaysSinceReview*decayRate)

	// Cards answered wrong more often have lower recall:
	// 0% accuracy -> 0.4x, 50% -> 0.7x, 100% -> 1.0x.
	if card.TotalAttempts > 0 {
		prob *= 0.4 + f.PastAccuracy*0.6
	}

	// Each past review adds 5% retention, capped at +25%.
	if f.NumReviews > 0 {
		prob *= math.Min(1.25, 1.0+float64(f.NumReviews)*0.05)
	}

	if penalty, ok := s.recentMiss[card.CardID]; ok {
		prob *= penalty
	}

	prob = math.Max(minRecallProb, math.Min(maxRecallProb, prob))

	return domain.ScheduledCard{
		Card:              card,
		RecallProbability: prob,
		Priority:          1.0 - prob,
	}, nil
}

// basePredict invokes the predictor and enforces its output contract.
func (s *Scheduler) basePredict(f domain.Features) (float64, error) {
	prob, err := s.predictor.Predict(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPrediction, err)
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return 0, fmt.Errorf("%w: predictor returned %v, want [0,1]", domain.ErrPrediction, prob)
	}
	return prob, nil
}

// RecordAnswer records a review outcome. The study log captures the raw
// model probability computed immediately before the mutation; the
// recent-miss penalty compounds on a wrong answer and clears on a
// correct one.
func (s *Scheduler) RecordAnswer(cardID int64, correct bool) error {
	card, err := s.store.Get(cardID)
	if err != nil {
		return err
	}

	prob, err := s.basePredict(features.Derive(card, s.now()))
	if err != nil {
		return err
	}

	if correct {
		delete(s.recentMiss, cardID)
	} else {
		penalty, ok := s.recentMiss[cardID]
		if !ok {
			penalty = 1.0
		}
		s.recentMiss[cardID] = penalty * wrongAnswerPenalty
	}

	return s.tracker.RecordOutcome(cardID, correct, prob)
}

// CardDetails returns a card's snapshot, its derived features and the raw
// model probability with no heuristic adjustments applied.
func (s *Scheduler) CardDetails(cardID int64) (domain.CardRecord, domain.Features, float64, error) {
	card, err := s.store.Get(cardID)
	if err != nil {
		return domain.CardRecord{}, domain.Features{}, 0, err
	}
	f := features.Derive(card, s.now())
	prob, err := s.basePredict(f)
	if err != nil {
		return domain.CardRecord{}, domain.Features{}, 0, err
	}
	return card, f, prob, nil
}

// SessionStats reports today's review counts.
func (s *Scheduler) SessionStats() domain.SessionStats {
	return s.tracker.SessionStats()
}

// Reset wipes all learning progress, including the transient recent-miss
// penalties.
func (s *Scheduler) Reset() error {
	s.recentMiss = make(map[int64]float64)
	return s.tracker.Reset()
}
