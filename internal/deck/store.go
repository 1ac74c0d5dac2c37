package deck

import (
	"fmt"

	"github.com/colmduffy/recallrank/internal/domain"
)

// Persister is the durable storage boundary for card state and the study
// log. Writes are synchronous: a nil return means the data is durable.
type Persister interface {
	// LoadStates returns previously persisted mutable state keyed by card id.
	LoadStates() (map[int64]domain.CardRecord, error)
	// LoadLog returns the full study log in append order.
	LoadLog() ([]domain.StudyLogEntry, error)
	// SaveReview durably records one review: the card's updated state and
	// the matching log entry, atomically.
	SaveReview(card domain.CardRecord, entry domain.StudyLogEntry) error
	// SaveAll durably writes the state of every card.
	SaveAll(cards []domain.CardRecord) error
	// Reset durably clears all mutable state and the study log.
	Reset() error
}

// Store is the in-memory registry of all cards and the study log. It is
// the single owner of both; the session tracker is the only writer. The
// store is not safe for concurrent writers.
type Store struct {
	db    Persister
	cards map[int64]*domain.CardRecord
	order []int64 // deck-file order, preserved for stable scheduling
	log   []domain.StudyLogEntry
}

// NewStore creates an empty store backed by the given persister.
func NewStore(db Persister) *Store {
	return &Store{
		db:    db,
		cards: make(map[int64]*domain.CardRecord),
	}
}

// Load registers the deck content and overlays any previously persisted
// mutable state for matching ids. Cards absent from storage keep zeroed
// state; stored state for ids no longer in the deck is ignored.
func (s *Store) Load(cards []domain.CardRecord) error {
	s.cards = make(map[int64]*domain.CardRecord, len(cards))
	s.order = s.order[:0]

	for _, c := range cards {
		c.LastReview = nil
		c.NumReviews = 0
		c.CorrectCount = 0
		c.TotalAttempts = 0
		if _, dup := s.cards[c.CardID]; dup {
			return fmt.Errorf("duplicate card id %d in deck", c.CardID)
		}
		card := c
		s.cards[c.CardID] = &card
		s.order = append(s.order, c.CardID)
	}

	states, err := s.db.LoadStates()
	if err != nil {
		return fmt.Errorf("%w: loading card states: %v", domain.ErrPersistence, err)
	}
	for id, st := range states {
		card, ok := s.cards[id]
		if !ok {
			continue
		}
		card.LastReview = st.LastReview
		card.NumReviews = st.NumReviews
		card.CorrectCount = st.CorrectCount
		card.TotalAttempts = st.TotalAttempts
	}

	log, err := s.db.LoadLog()
	if err != nil {
		return fmt.Errorf("%w: loading study log: %v", domain.ErrPersistence, err)
	}
	s.log = log
	return nil
}

// All returns snapshots of every card in deck-file order.
func (s *Store) All() []domain.CardRecord {
	out := make([]domain.CardRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.cards[id])
	}
	return out
}

// Get returns a snapshot of one card.
func (s *Store) Get(id int64) (domain.CardRecord, error) {
	card, ok := s.cards[id]
	if !ok {
		return domain.CardRecord{}, fmt.Errorf("%w: id %d", domain.ErrUnknownCard, id)
	}
	return *card, nil
}

// Len reports the number of cards in the deck.
func (s *Store) Len() int {
	return len(s.order)
}

// Log returns the study log in append order. The returned slice must not
// be mutated.
func (s *Store) Log() []domain.StudyLogEntry {
	return s.log
}

// ApplyOutcome mutates a card's learning state for one review and returns
// the updated snapshot. Only the session tracker should call this.
func (s *Store) ApplyOutcome(id int64, correct bool, entry domain.StudyLogEntry) (domain.CardRecord, error) {
	card, ok := s.cards[id]
	if !ok {
		return domain.CardRecord{}, fmt.Errorf("%w: id %d", domain.ErrUnknownCard, id)
	}

	when := entry.Timestamp
	card.LastReview = &when
	card.NumReviews++
	card.TotalAttempts++
	if correct {
		card.CorrectCount++
	}
	s.log = append(s.log, entry)

	return *card, nil
}

// PersistReview writes one card's state and its log entry durably.
func (s *Store) PersistReview(card domain.CardRecord, entry domain.StudyLogEntry) error {
	if err := s.db.SaveReview(card, entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Flush writes the full current state durably.
func (s *Store) Flush() error {
	if err := s.db.SaveAll(s.All()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Reset zeroes the mutable state of every card, clears the study log and
// persists the cleared state. Irreversible.
func (s *Store) Reset() error {
	for _, card := range s.cards {
		card.LastReview = nil
		card.NumReviews = 0
		card.CorrectCount = 0
		card.TotalAttempts = 0
	}
	s.log = nil
	if err := s.db.Reset(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}
