package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/colmduffy/recallrank/internal/domain"
)

// DB represents a wrapper around the SQL database connection. It
// implements the deck.Persister boundary.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// LoadStates retrieves the persisted mutable state of every card, keyed
// by card id. Only the mutable fields of the returned records are set.
func (db *DB) LoadStates() (map[int64]domain.CardRecord, error) {
	rows, err := db.conn.Query(`
		SELECT card_id, last_review, num_reviews, correct_count, total_attempts
		FROM card_states
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load card states: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]domain.CardRecord)
	for rows.Next() {
		var (
			card       domain.CardRecord
			lastReview sql.NullTime
		)
		if err := rows.Scan(&card.CardID, &lastReview, &card.NumReviews, &card.CorrectCount, &card.TotalAttempts); err != nil {
			return nil, fmt.Errorf("failed to scan card state row: %w", err)
		}
		if lastReview.Valid {
			t := lastReview.Time
			card.LastReview = &t
		}
		states[card.CardID] = card
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card states: %w", err)
	}
	return states, nil
}

// LoadLog retrieves the full study log in append order.
func (db *DB) LoadLog() ([]domain.StudyLogEntry, error) {
	rows, err := db.conn.Query(`
		SELECT card_id, reviewed_at, correct, recall_probability
		FROM study_log
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load study log: %w", err)
	}
	defer rows.Close()

	var log []domain.StudyLogEntry
	for rows.Next() {
		var e domain.StudyLogEntry
		if err := rows.Scan(&e.CardID, &e.Timestamp, &e.Correct, &e.RecallProbability); err != nil {
			return nil, fmt.Errorf("failed to scan study log row: %w", err)
		}
		log = append(log, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read study log: %w", err)
	}
	return log, nil
}

// SaveReview durably records one review. The card's state and the log
// entry are written in a single transaction so the durable write is
// atomic per call.
func (db *DB) SaveReview(card domain.CardRecord, entry domain.StudyLogEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertState(tx, card); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO study_log (card_id, reviewed_at, correct, recall_probability)
		VALUES (?, ?, ?, ?)
	`, entry.CardID, entry.Timestamp, entry.Correct, entry.RecallProbability)
	if err != nil {
		return fmt.Errorf("failed to append study log for card %d: %w", entry.CardID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for card %d: %w", card.CardID, err)
	}
	return nil
}

// SaveAll durably writes the state of every card in one transaction.
func (db *DB) SaveAll(cards []domain.CardRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin flush transaction: %w", err)
	}
	defer tx.Rollback()

	for _, card := range cards {
		if err := upsertState(tx, card); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flush: %w", err)
	}
	return nil
}

// Reset clears all persisted card state and the study log.
func (db *DB) Reset() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM study_log`); err != nil {
		return fmt.Errorf("failed to clear study log: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM card_states`); err != nil {
		return fmt.Errorf("failed to clear card states: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

func upsertState(tx *sql.Tx, card domain.CardRecord) error {
	var lastReview sql.NullTime
	if card.LastReview != nil {
		lastReview = sql.NullTime{Time: *card.LastReview, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO card_states (card_id, question, difficulty, last_review, num_reviews, correct_count, total_attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			question = excluded.question,
			difficulty = excluded.difficulty,
			last_review = excluded.last_review,
			num_reviews = excluded.num_reviews,
			correct_count = excluded.correct_count,
			total_attempts = excluded.total_attempts
	`,
		card.CardID,
		card.Question,
		card.Difficulty,
		lastReview,
		card.NumReviews,
		card.CorrectCount,
		card.TotalAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to save state for card %d: %w", card.CardID, err)
	}
	return nil
}
