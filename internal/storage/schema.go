package storage

const schema = `
-- The 'card_states' table holds the mutable learning state of each card.
-- Content identity lives in the deck file; question and difficulty are
-- stored alongside for inspection only.
CREATE TABLE IF NOT EXISTS card_states (
    card_id INTEGER PRIMARY KEY,
    question TEXT NOT NULL,
    difficulty INTEGER NOT NULL,
    last_review DATETIME,
    num_reviews INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    total_attempts INTEGER NOT NULL DEFAULT 0
);

-- The 'study_log' table is append-only: one row per recorded review,
-- with the recall probability that was tested.
CREATE TABLE IF NOT EXISTS study_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,
    correct INTEGER NOT NULL,
    recall_probability REAL NOT NULL
);
`
