package cardsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/colmduffy/recallrank/internal/domain"
)

// A deck file is CSV with a header row:
// card_id,question,answer,difficulty
var expectedColumns = []string{"card_id", "question", "answer", "difficulty"}

var validate = validator.New()

type row struct {
	CardID     int64  `validate:"gt=0"`
	Question   string `validate:"required"`
	Answer     string `validate:"required"`
	Difficulty int    `validate:"min=1,max=5"`
}

// LoadFile reads a deck file from the given path and returns its cards
// with zeroed learning state.
func LoadFile(path string) ([]domain.CardRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cards, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("deck file %s: %w", path, err)
	}
	return cards, nil
}

// Load reads deck CSV from an io.Reader and extracts all cards.
func Load(r io.Reader) ([]domain.CardRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(expectedColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, want := range expectedColumns {
		if header[i] != want {
			return nil, fmt.Errorf("header column %d is %q, want %q", i+1, header[i], want)
		}
	}

	var cards []domain.CardRecord
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		card, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func parseRow(record []string) (domain.CardRecord, error) {
	id, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return domain.CardRecord{}, fmt.Errorf("bad card_id %q: %w", record[0], err)
	}
	difficulty, err := strconv.Atoi(record[3])
	if err != nil {
		return domain.CardRecord{}, fmt.Errorf("bad difficulty %q: %w", record[3], err)
	}

	parsed := row{
		CardID:     id,
		Question:   record[1],
		Answer:     record[2],
		Difficulty: difficulty,
	}
	if err := validate.Struct(&parsed); err != nil {
		return domain.CardRecord{}, fmt.Errorf("invalid card %d: %w", id, err)
	}

	return domain.CardRecord{
		CardID:     parsed.CardID,
		Question:   parsed.Question,
		Answer:     parsed.Answer,
		Difficulty: parsed.Difficulty,
	}, nil
}
