package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/colmduffy/recallrank/internal/domain"
	"github.com/colmduffy/recallrank/internal/predict"
	"github.com/colmduffy/recallrank/internal/scheduler"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	sched  *scheduler.Scheduler
	model  *predict.LogisticModel
	router *http.ServeMux
}

// NewServer creates and configures a new server. model may be nil when a
// custom predictor is in use; /api/model-info then reports 404.
func NewServer(sched *scheduler.Scheduler, model *predict.LogisticModel) *Server {
	s := &Server{
		sched:  sched,
		model:  model,
		router: http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/next-card", s.handleNextCard())
	s.router.HandleFunc("/api/answer", s.handleAnswer())
	s.router.HandleFunc("/api/stats", s.handleStats())
	s.router.HandleFunc("/api/all-cards", s.handleAllCards())
	s.router.HandleFunc("/api/card/", s.handleCardDetails())
	s.router.HandleFunc("/api/model-info", s.handleModelInfo())
	s.router.HandleFunc("/api/reset", s.handleReset())
}

type cardPayload struct {
	CardID            int64          `json:"card_id"`
	Question          string         `json:"question"`
	Answer            string         `json:"answer"`
	Difficulty        int            `json:"difficulty"`
	RecallProbability float64        `json:"recall_probability"`
	Priority          float64        `json:"priority"`
	PriorityReason    string         `json:"priority_reason"`
	Features          featurePayload `json:"features"`
}

type featurePayload struct {
	DaysSinceReview float64 `json:"days_since_review"`
	NumReviews      int     `json:"num_reviews"`
	PastAccuracy    float64 `json:"past_accuracy"`
	Difficulty      int     `json:"difficulty"`
}

func toFeaturePayload(f domain.Features) featurePayload {
	return featurePayload{
		DaysSinceReview: f.DaysSinceReview,
		NumReviews:      f.NumReviews,
		PastAccuracy:    f.PastAccuracy,
		Difficulty:      f.Difficulty,
	}
}

func (s *Server) toCardPayload(sc domain.ScheduledCard) (cardPayload, error) {
	_, f, _, err := s.sched.CardDetails(sc.Card.CardID)
	if err != nil {
		return cardPayload{}, err
	}
	return cardPayload{
		CardID:            sc.Card.CardID,
		Question:          sc.Card.Question,
		Answer:            sc.Card.Answer,
		Difficulty:        sc.Card.Difficulty,
		RecallProbability: sc.RecallProbability,
		Priority:          sc.Priority,
		PriorityReason:    sc.PriorityReason(),
		Features:          toFeaturePayload(f),
	}, nil
}

func (s *Server) handleNextCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next, err := s.sched.Next()
		if err != nil {
			s.writeError(w, err)
			return
		}
		if next == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "No cards available"})
			return
		}
		payload, err := s.toCardPayload(*next)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) handleAnswer() http.HandlerFunc {
	type request struct {
		CardID  *int64 `json:"card_id"`
		Correct bool   `json:"correct"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.CardID == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "card_id required"})
			return
		}

		if err := s.sched.RecordAnswer(*req.CardID, req.Correct); err != nil {
			s.writeError(w, err)
			return
		}

		next, err := s.sched.Next()
		if err != nil {
			s.writeError(w, err)
			return
		}
		var nextPayload *cardPayload
		if next != nil {
			payload, err := s.toCardPayload(*next)
			if err != nil {
				s.writeError(w, err)
				return
			}
			nextPayload = &payload
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"recorded": map[string]any{
				"card_id": *req.CardID,
				"correct": req.Correct,
			},
			"stats":     s.sched.SessionStats(),
			"next_card": nextPayload,
		})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, s.sched.SessionStats())
	}
}

func (s *Server) handleAllCards() http.HandlerFunc {
	type listItem struct {
		CardID            int64   `json:"card_id"`
		Question          string  `json:"question"`
		Difficulty        int     `json:"difficulty"`
		RecallProbability float64 `json:"recall_probability"`
		Priority          float64 `json:"priority"`
		NumReviews        int     `json:"num_reviews"`
		PastAccuracy      float64 `json:"past_accuracy"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cards, err := s.sched.Schedule(100, 0)
		if err != nil {
			s.writeError(w, err)
			return
		}
		items := make([]listItem, 0, len(cards))
		for _, sc := range cards {
			items = append(items, listItem{
				CardID:            sc.Card.CardID,
				Question:          truncate(sc.Card.Question, 50),
				Difficulty:        sc.Card.Difficulty,
				RecallProbability: sc.RecallProbability,
				Priority:          sc.Priority,
				NumReviews:        sc.Card.NumReviews,
				PastAccuracy:      sc.Card.PastAccuracy(),
			})
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) handleCardDetails() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/api/card/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid card id"})
			return
		}

		card, f, prob, err := s.sched.CardDetails(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"card_id":            card.CardID,
			"question":           card.Question,
			"answer":             card.Answer,
			"difficulty":         card.Difficulty,
			"recall_probability": prob,
			"features":           toFeaturePayload(f),
			"history": map[string]any{
				"total_attempts": card.TotalAttempts,
				"correct_count":  card.CorrectCount,
				"last_review":    card.LastReview,
			},
		})
	}
}

func (s *Server) handleModelInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.model == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no model loaded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"feature_names": []string{"days_since_review", "num_reviews", "past_accuracy", "difficulty"},
			"coefficients": map[string]float64{
				"days_since_review": s.model.Weights.DaysSinceReview,
				"num_reviews":       s.model.Weights.NumReviews,
				"past_accuracy":     s.model.Weights.PastAccuracy,
				"difficulty":        s.model.Weights.Difficulty,
			},
			"intercept": s.model.Intercept,
		})
	}
}

func (s *Server) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.sched.Reset(); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Progress reset"})
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownCard):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Card not found"})
	case errors.Is(err, domain.ErrPrediction):
		slog.Error("prediction failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Deck temporarily unschedulable"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
