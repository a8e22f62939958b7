package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/oracle"
)

type coachRequest struct {
	Question   string               `json:"question"`
	Transcript string               `json:"transcript"`
	Metrics    *oracle.CoachMetrics `json:"metrics"`
}

// POST /api/behavioral/coach
func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req coachRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Transcript) == "" && req.Metrics == nil {
		httpError(w, http.StatusBadRequest, "Missing transcript/metrics")
		return
	}

	text := s.coach.Coach(r.Context(), oracle.CoachRequest{
		Question:   req.Question,
		Transcript: req.Transcript,
		Metrics:    req.Metrics,
	})
	log.Debug().Int("chars", len(text)).Msg("Coaching feedback generated")
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}
