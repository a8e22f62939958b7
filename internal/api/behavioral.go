package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/events"
	"github.com/fpang/interview-coach/internal/store"
)

// --- Live session lifecycle ---

// POST /api/behavioral/start[?user_id=N]
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, err := parseUserID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := &store.LiveSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: store.StatusActive,
	}
	if err := s.store.PutSession(r.Context(), session); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("Failed to persist session")
		httpError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	log.Info().Str("sessionId", session.ID).Int64("userId", userID).Msg("Behavioral session started")
	respondJSON(w, http.StatusOK, map[string]string{"session_id": session.ID})
}

type chunkRequest struct {
	SessionID         string  `json:"session_id"`
	Timestamp         float64 `json:"timestamp"`
	ImageB64          string  `json:"image_b64"`
	AudioB64          string  `json:"audio_b64"`
	TranscriptSegment string  `json:"transcript_segment"`
}

type chunkResponse struct {
	SessionID string                 `json:"session_id"`
	Timestamp float64                `json:"timestamp"`
	Metrics   *behavior.ChunkMetrics `json:"metrics"`
}

// POST /api/behavioral/chunk
//
// Accepts either JSON with base64 media or a multipart form with frame,
// audio, transcript and sessionId fields. Analysis is stateless.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxChunkBytes)

	var (
		req   chunkRequest
		chunk behavior.Chunk
		err   error
	)
	if isMultipart(r) {
		req, chunk, err = readMultipartChunk(r)
	} else {
		req, chunk, err = readJSONChunk(r)
	}
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Warn().Err(err).Msg("Rejected chunk request")
		httpError(w, status, err.Error())
		return
	}

	metrics, err := s.analyzer.AnalyzeChunk(r.Context(), chunk)
	if err != nil {
		log.Error().Err(err).Str("sessionId", req.SessionID).Msg("Chunk analysis failed")
		httpError(w, http.StatusInternalServerError, "chunk analysis failed")
		return
	}

	log.Debug().
		Str("sessionId", req.SessionID).
		Float64("timestamp", req.Timestamp).
		Str("source", metrics.Source).
		Bool("eyeContact", metrics.EyeContact).
		Msg("Chunk analyzed")
	respondJSON(w, http.StatusOK, chunkResponse{
		SessionID: req.SessionID,
		Timestamp: req.Timestamp,
		Metrics:   metrics,
	})
}

func readJSONChunk(r *http.Request) (chunkRequest, behavior.Chunk, error) {
	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, behavior.Chunk{}, fmt.Errorf("invalid request body: %w", err)
	}
	if req.SessionID == "" {
		return req, behavior.Chunk{}, errors.New("session_id is required")
	}

	chunk := behavior.Chunk{Transcript: req.TranscriptSegment}
	var err error
	if req.ImageB64 != "" {
		if chunk.Image, chunk.ImageMIME, err = decodeMedia(req.ImageB64); err != nil {
			return req, chunk, fmt.Errorf("image_b64: %w", err)
		}
	}
	if req.AudioB64 != "" {
		if chunk.Audio, chunk.AudioMIME, err = decodeMedia(req.AudioB64); err != nil {
			return req, chunk, fmt.Errorf("audio_b64: %w", err)
		}
	}
	return req, chunk, nil
}

func readMultipartChunk(r *http.Request) (chunkRequest, behavior.Chunk, error) {
	var req chunkRequest
	if err := r.ParseMultipartForm(maxChunkBytes); err != nil {
		return req, behavior.Chunk{}, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	req.SessionID = r.FormValue("sessionId")
	req.TranscriptSegment = r.FormValue("transcript")
	if ts := r.FormValue("timestamp"); ts != "" {
		req.Timestamp, _ = strconv.ParseFloat(ts, 64)
	}

	chunk := behavior.Chunk{Transcript: req.TranscriptSegment}
	frame, frameMIME, err := formFile(r.MultipartForm, "frame")
	if err != nil {
		return req, chunk, err
	}
	if frame == nil {
		return req, chunk, errors.New("frame is required")
	}
	chunk.Image, chunk.ImageMIME = frame, frameMIME

	if chunk.Audio, chunk.AudioMIME, err = formFile(r.MultipartForm, "audio"); err != nil {
		return req, chunk, err
	}
	return req, chunk, nil
}

// formFile reads the named file field. A missing field returns nil, "", nil.
func formFile(form *multipart.Form, field string) ([]byte, string, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, "", nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", field, err)
	}
	return data, headers[0].Header.Get("Content-Type"), nil
}

// decodeMedia decodes plain base64 or a data: URL, returning the declared
// MIME type when there is one.
func decodeMedia(s string) ([]byte, string, error) {
	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("unsupported data URL")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		s = payload
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err != nil {
			return nil, "", errors.New("invalid base64")
		}
	}
	return data, mime, nil
}

type overallScores struct {
	ConfidenceScore float64  `json:"confidence_score"`
	EyeContactScore float64  `json:"eye_contact_score"`
	PostureScore    float64  `json:"posture_score"`
	SpeechClarity   float64  `json:"speech_clarity"`
	OverallFeedback string   `json:"overall_feedback"`
	Improvements    []string `json:"improvements"`
}

// validate rejects scores outside [0,100].
func (o *overallScores) validate() error {
	for name, v := range map[string]float64{
		"confidence_score":  o.ConfidenceScore,
		"eye_contact_score": o.EyeContactScore,
		"posture_score":     o.PostureScore,
		"speech_clarity":    o.SpeechClarity,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	return nil
}

type finishRequest struct {
	SessionID string           `json:"session_id"`
	Overall   *overallScores   `json:"overall"`
	Trends    map[string]any   `json:"trends"`
	Segments  []map[string]any `json:"segments"`
}

// POST /api/behavioral/finish?user_id=N
//
// Persists the session summary with whole-number scores (fractions are
// truncated) and announces it on the event bus.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, err := parseUserID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req finishRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChunkBytes)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Overall == nil {
		httpError(w, http.StatusBadRequest, "session_id and overall are required")
		return
	}
	if err := req.Overall.validate(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	o := req.Overall
	summary := &store.BehavioralSummary{
		UserID:          userID,
		SessionID:       req.SessionID,
		ConfidenceScore: int(o.ConfidenceScore),
		EyeContactScore: int(o.EyeContactScore),
		PostureScore:    int(o.PostureScore),
		SpeechClarity:   int(o.SpeechClarity),
		OverallFeedback: o.OverallFeedback,
		Improvements:    o.Improvements,
		Trends:          req.Trends,
		Segments:        req.Segments,
	}
	ctx := r.Context()
	if err := s.store.PutSummary(ctx, summary); err != nil {
		log.Error().Err(err).Str("sessionId", req.SessionID).Msg("Failed to persist behavioral summary")
		httpError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	if err := s.store.FinishSession(ctx, req.SessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", req.SessionID).Msg("Failed to mark session finished")
	}
	if err := s.events.SessionFinished(ctx, events.SessionFinished{
		UserID:          userID,
		SessionID:       req.SessionID,
		SummaryID:       summary.ID,
		ConfidenceScore: summary.ConfidenceScore,
		EyeContactScore: summary.EyeContactScore,
		PostureScore:    summary.PostureScore,
		SpeechClarity:   summary.SpeechClarity,
		FinishedAt:      summary.CreatedAt,
	}); err != nil {
		log.Warn().Err(err).Str("summaryId", summary.ID).Msg("Failed to publish session finished event")
	}

	log.Info().
		Str("sessionId", req.SessionID).
		Str("summaryId", summary.ID).
		Int64("userId", userID).
		Int("confidence", summary.ConfidenceScore).
		Msg("Behavioral session finished")
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "id": summary.ID})
}

// GET /api/dashboard/behavioral?user_id=N
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, err := parseUserID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := s.store.RecentSummaries(r.Context(), userID, store.DefaultRecentLimit)
	if err != nil {
		log.Error().Err(err).Int64("userId", userID).Msg("Failed to load behavioral summaries")
		httpError(w, http.StatusInternalServerError, "failed to load summaries")
		return
	}
	if summaries == nil {
		summaries = []*store.BehavioralSummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}

// parseUserID reads the user_id query parameter, defaulting to
// DefaultUserID.
func parseUserID(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("user_id")
	if v == "" {
		return DefaultUserID, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user_id %q", v)
	}
	return id, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}
