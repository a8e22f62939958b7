// Package api serves the behavioral analysis HTTP API shared by the local
// web server and the Lambda function.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/events"
	"github.com/fpang/interview-coach/internal/oracle"
	"github.com/fpang/interview-coach/internal/s3util"
	"github.com/fpang/interview-coach/internal/store"
)

// DefaultUserID is used when a request names no user.
const DefaultUserID int64 = 1

// DefaultMaxUploadBytes bounds uploaded videos when Options leaves it unset.
const DefaultMaxUploadBytes = 200 << 20

// maxChunkBytes bounds a live chunk request body. Chunks carry one frame and
// a few seconds of audio.
const maxChunkBytes = 16 << 20

// VideoBucket is the S3 bucket browsers upload practice videos to.
type VideoBucket struct {
	Client    s3util.GetObjectAPI
	Presigner s3util.PutPresigner
	Name      string
}

// Options configures a Server. Analyzer and Store are required.
type Options struct {
	Analyzer behavior.Analyzer
	Coach    oracle.Coach
	Store    store.BehavioralStore
	Events   events.Publisher

	// Videos enables presigned uploads and analysis by S3 key. Optional.
	Videos *VideoBucket

	MaxUploadBytes int64

	// AllowedOrigins lists exact CORS origins. Empty allows localhost only.
	AllowedOrigins []string
}

// Server routes API requests.
type Server struct {
	analyzer behavior.Analyzer
	coach    oracle.Coach
	store    store.BehavioralStore
	events   events.Publisher
	videos   *VideoBucket

	maxUpload int64
	origins   map[string]bool
	mux       *http.ServeMux
}

// New creates a Server. Missing optional dependencies get inert defaults.
func New(opts Options) *Server {
	s := &Server{
		analyzer:  opts.Analyzer,
		coach:     opts.Coach,
		store:     opts.Store,
		events:    opts.Events,
		videos:    opts.Videos,
		maxUpload: opts.MaxUploadBytes,
		origins:   make(map[string]bool, len(opts.AllowedOrigins)),
		mux:       http.NewServeMux(),
	}
	if s.coach == nil {
		s.coach = oracle.UnavailableCoach{}
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[o] = true
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/behavioral/start", s.handleStart)
	s.mux.HandleFunc("/api/behavioral/chunk", s.handleChunk)
	s.mux.HandleFunc("/api/behavioral/finish", s.handleFinish)
	s.mux.HandleFunc("/api/behavioral/coach", s.handleCoach)
	s.mux.HandleFunc("/api/behavioral/upload-url", s.handleUploadURL)
	s.mux.HandleFunc("/api/analyze-behavioral", s.handleAnalyze)
	s.mux.HandleFunc("/api/dashboard/behavioral", s.handleDashboard)
	return s
}

// Handler returns the routes wrapped in logging, metrics, CORS and response
// compression.
func (s *Server) Handler() http.Handler {
	return withLogging(withMetrics(s.withCORS(gzhttp.GzipHandler(s.mux))))
}

// ServeHTTP serves the bare routes without middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
