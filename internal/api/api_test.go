package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/events"
	"github.com/fpang/interview-coach/internal/metrics"
	"github.com/fpang/interview-coach/internal/oracle"
	"github.com/fpang/interview-coach/internal/store"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// --- Fakes ---

type fakeAnalyzer struct {
	mu         sync.Mutex
	lastChunk  behavior.Chunk
	lastVideo  []byte
	sessionErr error
}

func (f *fakeAnalyzer) AnalyzeSession(_ context.Context, in behavior.VideoInput) (*behavior.SessionScoreReport, error) {
	data, _ := os.ReadFile(in.Path)
	f.mu.Lock()
	f.lastVideo = data
	f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &behavior.SessionScoreReport{
		ConfidenceScore: 80,
		EyeContactScore: 75,
		PostureScore:    70,
		OverallFeedback: behavior.OverallGood,
		Improvements:    []string{},
		Metadata:        behavior.SessionMetadata{DurationSec: 10, FramesAnalyzed: 20, FaceDetectionRate: 100},
		Source:          behavior.SourceLocal,
	}, nil
}

func (f *fakeAnalyzer) AnalyzeChunk(_ context.Context, chunk behavior.Chunk) (*behavior.ChunkMetrics, error) {
	f.mu.Lock()
	f.lastChunk = chunk
	f.mu.Unlock()
	m := behavior.InertChunkMetrics()
	if len(chunk.Image) > 0 {
		m.EyeContact = true
		m.EyeContactScore = 100
	}
	return m, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.SessionFinished
}

func (r *recordingEvents) SessionFinished(_ context.Context, ev events.SessionFinished) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fakeCoach struct{ got oracle.CoachRequest }

func (f *fakeCoach) Coach(_ context.Context, req oracle.CoachRequest) string {
	f.got = req
	return "Nice STAR structure."
}

type fakeObjects struct {
	body string
	err  error
}

func (f *fakeObjects) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

type fakePresigner struct{ in *s3.PutObjectInput }

func (f *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.in = in
	return &v4.PresignedHTTPRequest{URL: "https://uploads.example.com/" + *in.Key}, nil
}

type harness struct {
	srv      *Server
	analyzer *fakeAnalyzer
	store    *store.MemoryStore
	events   *recordingEvents
	coach    *fakeCoach
	objects  *fakeObjects
	presign  *fakePresigner
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		analyzer: &fakeAnalyzer{},
		store:    store.NewMemoryStore(),
		events:   &recordingEvents{},
		coach:    &fakeCoach{},
		objects:  &fakeObjects{body: "video-bytes"},
		presign:  &fakePresigner{},
	}
	opts := Options{
		Analyzer:       h.analyzer,
		Coach:          h.coach,
		Store:          h.store,
		Events:         h.events,
		Videos:         &VideoBucket{Client: h.objects, Presigner: h.presign, Name: "coach-videos"},
		MaxUploadBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.srv = New(opts)
	return h
}

func (h *harness) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) postJSON(target string, v any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(v)
	return h.do(http.MethodPost, target, bytes.NewReader(data), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return v
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// --- Tests ---

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["status"] != "healthy" {
		t.Errorf("got %v", got)
	}
	if rec := h.do(http.MethodPost, "/api/health", nil, ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST health: status %d", rec.Code)
	}
}

func TestStartSession(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/api/behavioral/start?user_id=3", strings.NewReader("{}"), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	id := decode[map[string]string](t, rec)["session_id"]
	if id == "" {
		t.Fatal("missing session_id")
	}
	session, err := h.store.GetSession(context.Background(), id)
	if err != nil || session == nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.UserID != 3 || session.Status != store.StatusActive {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestChunkJSON(t *testing.T) {
	h := newHarness(t, nil)
	img := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	rec := h.postJSON("/api/behavioral/chunk", map[string]any{
		"session_id":         "s-1",
		"timestamp":          12.5,
		"image_b64":          "data:image/jpeg;base64," + img,
		"transcript_segment": "In my last role",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	resp := decode[chunkResponse](t, rec)
	if resp.SessionID != "s-1" || resp.Timestamp != 12.5 || resp.Metrics == nil || !resp.Metrics.EyeContact {
		t.Errorf("unexpected response %+v", resp)
	}
	got := h.analyzer.lastChunk
	if string(got.Image) != "jpeg-bytes" || got.ImageMIME != "image/jpeg" || got.Transcript != "In my last role" {
		t.Errorf("analyzer saw %+v", got)
	}
}

func TestChunkValidation(t *testing.T) {
	h := newHarness(t, nil)
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing session", map[string]any{"timestamp": 1}},
		{"bad base64", map[string]any{"session_id": "s", "image_b64": "%%%"}},
		{"bad data url", map[string]any{"session_id": "s", "audio_b64": "data:audio/webm,plain"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := h.postJSON("/api/behavioral/chunk", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestChunkMultipart(t *testing.T) {
	h := newHarness(t, nil)
	body, ct := multipartBody(t,
		map[string]string{"sessionId": "s-2", "transcript": "hello", "timestamp": "3"},
		map[string][]byte{"frame": []byte("frame"), "audio": []byte("audio")})

	rec := h.do(http.MethodPost, "/api/behavioral/chunk", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	resp := decode[chunkResponse](t, rec)
	if resp.SessionID != "s-2" || resp.Timestamp != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
	got := h.analyzer.lastChunk
	if string(got.Image) != "frame" || string(got.Audio) != "audio" || got.Transcript != "hello" {
		t.Errorf("analyzer saw %+v", got)
	}

	body, ct = multipartBody(t, map[string]string{"sessionId": "s-2"}, nil)
	if rec := h.do(http.MethodPost, "/api/behavioral/chunk", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("missing frame: status %d", rec.Code)
	}
}

func TestFinishAndDashboard(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.store.PutSession(ctx, &store.LiveSession{ID: "s-9", Status: store.StatusActive})

	rec := h.postJSON("/api/behavioral/finish?user_id=4", map[string]any{
		"session_id": "s-9",
		"overall": map[string]any{
			"confidence_score":  87.9,
			"eye_contact_score": 72.4,
			"posture_score":     60,
			"speech_clarity":    55.5,
			"overall_feedback":  "Good",
			"improvements":      []string{"Slow down"},
		},
		"trends":   map[string]any{"focus": []any{map[string]any{"t": 1, "score": 80}}},
		"segments": []any{map[string]any{"t_start": 0, "t_end": 5}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	resp := decode[map[string]any](t, rec)
	if resp["ok"] != true || resp["id"] == "" {
		t.Errorf("unexpected response %v", resp)
	}

	if session, _ := h.store.GetSession(ctx, "s-9"); session == nil || session.Status != store.StatusFinished {
		t.Errorf("session not finished: %+v", session)
	}
	if len(h.events.events) != 1 || h.events.events[0].UserID != 4 || h.events.events[0].ConfidenceScore != 87 {
		t.Errorf("events: %+v", h.events.events)
	}

	rec = h.do(http.MethodGet, "/api/dashboard/behavioral?user_id=4", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status %d", rec.Code)
	}
	rows := decode[[]map[string]any](t, rec)
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	row := rows[0]
	if row["confidence_score"] != 87.0 || row["eye_contact_score"] != 72.0 || row["speech_clarity"] != 55.0 {
		t.Errorf("scores should be truncated to whole numbers: %v", row)
	}
	if row["date"] == nil || row["id"] != resp["id"] {
		t.Errorf("identity fields: %v", row)
	}
	if _, ok := row["trends"].(map[string]any)["focus"]; !ok {
		t.Errorf("trends: %v", row["trends"])
	}
}

func TestFinishValidation(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.postJSON("/api/behavioral/finish", map[string]any{"session_id": "s"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing overall: status %d", rec.Code)
	}
	if rec := h.postJSON("/api/behavioral/finish?user_id=abc", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad user: status %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/behavioral/finish", strings.NewReader("{"), "application/json"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status %d", rec.Code)
	}

	for _, overall := range []map[string]any{
		{"confidence_score": 250, "eye_contact_score": 50, "posture_score": 50},
		{"confidence_score": 50, "eye_contact_score": -1, "posture_score": 50},
		{"confidence_score": 50, "posture_score": 50, "speech_clarity": 100.5},
	} {
		rec := h.postJSON("/api/behavioral/finish", map[string]any{"session_id": "s", "overall": overall})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: status %d", overall, rec.Code)
		}
	}
	if rows, _ := h.store.RecentSummaries(context.Background(), 1, 5); len(rows) != 0 {
		t.Errorf("out-of-range scores were stored: %+v", rows)
	}
}

func TestDashboardEmpty(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/dashboard/behavioral", nil, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("got %d %q", rec.Code, rec.Body)
	}
}

func TestAnalyzeMultipart(t *testing.T) {
	h := newHarness(t, nil)
	body, ct := multipartBody(t, nil, map[string][]byte{"video_file": []byte("not really a video")})

	rec := h.do(http.MethodPost, "/api/analyze-behavioral", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	report := decode[behavior.SessionScoreReport](t, rec)
	if report.ConfidenceScore != 80 || report.Metadata.FramesAnalyzed != 20 {
		t.Errorf("unexpected report %+v", report)
	}
	if string(h.analyzer.lastVideo) != "not really a video" {
		t.Errorf("analyzer saw %q", h.analyzer.lastVideo)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("undecodable video", func(t *testing.T) {
		h := newHarness(t, nil)
		h.analyzer.sessionErr = fmt.Errorf("probe: %w", behavior.ErrVideoOpen)
		body, ct := multipartBody(t, nil, map[string][]byte{"video_file": []byte("x")})
		if rec := h.do(http.MethodPost, "/api/analyze-behavioral", body, ct); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status %d", rec.Code)
		}
	})

	t.Run("interrupted analysis", func(t *testing.T) {
		h := newHarness(t, nil)
		h.analyzer.sessionErr = fmt.Errorf("frame 42: decoding interrupted after 42 frames: %w", context.DeadlineExceeded)
		body, ct := multipartBody(t, nil, map[string][]byte{"video_file": []byte("x")})
		if rec := h.do(http.MethodPost, "/api/analyze-behavioral", body, ct); rec.Code != http.StatusGatewayTimeout {
			t.Errorf("status %d", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.MaxUploadBytes = 8 })
		body, ct := multipartBody(t, nil, map[string][]byte{"video_file": bytes.Repeat([]byte("v"), 64)})
		if rec := h.do(http.MethodPost, "/api/analyze-behavioral", body, ct); rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status %d", rec.Code)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		h := newHarness(t, nil)
		body, ct := multipartBody(t, map[string]string{"note": "x"}, nil)
		if rec := h.do(http.MethodPost, "/api/analyze-behavioral", body, ct); rec.Code != http.StatusBadRequest {
			t.Errorf("status %d", rec.Code)
		}
	})
}

const testKey = "videos/a1b2c3d4-e5f6-7890-abcd-ef1234567890/answer.mp4"

func TestAnalyzeByKey(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.postJSON("/api/analyze-behavioral", map[string]string{"key": testKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if string(h.analyzer.lastVideo) != "video-bytes" {
		t.Errorf("analyzer saw %q", h.analyzer.lastVideo)
	}

	if rec := h.postJSON("/api/analyze-behavioral", map[string]string{"key": "../etc/passwd"}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid key: status %d", rec.Code)
	}

	h.objects.err = &s3types.NoSuchKey{}
	if rec := h.postJSON("/api/analyze-behavioral", map[string]string{"key": testKey}); rec.Code != http.StatusNotFound {
		t.Errorf("missing object: status %d", rec.Code)
	}

	h.objects.err = errors.New("connection reset")
	if rec := h.postJSON("/api/analyze-behavioral", map[string]string{"key": testKey}); rec.Code != http.StatusBadGateway {
		t.Errorf("s3 failure: status %d", rec.Code)
	}

	noS3 := newHarness(t, func(o *Options) { o.Videos = nil })
	if rec := noS3.postJSON("/api/analyze-behavioral", map[string]string{"key": testKey}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured: status %d", rec.Code)
	}
}

func TestUploadURL(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.postJSON("/api/behavioral/upload-url", map[string]any{
		"filename": "my answer.mp4", "content_type": "video/mp4", "size": 1024,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	resp := decode[uploadURLResponse](t, rec)
	if !strings.HasPrefix(resp.Key, "videos/") || !strings.HasSuffix(resp.Key, "/my answer.mp4") {
		t.Errorf("key: %q", resp.Key)
	}
	if !strings.HasSuffix(resp.UploadURL, resp.Key) || resp.ExpiresIn != 900 {
		t.Errorf("unexpected response %+v", resp)
	}
	if *h.presign.in.ContentLength != 1024 || *h.presign.in.Bucket != "coach-videos" {
		t.Errorf("presign input %+v", h.presign.in)
	}

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"image type", map[string]any{"filename": "a.png", "content_type": "image/png", "size": 10}, http.StatusBadRequest},
		{"missing size", map[string]any{"filename": "a.mp4", "content_type": "video/mp4"}, http.StatusBadRequest},
		{"too large", map[string]any{"filename": "a.mp4", "content_type": "video/mp4", "size": 2 << 20}, http.StatusRequestEntityTooLarge},
		{"unsafe name", map[string]any{"filename": "a;rm.mp4", "content_type": "video/mp4", "size": 10}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := h.postJSON("/api/behavioral/upload-url", tt.body); rec.Code != tt.want {
				t.Errorf("status %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestCoach(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.postJSON("/api/behavioral/coach", map[string]any{"question": "Tell me about yourself"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing transcript and metrics: status %d", rec.Code)
	}

	rec := h.postJSON("/api/behavioral/coach", map[string]any{
		"question": "Conflict?",
		"metrics":  map[string]any{"eyeContact": 80, "speechClarity": 70},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]string](t, rec)["text"]; got != "Nice STAR structure." {
		t.Errorf("text: %q", got)
	}
	if h.coach.got.Metrics == nil || h.coach.got.Metrics.EyeContact != 80 || h.coach.got.Question != "Conflict?" {
		t.Errorf("coach saw %+v", h.coach.got)
	}

	plain := newHarness(t, func(o *Options) { o.Coach = nil })
	rec = plain.postJSON("/api/behavioral/coach", map[string]any{"transcript": "hi"})
	if got := decode[map[string]string](t, rec)["text"]; got != oracle.CoachUnavailable {
		t.Errorf("default coach text: %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/behavioral/chunk", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("preflight: %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin should not be allowed")
	}

	prod := newHarness(t, func(o *Options) { o.AllowedOrigins = []string{"https://coach.example.com"} })
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://coach.example.com")
	rec = httptest.NewRecorder()
	prod.srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://coach.example.com" {
		t.Error("configured origin should be allowed")
	}
}

func TestDecodeMedia(t *testing.T) {
	raw := base64.RawStdEncoding.EncodeToString([]byte("ab"))
	data, mime, err := decodeMedia(raw)
	if err != nil || string(data) != "ab" || mime != "" {
		t.Errorf("raw base64: %q %q %v", data, mime, err)
	}
	data, mime, err = decodeMedia("data:audio/webm;codecs=opus;base64," + base64.StdEncoding.EncodeToString([]byte("xyz")))
	if err != nil || string(data) != "xyz" || mime != "audio/webm;codecs=opus" {
		t.Errorf("data url: %q %q %v", data, mime, err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	if got := normalizeEndpoint("/api/behavioral/chunk"); got != "/api/behavioral/chunk" {
		t.Errorf("got %q", got)
	}
	if got := normalizeEndpoint("/api/behavioral/abc123"); got != "other" {
		t.Errorf("got %q", got)
	}
}
