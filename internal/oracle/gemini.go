// Package oracle implements the remote vision/language analyzer on Gemini.
// Its results have the same shape as the local pipeline's; any failure is
// returned as an error so that behavior.Fallback can take over.
package oracle

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"github.com/fpang/interview-coach/internal/assets"
	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/metrics"
	"github.com/fpang/interview-coach/internal/video"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

// Limits on what is sent inline.
const (
	// MaxInlineVideoBytes is the largest video sent as an inline blob.
	// Larger videos go through the Files API.
	MaxInlineVideoBytes = 20 << 20
	// MaxTranscriptRunes bounds the transcript fragment appended to prompts.
	MaxTranscriptRunes = 1000
)

// Default MIME types for chunk media without one.
const (
	defaultImageMIME = "image/jpeg"
	defaultAudioMIME = "audio/webm"
)

// generateFunc matches genai's Models.GenerateContent.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Config configures the Gemini oracle.
type Config struct {
	APIKey string
	Model  string
	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Gemini is a behavior.Analyzer backed by the Gemini API.
type Gemini struct {
	client   *genai.Client
	model    string
	generate generateFunc
}

var _ behavior.Analyzer = (*Gemini)(nil)

// New creates a Gemini oracle. It fails with ErrDisabled when no API key is
// configured.
func New(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	log.Info().Str("model", model).Msg("Gemini oracle initialized")
	return &Gemini{client: client, model: model, generate: client.Models.GenerateContent}, nil
}

// Model returns the configured model ID.
func (g *Gemini) Model() string { return g.model }

// AnalyzeSession sends the whole video to Gemini.
func (g *Gemini) AnalyzeSession(ctx context.Context, in behavior.VideoInput) (*behavior.SessionScoreReport, error) {
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", behavior.ErrVideoOpen, err)
	}
	mime := in.MIMEType
	if mime == "" {
		mime = video.MIMEType(in.Path)
	}

	var videoPart *genai.Part
	if info.Size() <= MaxInlineVideoBytes {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", behavior.ErrVideoOpen, err)
		}
		videoPart = &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}}
	} else {
		file, err := g.uploadVideo(ctx, in.Path, mime, info.Size())
		if err != nil {
			return nil, err
		}
		defer g.deleteFile(file.Name)
		videoPart = genai.NewPartFromURI(file.URI, file.MIMEType)
	}

	var promptData assets.SessionPromptData
	if probed, err := video.Probe(ctx, in.Path); err == nil {
		promptData.DurationSec = probed.Duration
	}
	prompt := assets.RenderSessionPrompt(promptData)
	parts := []*genai.Part{videoPart, {Text: prompt}}

	text, err := g.call(ctx, "session", parts)
	if err != nil {
		return nil, err
	}
	report, err := parseSession(text)
	if err != nil {
		return nil, err
	}
	log.Info().
		Float64("confidence", report.ConfidenceScore).
		Int("segments", len(report.Segments)).
		Msg("Oracle session analysis complete")
	return report, nil
}

// AnalyzeChunk sends the frame, audio and transcript fragment to Gemini.
// A chunk with nothing in it is not sent.
func (g *Gemini) AnalyzeChunk(ctx context.Context, chunk behavior.Chunk) (*behavior.ChunkMetrics, error) {
	if !chunk.HasMedia() {
		return nil, fmt.Errorf("%w: chunk has no media", ErrEmpty)
	}

	var parts []*genai.Part
	if len(chunk.Image) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: orDefault(chunk.ImageMIME, defaultImageMIME),
			Data:     chunk.Image,
		}})
	}
	if len(chunk.Audio) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: orDefault(chunk.AudioMIME, defaultAudioMIME),
			Data:     chunk.Audio,
		}})
	}
	parts = append(parts, &genai.Part{Text: assets.RenderChunkPrompt(assets.ChunkPromptData{
		HasImage:   len(chunk.Image) > 0,
		HasAudio:   len(chunk.Audio) > 0,
		Transcript: TruncateRunes(chunk.Transcript, MaxTranscriptRunes),
	})})

	text, err := g.call(ctx, "chunk", parts)
	if err != nil {
		return nil, err
	}
	return parseChunk(text)
}

// call runs one JSON-mode generation and records metrics.
func (g *Gemini) call(ctx context.Context, op string, parts []*genai.Part) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.SystemInstruction}},
		},
		ResponseMIMEType: "application/json",
	}
	return g.generateText(ctx, op, parts, config)
}

// generateText runs one generation and returns the response text.
func (g *Gemini) generateText(ctx context.Context, op string, parts []*genai.Part, config *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	log.Debug().
		Str("model", g.model).
		Str("operation", op).
		Int("part_count", len(parts)).
		Msg("Starting Gemini API call")

	start := time.Now()
	resp, err := g.generate(ctx, g.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", op).
		Metric("OracleLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("OracleCalls")
	if err != nil {
		m.Count("OracleErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("OracleInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("OracleOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini %s: %w", op, ErrEmpty)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini %s: %w", op, ErrEmpty)
	}

	log.Debug().
		Str("operation", op).
		Int("response_length", len(text)).
		Dur("duration", elapsed).
		Msg("Gemini API response received")
	return text, nil
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
