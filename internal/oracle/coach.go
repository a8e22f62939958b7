package oracle

import (
	"context"
	"strings"

	"github.com/fpang/interview-coach/internal/assets"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// CoachUnavailable is returned as coaching text when Gemini is not usable.
const CoachUnavailable = "Real-time coaching unavailable (configure GEMINI_API_KEY)"

// CoachMetrics are the live scores the client reports with a coaching
// request.
type CoachMetrics struct {
	EyeContact     float64 `json:"eyeContact"`
	SpeechClarity  float64 `json:"speechClarity"`
	ToneConfidence float64 `json:"toneConfidence"`
	Engagement     float64 `json:"engagement"`
}

// CoachRequest is one live coaching request.
type CoachRequest struct {
	Question   string
	Transcript string
	Metrics    *CoachMetrics
}

// Coach produces short, encouraging feedback text for a live snippet.
type Coach interface {
	Coach(ctx context.Context, req CoachRequest) string
}

// UnavailableCoach always returns CoachUnavailable.
type UnavailableCoach struct{}

// Coach implements Coach.
func (UnavailableCoach) Coach(context.Context, CoachRequest) string {
	return CoachUnavailable
}

// Coach asks Gemini for prose feedback. Any failure yields CoachUnavailable.
func (g *Gemini) Coach(ctx context.Context, req CoachRequest) string {
	data := assets.CoachPromptData{
		Question:   strings.TrimSpace(req.Question),
		Transcript: TruncateRunes(strings.TrimSpace(req.Transcript), MaxTranscriptRunes),
	}
	if req.Metrics != nil {
		data.EyeContact = req.Metrics.EyeContact
		data.SpeechClarity = req.Metrics.SpeechClarity
		data.ToneConfidence = req.Metrics.ToneConfidence
		data.Engagement = req.Metrics.Engagement
	}

	parts := []*genai.Part{{Text: assets.RenderCoachPrompt(data)}}
	text, err := g.generateText(ctx, "coach", parts, nil)
	if err != nil {
		log.Warn().Err(err).Str("reason", string(Classify(err))).Msg("Coaching request failed")
		return CoachUnavailable
	}
	return strings.TrimSpace(text)
}
