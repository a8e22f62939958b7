// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// SystemInstruction is sent with every oracle request.
const SystemInstruction = "You are an objective interview coach. You always answer with a single JSON object and no other text unless asked for prose."

//go:embed prompts/behavioral-session.txt
var sessionTemplate string

//go:embed prompts/behavioral-chunk.txt
var chunkTemplate string

//go:embed prompts/behavioral-coach.txt
var coachTemplate string

// Pre-parsed templates. template.Must panics on malformed templates at
// startup rather than at call time.
var (
	sessionPromptTmpl = template.Must(template.New("session").Parse(sessionTemplate))
	chunkPromptTmpl   = template.Must(template.New("chunk").Parse(chunkTemplate))
	coachPromptTmpl   = template.Must(template.New("coach").Parse(coachTemplate))
)

// SessionPromptData is injected into the whole-video prompt.
type SessionPromptData struct {
	// DurationSec is the probed duration, or 0 when unknown.
	DurationSec float64
}

// ChunkPromptData is injected into the live chunk prompt.
type ChunkPromptData struct {
	HasImage   bool
	HasAudio   bool
	Transcript string
}

// CoachPromptData is injected into the live coaching prompt.
type CoachPromptData struct {
	Question       string
	Transcript     string
	EyeContact     float64
	SpeechClarity  float64
	ToneConfidence float64
	Engagement     float64
}

// RenderSessionPrompt renders the whole-video analysis prompt.
func RenderSessionPrompt(data SessionPromptData) string {
	return renderTemplate(sessionPromptTmpl, data)
}

// RenderChunkPrompt renders the live chunk analysis prompt.
func RenderChunkPrompt(data ChunkPromptData) string {
	return renderTemplate(chunkPromptTmpl, data)
}

// RenderCoachPrompt renders the live coaching prompt.
func RenderCoachPrompt(data CoachPromptData) string {
	return renderTemplate(coachPromptTmpl, data)
}

// renderTemplate executes a pre-parsed template. Execution errors are not
// expected with these templates; whatever was rendered is returned.
func renderTemplate(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
