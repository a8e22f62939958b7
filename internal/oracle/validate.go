package oracle

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/interview-coach/internal/metrics"
)

// ValidationTimeout bounds the startup key check.
const ValidationTimeout = 15 * time.Second

// ValidationError is a failed key check with its categorized reason.
type ValidationError struct {
	Reason FailureReason
	Err    error
}

func (e *ValidationError) Error() string {
	return "gemini key validation failed (" + string(e.Reason) + "): " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate verifies the API key and model with a minimal generation. It
// returns nil or a *ValidationError.
func (g *Gemini) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ValidationTimeout)
	defer cancel()

	log.Debug().Str("model", g.model).Msg("Validating Gemini API key")
	start := time.Now()
	_, err := g.generateText(ctx, "validate", []*genai.Part{{Text: "hi"}}, nil)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = string(Classify(err))
	}
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if err != nil {
		return &ValidationError{Reason: Classify(err), Err: err}
	}
	log.Info().Dur("duration", elapsed).Msg("Gemini API key validated")
	return nil
}
