// Package pipeline assembles the analyzers every binary serves: the Gemini
// oracle as primary, the deterministic cascade pipeline as fallback, and the
// live coach. Construction happens once at startup; the result is shared.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/config"
	"github.com/fpang/interview-coach/internal/metrics"
	"github.com/fpang/interview-coach/internal/oracle"
	"github.com/fpang/interview-coach/internal/video"
	"github.com/fpang/interview-coach/internal/vision"
	"github.com/fpang/interview-coach/internal/vision/cascade"
)

// Pipeline is the assembled analyzer stack.
type Pipeline struct {
	// Analyzer produces session reports and chunk metrics. It is the
	// oracle with local fallback when the oracle is enabled, otherwise the
	// local pipeline alone.
	Analyzer behavior.Analyzer
	// Coach produces live coaching text.
	Coach oracle.Coach
	// Oracle reports whether the Gemini oracle is in use.
	Oracle bool
	// Model is the Gemini model ID, empty when the oracle is off.
	Model string

	detectors *cascade.Detectors
}

// Build loads the detectors and, unless disabled or unconfigured, the Gemini
// oracle. Failing to load the detectors is fatal to Build since every
// request depends on them; a missing or broken oracle only degrades.
func Build(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	policy, err := vision.PolicyByName(cfg.Detection.FacePolicy)
	if err != nil {
		return nil, err
	}
	detectors, err := cascade.LoadDetectors(cfg.Detection.FaceCascadePath, cfg.Detection.EyeCascadePath)
	if err != nil {
		return nil, fmt.Errorf("load detectors: %w", err)
	}
	if err := video.CheckAvailable(); err != nil {
		log.Warn().Err(err).Msg("Whole-video analysis will fail until FFmpeg is installed")
	}

	extractor := behavior.NewExtractor(detectors.Face, detectors.Eye, policy)

	var gem *oracle.Gemini
	if cfg.Oracle.Enabled() {
		gem, err = oracle.New(ctx, oracle.Config{APIKey: cfg.Oracle.APIKey, Model: cfg.Oracle.Model})
		if err != nil {
			log.Warn().Err(err).Str("reason", string(oracle.Classify(err))).Msg("Gemini oracle unavailable, using local pipeline only")
			gem = nil
		} else if cfg.Oracle.ValidateOnStart {
			if err := gem.Validate(ctx); err != nil {
				log.Warn().Err(err).Msg("Gemini API key rejected, using local pipeline only")
				gem = nil
			}
		}
	} else {
		log.Info().Bool("disabled", cfg.Oracle.Disabled).Msg("Gemini oracle not configured, using local pipeline only")
	}

	p := assemble(extractor, gem, cfg.Oracle.Timeout)
	p.detectors = detectors
	return p, nil
}

// assemble wires the analyzer stack from its parts. gem may be nil.
func assemble(extractor *behavior.Extractor, gem *oracle.Gemini, timeout time.Duration) *Pipeline {
	local := behavior.NewLocal(extractor, OpenVideo)
	if gem == nil {
		return &Pipeline{
			Analyzer: instrument(local),
			Coach:    oracle.UnavailableCoach{},
		}
	}
	return &Pipeline{
		Analyzer: instrument(WithFallback(gem, local, timeout)),
		Coach:    gem,
		Oracle:   true,
		Model:    gem.Model(),
	}
}

// WithFallback composes primary over the local analyzer, recording every
// absorbed primary failure as an OracleFallback metric with its reason.
func WithFallback(primary, local behavior.Analyzer, timeout time.Duration) *behavior.Fallback {
	return &behavior.Fallback{
		Primary:    primary,
		Secondary:  local,
		Timeout:    timeout,
		OnFallback: recordFallback,
	}
}

func recordFallback(ev behavior.FallbackEvent) {
	reason := oracle.Classify(ev.Err)
	log.Debug().
		Str("operation", ev.Operation).
		Str("reason", string(reason)).
		Msg("Oracle fallback")
	metrics.New(metrics.Namespace).
		Dimension("Operation", ev.Operation).
		Dimension("Reason", string(reason)).
		Count("OracleFallback").
		Metric("OracleFailedLatencyMs", float64(ev.Elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Flush()
}

// OpenVideo adapts the ffmpeg frame stream to behavior.VideoOpener. Every
// failure wraps behavior.ErrVideoOpen unless ctx ended first.
func OpenVideo(ctx context.Context, path string) (behavior.FrameSource, error) {
	stream, err := video.Open(ctx, path)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("open video: %w", cerr)
		}
		return nil, fmt.Errorf("%w: %v", behavior.ErrVideoOpen, err)
	}
	return stream, nil
}

// Close releases the detectors.
func (p *Pipeline) Close() error {
	if p.detectors == nil {
		return nil
	}
	return p.detectors.Close()
}

// IsVideoError reports whether err means the submitted video itself is
// unusable, as opposed to a server fault.
func IsVideoError(err error) bool {
	return errors.Is(err, behavior.ErrVideoOpen) || errors.Is(err, behavior.ErrVideoDecode)
}
