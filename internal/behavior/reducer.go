package behavior

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/rs/zerolog/log"
)

var (
	// ErrVideoOpen is returned when a video cannot be opened or probed.
	ErrVideoOpen = errors.New("video cannot be opened")
	// ErrVideoDecode is returned when frames cannot be read from an opened
	// video.
	ErrVideoDecode = errors.New("video cannot be decoded")
)

// FrameSource is a finite, sequential sequence of decoded frames.
type FrameSource interface {
	// FPS returns the frame rate, or 0 if unknown.
	FPS() float64
	// FrameCount returns the total number of frames, or 0 if unknown.
	FrameCount() int
	// Next returns the next frame, or io.EOF after the last one.
	Next() (image.Image, error)
	Close() error
}

// VideoOpener opens a video file as a FrameSource. Failures should wrap
// ErrVideoOpen.
type VideoOpener func(ctx context.Context, path string) (FrameSource, error)

// SampleStride returns how many frames to advance between samples so that
// roughly two frames per second are analyzed.
func SampleStride(fps float64) int {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 1
	}
	return max(1, int(math.Ceil(fps/2)))
}

// Reducer reduces a whole video to a SessionScoreReport.
type Reducer struct {
	extractor *Extractor
}

// NewReducer returns a reducer that scores frames with extractor.
func NewReducer(extractor *Extractor) *Reducer {
	return &Reducer{extractor: extractor}
}

// sessionTally accumulates per-frame observations.
type sessionTally struct {
	samples    int
	faces      int
	eyeContact int
	postures   []float64
}

func (t *sessionTally) add(obs FrameObservation) {
	t.samples++
	if !obs.FaceDetected {
		return
	}
	t.faces++
	if obs.EyeContact {
		t.eyeContact++
	}
	t.postures = append(t.postures, obs.PostureScore)
}

// Reduce samples src at SampleStride, extracts every sampled frame and
// reduces the observations to session scores. src is closed before Reduce
// returns. A read failure yields an ErrVideoDecode error and no report. A
// cancelled or expired context surfaced by src is returned as is, so callers
// can tell a timeout from a bad video.
func (r *Reducer) Reduce(src FrameSource) (*SessionScoreReport, error) {
	defer func() {
		if err := src.Close(); err != nil {
			log.Debug().Err(err).Msg("Frame source close reported an error")
		}
	}()

	fps := src.FPS()
	stride := SampleStride(fps)

	var tally sessionTally
	frames := 0
	for {
		img, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isContextError(err) {
				return nil, fmt.Errorf("frame %d: %w", frames, err)
			}
			return nil, fmt.Errorf("%w: frame %d: %v", ErrVideoDecode, frames, err)
		}
		if frames%stride == 0 {
			tally.add(r.extractor.Extract(img))
		}
		frames++
	}

	if frames == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrVideoDecode)
	}

	total := src.FrameCount()
	if total <= 0 {
		total = frames
	}
	duration := 0.0
	if fps > 0 {
		duration = float64(total) / fps
	}

	log.Debug().
		Int("frames", frames).
		Int("stride", stride).
		Int("samples", tally.samples).
		Int("faces", tally.faces).
		Msg("Session reduced")

	return tally.report(duration), nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// report turns the tally into scores, confidence and feedback.
func (t *sessionTally) report(duration float64) *SessionScoreReport {
	eye := 100 * float64(t.eyeContact) / float64(max(t.faces, 1))

	posture := 0.0
	if len(t.postures) > 0 {
		sum := 0.0
		for _, p := range t.postures {
			sum += p
		}
		posture = sum / float64(len(t.postures))
	}

	confidence := Confidence(eye, posture)
	overall, improvements := Feedback(eye, posture, confidence)

	return &SessionScoreReport{
		ConfidenceScore: round2(confidence),
		EyeContactScore: round2(clamp(eye)),
		PostureScore:    round2(clamp(posture)),
		SpeechClarity:   0,
		OverallFeedback: overall,
		Improvements:    improvements,
		Metadata: SessionMetadata{
			DurationSec:       round2(duration),
			FramesAnalyzed:    t.faces,
			FaceDetectionRate: round2(100 * float64(t.faces) / float64(max(t.samples, 1))),
		},
		Source: SourceLocal,
	}
}
