package behavior

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Analyzer produces session reports and chunk metrics. Local and the remote
// oracle are interchangeable implementations.
type Analyzer interface {
	AnalyzeSession(ctx context.Context, video VideoInput) (*SessionScoreReport, error)
	AnalyzeChunk(ctx context.Context, chunk Chunk) (*ChunkMetrics, error)
}

// Local is the deterministic pipeline.
type Local struct {
	reducer *Reducer
	chunks  *ChunkAnalyzer
	open    VideoOpener
}

var _ Analyzer = (*Local)(nil)

// NewLocal returns the deterministic analyzer. open is used to decode whole
// videos.
func NewLocal(extractor *Extractor, open VideoOpener) *Local {
	return &Local{
		reducer: NewReducer(extractor),
		chunks:  NewChunkAnalyzer(extractor),
		open:    open,
	}
}

// AnalyzeSession opens the video and reduces it.
func (l *Local) AnalyzeSession(ctx context.Context, video VideoInput) (*SessionScoreReport, error) {
	src, err := l.open(ctx, video.Path)
	if err != nil {
		return nil, err
	}
	return l.reducer.Reduce(src)
}

// AnalyzeChunk never fails.
func (l *Local) AnalyzeChunk(_ context.Context, chunk Chunk) (*ChunkMetrics, error) {
	return l.chunks.Analyze(chunk), nil
}

// FallbackEvent describes one primary failure absorbed by Fallback.
type FallbackEvent struct {
	Operation string // "session" or "chunk"
	Err       error
	Elapsed   time.Duration
}

// Fallback runs Primary and, on any error from it, Secondary. Results are
// never merged. Only Secondary's errors reach the caller.
type Fallback struct {
	Primary   Analyzer
	Secondary Analyzer

	// Timeout bounds each Primary call. Zero means no extra bound.
	Timeout time.Duration

	// OnFallback, if set, is called after each absorbed Primary failure.
	OnFallback func(FallbackEvent)
}

var _ Analyzer = (*Fallback)(nil)

// AnalyzeSession implements Analyzer.
func (f *Fallback) AnalyzeSession(ctx context.Context, video VideoInput) (*SessionScoreReport, error) {
	if f.Primary != nil {
		start := time.Now()
		pctx, cancel := f.primaryContext(ctx)
		report, err := f.Primary.AnalyzeSession(pctx, video)
		cancel()
		if err == nil && report != nil {
			return report, nil
		}
		f.fellBack("session", err, time.Since(start))
	}
	return f.Secondary.AnalyzeSession(ctx, video)
}

// AnalyzeChunk implements Analyzer.
func (f *Fallback) AnalyzeChunk(ctx context.Context, chunk Chunk) (*ChunkMetrics, error) {
	if f.Primary != nil {
		start := time.Now()
		pctx, cancel := f.primaryContext(ctx)
		metrics, err := f.Primary.AnalyzeChunk(pctx, chunk)
		cancel()
		if err == nil && metrics != nil {
			return metrics, nil
		}
		f.fellBack("chunk", err, time.Since(start))
	}
	return f.Secondary.AnalyzeChunk(ctx, chunk)
}

func (f *Fallback) primaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.Timeout > 0 {
		return context.WithTimeout(ctx, f.Timeout)
	}
	return context.WithCancel(ctx)
}

func (f *Fallback) fellBack(op string, err error, elapsed time.Duration) {
	if err == nil {
		err = fmt.Errorf("primary returned no result")
	}
	log.Warn().
		Err(err).
		Str("operation", op).
		Dur("elapsed", elapsed).
		Msg("Primary analyzer failed, using local pipeline")
	if f.OnFallback != nil {
		f.OnFallback(FallbackEvent{Operation: op, Err: err, Elapsed: elapsed})
	}
}
