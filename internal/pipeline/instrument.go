package pipeline

import (
	"context"
	"time"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/metrics"
)

// instrumented records latency and outcome for every analysis.
type instrumented struct {
	next behavior.Analyzer
}

func instrument(a behavior.Analyzer) behavior.Analyzer {
	return &instrumented{next: a}
}

func (i *instrumented) AnalyzeSession(ctx context.Context, in behavior.VideoInput) (*behavior.SessionScoreReport, error) {
	start := time.Now()
	report, err := i.next.AnalyzeSession(ctx, in)
	path := ""
	if report != nil {
		path = report.Source
	}
	record("session", path, start, err)
	return report, err
}

func (i *instrumented) AnalyzeChunk(ctx context.Context, chunk behavior.Chunk) (*behavior.ChunkMetrics, error) {
	start := time.Now()
	m, err := i.next.AnalyzeChunk(ctx, chunk)
	path := ""
	if m != nil {
		path = m.Source
	}
	record("chunk", path, start, err)
	return m, err
}

func record(op, path string, start time.Time, err error) {
	if path == "" {
		path = "none"
	}
	m := metrics.New(metrics.Namespace).
		Dimension("Operation", op).
		Dimension("Path", path).
		Since("AnalysisLatencyMs", start).
		Count("AnalysisCount")
	if err != nil {
		m.Count("AnalysisErrors").Property("error", err.Error())
	}
	m.Flush()
}
