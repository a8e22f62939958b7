package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

// captureOutput redirects flushed documents to a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return &buf
}

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "coach-api"
	t.Cleanup(func() { functionName = "" })

	r := New(Namespace)
	if r.namespace != Namespace {
		t.Errorf("expected namespace %s, got %s", Namespace, r.namespace)
	}
	if r.dimensions["FunctionName"] != "coach-api" {
		t.Errorf("expected FunctionName dimension coach-api, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	buf := captureOutput(t)
	initOnce.Do(func() {})
	functionName = ""

	New(Namespace).
		Dimension("Path", "local").
		Dimension("Operation", "session").
		Metric("AnalysisLatencyMs", 1234.5, UnitMilliseconds).
		Count("AnalysisCount").
		Property("framesAnalyzed", 20).
		Flush()

	output := buf.String()
	if strings.Count(output, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", output)
	}

	var doc struct {
		AWS struct {
			Timestamp         int64 `json:"Timestamp"`
			CloudWatchMetrics []struct {
				Namespace  string     `json:"Namespace"`
				Dimensions [][]string `json:"Dimensions"`
				Metrics    []struct {
					Name string `json:"Name"`
					Unit string `json:"Unit"`
				} `json:"Metrics"`
			} `json:"CloudWatchMetrics"`
		} `json:"_aws"`
		Operation         string  `json:"Operation"`
		Path              string  `json:"Path"`
		AnalysisLatencyMs float64 `json:"AnalysisLatencyMs"`
		AnalysisCount     float64 `json:"AnalysisCount"`
		FramesAnalyzed    int     `json:"framesAnalyzed"`
	}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output: %v\nOutput: %s", err, output)
	}

	if doc.AWS.Timestamp == 0 {
		t.Error("missing Timestamp in _aws directive")
	}
	if len(doc.AWS.CloudWatchMetrics) != 1 {
		t.Fatalf("expected one CloudWatchMetrics entry, got %d", len(doc.AWS.CloudWatchMetrics))
	}
	cw := doc.AWS.CloudWatchMetrics[0]
	if cw.Namespace != Namespace {
		t.Errorf("namespace: got %s", cw.Namespace)
	}
	if len(cw.Dimensions) != 1 || strings.Join(cw.Dimensions[0], ",") != "Operation,Path" {
		t.Errorf("dimensions should be sorted, got %v", cw.Dimensions)
	}
	if len(cw.Metrics) != 2 || cw.Metrics[0].Name != "AnalysisCount" || cw.Metrics[1].Unit != UnitMilliseconds {
		t.Errorf("unexpected metric definitions %+v", cw.Metrics)
	}
	if doc.Operation != "session" || doc.Path != "local" {
		t.Errorf("dimension values: %q %q", doc.Operation, doc.Path)
	}
	if doc.AnalysisLatencyMs != 1234.5 || doc.AnalysisCount != 1 {
		t.Errorf("metric values: %v %v", doc.AnalysisLatencyMs, doc.AnalysisCount)
	}
	if doc.FramesAnalyzed != 20 {
		t.Errorf("property: got %v", doc.FramesAnalyzed)
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	buf := captureOutput(t)
	New("Test").Dimension("Op", "noop").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Since(t *testing.T) {
	rec := New("Test").Since("ElapsedMs", time.Now().Add(-50*time.Millisecond))
	v, ok := rec.values["ElapsedMs"].(float64)
	if !ok || v < 50 {
		t.Errorf("expected ElapsedMs >= 50, got %v", rec.values["ElapsedMs"])
	}
	if rec.metrics["ElapsedMs"].Unit != UnitMilliseconds {
		t.Errorf("unexpected unit %q", rec.metrics["ElapsedMs"].Unit)
	}
}

func TestRecorder_Chaining(t *testing.T) {
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["Duration"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}
