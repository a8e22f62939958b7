package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/interview-coach/internal/behavior"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{83*time.Second + 400*time.Millisecond, "1:23"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.in); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPromptForVideo(t *testing.T) {
	var out bytes.Buffer
	got := PromptForVideo(strings.NewReader("'/tmp/my answer.mp4' \n"), &out)
	if got != "/tmp/my answer.mp4" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(out.String(), "Video file") {
		t.Errorf("prompt not written: %q", out.String())
	}

	if got := PromptForVideo(strings.NewReader(""), &out); got != "" {
		t.Errorf("empty input: got %q", got)
	}
}

func TestResolveVideoPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "answer.mp4")
	os.WriteFile(file, []byte("x"), 0o644)

	got, err := ResolveVideoPath(file)
	if err != nil || got != file {
		t.Errorf("got %q, %v", got, err)
	}
	for _, bad := range []string{"", dir, filepath.Join(dir, "missing.mp4")} {
		if _, err := ResolveVideoPath(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &behavior.SessionScoreReport{
		ConfidenceScore: 71.5,
		EyeContactScore: 80,
		PostureScore:    63,
		OverallFeedback: behavior.OverallGood,
		Improvements:    []string{"Sit up straight"},
		Metadata:        behavior.SessionMetadata{DurationSec: 95, FramesAnalyzed: 180, FaceDetectionRate: 94.7},
		Source:          behavior.SourceLocal,
	})
	out := buf.String()
	for _, want := range []string{"Duration 1:35", "180 frames", "Confidence 72", "- Sit up straight"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
