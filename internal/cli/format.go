// Package cli holds the terminal helpers of coach-cli: interactive prompts,
// path checks and the human-readable report summary.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fpang/interview-coach/internal/behavior"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// PrintSummary writes a short human-readable digest of a session report.
func PrintSummary(w io.Writer, r *behavior.SessionScoreReport) {
	duration := time.Duration(r.Metadata.DurationSec * float64(time.Second))
	fmt.Fprintf(w, "Duration %s, %d frames with a face (%.0f%%), source %s\n",
		FormatDurationShort(duration), r.Metadata.FramesAnalyzed, r.Metadata.FaceDetectionRate, r.Source)
	fmt.Fprintf(w, "Confidence %.0f  Eye contact %.0f  Posture %.0f\n",
		r.ConfidenceScore, r.EyeContactScore, r.PostureScore)
	fmt.Fprintln(w, r.OverallFeedback)
	for _, tip := range r.Improvements {
		fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(tip))
	}
}
