// Package behavior implements the behavioral analysis pipeline: per-frame
// face and eye extraction, the posture heuristic, session reduction,
// confidence and feedback generation, and live chunk analysis.
//
// Two Analyzer implementations produce the same output shapes: Local (the
// deterministic pipeline in this package) and the remote oracle in
// internal/oracle. Fallback composes them.
package behavior

// Result sources reported in SessionScoreReport.Source and ChunkMetrics.Source.
const (
	SourceLocal  = "local"
	SourceOracle = "oracle"
)

// FrameObservation is the extractor's result for one sampled frame.
type FrameObservation struct {
	FaceDetected bool    `json:"face_detected"`
	EyeContact   bool    `json:"eye_contact"`
	PostureScore float64 `json:"posture_score"`
}

// SessionMetadata describes how a session report was derived.
type SessionMetadata struct {
	DurationSec       float64 `json:"duration_sec"`
	FramesAnalyzed    int     `json:"frames_analyzed"`
	FaceDetectionRate float64 `json:"face_detection_rate"`
}

// SessionScoreReport is the result of a whole-video analysis.
type SessionScoreReport struct {
	ConfidenceScore float64         `json:"confidence_score"`
	EyeContactScore float64         `json:"eye_contact_score"`
	PostureScore    float64         `json:"posture_score"`
	SpeechClarity   float64         `json:"speech_clarity"`
	OverallFeedback string          `json:"overall_feedback"`
	Improvements    []string        `json:"improvements"`
	Metadata        SessionMetadata `json:"metadata"`
	Source          string          `json:"source"`

	// Oracle only.
	Trends   *Trends   `json:"trends,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Trends are session-level qualitative observations reported by the oracle.
type Trends struct {
	Emotion         []TrendSample `json:"emotion"`
	Focus           []TrendSample `json:"focus"`
	ResponseQuality []TrendSample `json:"responseQuality"`
}

// TrendSample is one point on the response-quality curve.
type TrendSample struct {
	T     float64 `json:"t"`
	Score float64 `json:"score"`
}

// Segment is one answer segment of a session as identified by the oracle.
type Segment struct {
	TStart     float64        `json:"tStart"`
	TEnd       float64        `json:"tEnd"`
	Transcript string         `json:"transcript,omitempty"`
	STAR       STAR           `json:"star"`
	Metrics    SegmentMetrics `json:"metrics"`
}

// SegmentMetrics are per-segment scores.
type SegmentMetrics struct {
	Clarity    float64 `json:"clarity"`
	Confidence float64 `json:"confidence"`
	Engagement float64 `json:"engagement"`
	Emotion    string  `json:"emotion,omitempty"`
}

// STAR records which parts of a Situation/Task/Action/Result answer were
// present.
type STAR struct {
	Situation    bool    `json:"situation"`
	Task         bool    `json:"task"`
	Action       bool    `json:"action"`
	Result       bool    `json:"result"`
	Completeness float64 `json:"completeness"`
}

// ChunkMetrics is the incremental result for one live chunk.
type ChunkMetrics struct {
	SpeechClarity      float64  `json:"speech_clarity"`
	ToneConfidence     float64  `json:"tone_confidence"`
	EmotionalStability float64  `json:"emotional_stability"`
	EyeContact         bool     `json:"eye_contact"`
	EyeContactScore    float64  `json:"eye_contact_score"`
	FacialExpression   string   `json:"facial_expression"`
	EngagementLevel    float64  `json:"engagement_level"`
	STAR               STAR     `json:"star"`
	Suggestions        []string `json:"suggestions"`
	Source             string   `json:"source"`
}

// Chunk is one live sample. Every field is optional.
type Chunk struct {
	Image      []byte
	ImageMIME  string
	Audio      []byte
	AudioMIME  string
	Transcript string
}

// HasMedia reports whether the chunk carries anything to analyze.
func (c Chunk) HasMedia() bool {
	return len(c.Image) > 0 || len(c.Audio) > 0 || c.Transcript != ""
}

// VideoInput identifies a video on local disk.
type VideoInput struct {
	Path     string
	MIMEType string
}
