package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/jsonutil"
)

// score is a 0-100 value that the model may send as a number or a numeric
// string. Values are clamped on decode.
type score float64

func (s *score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		var str string
		if serr := json.Unmarshal(data, &str); serr != nil {
			return fmt.Errorf("score: %w", err)
		}
		v, err = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(str), "%"), 64)
		if err != nil {
			return fmt.Errorf("score %q: %w", str, err)
		}
	}
	if math.IsNaN(v) {
		v = 0
	}
	*s = score(math.Max(0, math.Min(100, v)))
	return nil
}

// flag is a boolean that the model may send as "true"/"false" or 0/1.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flag(b)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		parsed, perr := strconv.ParseBool(strings.TrimSpace(str))
		if perr != nil {
			return fmt.Errorf("flag %q: %w", str, perr)
		}
		*f = flag(parsed)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("flag: unsupported value %s", data)
}

// label is a string that tolerates numbers.
type label string

func (l *label) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*l = label(str)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*l = label(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = ""
		return nil
	}
	return fmt.Errorf("label: unsupported value %s", data)
}

type starJSON struct {
	Situation    flag  `json:"situation"`
	Task         flag  `json:"task"`
	Action       flag  `json:"action"`
	Result       flag  `json:"result"`
	Completeness score `json:"completeness"`
}

func (s *starJSON) toSTAR() behavior.STAR {
	if s == nil {
		return behavior.STAR{}
	}
	return behavior.STAR{
		Situation:    bool(s.Situation),
		Task:         bool(s.Task),
		Action:       bool(s.Action),
		Result:       bool(s.Result),
		Completeness: float64(s.Completeness),
	}
}

// chunkJSON mirrors the chunk prompt. Pointer fields are required.
type chunkJSON struct {
	SpeechClarity      *score    `json:"speech_clarity"`
	ToneConfidence     *score    `json:"tone_confidence"`
	EmotionalStability *score    `json:"emotional_stability"`
	EyeContact         *flag     `json:"eye_contact"`
	EyeContactScore    *score    `json:"eye_contact_score"`
	FacialExpression   label     `json:"facial_expression"`
	EngagementLevel    *score    `json:"engagement_level"`
	STAR               *starJSON `json:"star"`
	Suggestions        []string  `json:"suggestions"`
}

// parseChunk converts raw model text to ChunkMetrics. Missing required keys
// are reported as ErrMalformed.
func parseChunk(raw string) (*behavior.ChunkMetrics, error) {
	c, err := jsonutil.ParseObject[chunkJSON](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var missing []string
	if c.SpeechClarity == nil {
		missing = append(missing, "speech_clarity")
	}
	if c.ToneConfidence == nil {
		missing = append(missing, "tone_confidence")
	}
	if c.EmotionalStability == nil {
		missing = append(missing, "emotional_stability")
	}
	if c.EyeContact == nil && c.EyeContactScore == nil {
		missing = append(missing, "eye_contact")
	}
	if c.EngagementLevel == nil {
		missing = append(missing, "engagement_level")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}

	m := &behavior.ChunkMetrics{
		SpeechClarity:      float64(*c.SpeechClarity),
		ToneConfidence:     float64(*c.ToneConfidence),
		EmotionalStability: float64(*c.EmotionalStability),
		FacialExpression:   strings.TrimSpace(string(c.FacialExpression)),
		EngagementLevel:    float64(*c.EngagementLevel),
		STAR:               c.STAR.toSTAR(),
		Suggestions:        cleanStrings(c.Suggestions),
		Source:             behavior.SourceOracle,
	}
	switch {
	case c.EyeContact != nil && c.EyeContactScore != nil:
		m.EyeContact = bool(*c.EyeContact)
		m.EyeContactScore = float64(*c.EyeContactScore)
	case c.EyeContact != nil:
		m.EyeContact = bool(*c.EyeContact)
		if m.EyeContact {
			m.EyeContactScore = 100
		}
	default:
		m.EyeContactScore = float64(*c.EyeContactScore)
		m.EyeContact = m.EyeContactScore >= 50
	}
	if m.FacialExpression == "" {
		m.FacialExpression = behavior.NeutralExpression
	}
	return m, nil
}

type overallJSON struct {
	ConfidenceScore *score `json:"confidence_score"`
	EyeContactScore *score `json:"eye_contact_score"`
	PostureScore    *score `json:"posture_score"`
	SpeechClarity   *score `json:"speech_clarity"`
}

type trendJSON struct {
	T     float64 `json:"t"`
	Score score   `json:"score"`
}

type segmentJSON struct {
	TStart     float64   `json:"tStart"`
	TEnd       float64   `json:"tEnd"`
	Transcript string    `json:"transcript"`
	STAR       *starJSON `json:"star"`
	Metrics    struct {
		Clarity    score `json:"clarity"`
		Confidence score `json:"confidence"`
		Engagement score `json:"engagement"`
		Emotion    label `json:"emotion"`
	} `json:"metrics"`
}

type sessionJSON struct {
	Overall *overallJSON `json:"overall"`
	Trends  *struct {
		Emotion         []trendJSON `json:"emotion"`
		Focus           []trendJSON `json:"focus"`
		ResponseQuality []trendJSON `json:"responseQuality"`
	} `json:"trends"`
	Segments []segmentJSON `json:"segments"`
	Feedback *struct {
		Overall      string   `json:"overall"`
		Improvements []string `json:"improvements"`
	} `json:"feedback"`
}

// parseSession converts raw model text to a SessionScoreReport. The overall
// block and all four of its scores are required.
func parseSession(raw string) (*behavior.SessionScoreReport, error) {
	s, err := jsonutil.ParseObject[sessionJSON](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Overall == nil {
		return nil, fmt.Errorf("%w: missing overall", ErrMalformed)
	}
	o := s.Overall
	if o.ConfidenceScore == nil || o.EyeContactScore == nil || o.PostureScore == nil || o.SpeechClarity == nil {
		return nil, fmt.Errorf("%w: incomplete overall scores", ErrMalformed)
	}

	r := &behavior.SessionScoreReport{
		ConfidenceScore: float64(*o.ConfidenceScore),
		EyeContactScore: float64(*o.EyeContactScore),
		PostureScore:    float64(*o.PostureScore),
		SpeechClarity:   float64(*o.SpeechClarity),
		Improvements:    []string{},
		Source:          behavior.SourceOracle,
	}
	if s.Feedback != nil {
		r.OverallFeedback = strings.TrimSpace(s.Feedback.Overall)
		r.Improvements = cleanStrings(s.Feedback.Improvements)
	}
	if r.OverallFeedback == "" {
		r.OverallFeedback = behavior.OverallBand(r.ConfidenceScore)
	}
	if s.Trends != nil {
		r.Trends = &behavior.Trends{
			Emotion:         toSamples(s.Trends.Emotion),
			Focus:           toSamples(s.Trends.Focus),
			ResponseQuality: toSamples(s.Trends.ResponseQuality),
		}
	}
	for _, seg := range s.Segments {
		r.Segments = append(r.Segments, behavior.Segment{
			TStart:     seg.TStart,
			TEnd:       seg.TEnd,
			Transcript: seg.Transcript,
			STAR:       seg.STAR.toSTAR(),
			Metrics: behavior.SegmentMetrics{
				Clarity:    float64(seg.Metrics.Clarity),
				Confidence: float64(seg.Metrics.Confidence),
				Engagement: float64(seg.Metrics.Engagement),
				Emotion:    string(seg.Metrics.Emotion),
			},
		})
	}
	return r, nil
}

func toSamples(in []trendJSON) []behavior.TrendSample {
	out := make([]behavior.TrendSample, 0, len(in))
	for _, p := range in {
		out = append(out, behavior.TrendSample{T: p.T, Score: float64(p.Score)})
	}
	return out
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
