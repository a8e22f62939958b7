package behavior

import (
	"github.com/fpang/interview-coach/internal/vision"
	"github.com/rs/zerolog/log"
)

// NeutralExpression is the facial expression reported without the oracle.
const NeutralExpression = "neutral"

// DefaultSuggestions are the fixed suggestions of the local chunk path.
var DefaultSuggestions = []string{
	"Maintain steady eye contact",
	"Sit centered in frame",
}

// ChunkAnalyzer scores a single live chunk. It keeps no state between
// chunks.
type ChunkAnalyzer struct {
	extractor *Extractor
}

// NewChunkAnalyzer returns a chunk analyzer backed by extractor.
func NewChunkAnalyzer(extractor *Extractor) *ChunkAnalyzer {
	return &ChunkAnalyzer{extractor: extractor}
}

// Analyze scores eye contact from the chunk's image, if any. Audio and
// transcript are not analyzed locally. An image that cannot be decoded is
// treated as a frame with no face.
func (a *ChunkAnalyzer) Analyze(chunk Chunk) *ChunkMetrics {
	m := InertChunkMetrics()

	if len(chunk.Image) == 0 {
		return m
	}
	img, format, err := vision.Decode(chunk.Image)
	if err != nil {
		log.Debug().Err(err).Int("bytes", len(chunk.Image)).Msg("Chunk image not decodable, scoring as no face")
		return m
	}

	obs := a.extractor.Extract(img)
	m.EyeContact = obs.EyeContact
	if obs.EyeContact {
		m.EyeContactScore = 100
	}
	log.Debug().
		Str("format", format).
		Bool("face", obs.FaceDetected).
		Bool("eyeContact", obs.EyeContact).
		Msg("Chunk analyzed")
	return m
}

// InertChunkMetrics returns the fully populated defaults of the local chunk
// path: zero scores, neutral expression, no STAR components and the fixed
// suggestions.
func InertChunkMetrics() *ChunkMetrics {
	return &ChunkMetrics{
		FacialExpression: NeutralExpression,
		Suggestions:      append([]string(nil), DefaultSuggestions...),
		Source:           SourceLocal,
	}
}
