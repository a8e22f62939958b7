package behavior

import (
	"image"

	"github.com/fpang/interview-coach/internal/vision"
)

// minEyes is the number of eye regions that counts as eye contact.
const minEyes = 2

// Extractor turns one frame into a FrameObservation. It holds only
// read-only detectors and is safe for concurrent use.
type Extractor struct {
	faces  vision.Detector
	eyes   vision.Detector
	policy vision.FacePolicy
}

// NewExtractor returns an extractor. A nil policy selects the largest face.
func NewExtractor(faces, eyes vision.Detector, policy vision.FacePolicy) *Extractor {
	if policy == nil {
		policy = vision.LargestFace
	}
	return &Extractor{faces: faces, eyes: eyes, policy: policy}
}

// Extract detects the subject's face and eyes in img and scores posture.
func (e *Extractor) Extract(img image.Image) FrameObservation {
	gray := vision.ToGray(img)
	bounds := gray.Bounds()

	face, ok := e.policy(e.faces.Detect(gray, bounds), bounds)
	if !ok {
		return FrameObservation{}
	}

	eyes := e.eyes.Detect(gray, face.Rectangle().Intersect(bounds))
	return FrameObservation{
		FaceDetected: true,
		EyeContact:   len(eyes) >= minEyes,
		PostureScore: PostureScore(bounds.Dx(), bounds.Dy(), face),
	}
}
