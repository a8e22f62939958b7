package behavior

import (
	"math"

	"github.com/fpang/interview-coach/internal/vision"
)

// Framing thresholds for the posture heuristic.
const (
	centeredTolerance = 0.3  // max normalized deviation on each axis
	minFaceRatio      = 0.05 // exclusive lower bound of the ideal face area band
	maxFaceRatio      = 0.25 // exclusive upper bound
	idealFaceRatio    = 0.15
	sizePenalty       = 1000 // score points per unit of face ratio off ideal
	decenteredWeight  = 0.8
)

// PositionScore scores how close the face center is to the ideal interview
// framing point (horizontal center, one third from the top). It returns the
// score and whether the face counts as centered.
func PositionScore(width, height int, face vision.Rect) (float64, bool) {
	if width <= 0 || height <= 0 {
		return 0, false
	}
	cx, cy := face.Center()
	idealX := float64(width) / 2
	idealY := float64(height) / 3

	dx := math.Abs(cx-idealX) / (float64(width) / 2)
	dy := math.Abs(cy-idealY) / (float64(height) / 2)

	score := math.Max(0, 100-(dx+dy)*50)
	return score, dx < centeredTolerance && dy < centeredTolerance
}

// SizeScore scores the fraction of the frame the face occupies.
func SizeScore(width, height int, face vision.Rect) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	ratio := float64(face.Area()) / float64(width*height)
	if ratio > minFaceRatio && ratio < maxFaceRatio {
		return 100
	}
	return math.Max(0, 100-math.Abs(ratio-idealFaceRatio)*sizePenalty)
}

// PostureScore combines position and size into one score in [0, 100].
// Decentered faces are scored on position alone.
func PostureScore(width, height int, face vision.Rect) float64 {
	position, centered := PositionScore(width, height, face)

	var score float64
	if centered {
		score = 0.6*position + 0.4*SizeScore(width, height, face)
	} else {
		score = decenteredWeight * position
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
