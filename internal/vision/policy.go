package vision

import (
	"fmt"
	"image"
	"math"
)

// FacePolicy picks the one face that represents the candidate when the
// detector returns several. ok is false when faces is empty.
//
// The pipeline scores a single subject; the policy is the only place that
// decides which subject that is.
type FacePolicy func(faces []Rect, frame image.Rectangle) (face Rect, ok bool)

// Face policy names accepted by PolicyByName (FACE_POLICY).
const (
	PolicyLargest      = "largest"
	PolicyMostCentered = "centered"
)

// LargestFace selects the box with the largest area. Ties go to the box
// encountered first, so overlapping duplicates from the detector are harmless.
func LargestFace(faces []Rect, _ image.Rectangle) (Rect, bool) {
	if len(faces) == 0 {
		return Rect{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best, true
}

// MostCentered selects the box whose center is closest to the ideal
// interview framing point (horizontal center, one third from the top).
// Ties go to the box encountered first.
func MostCentered(faces []Rect, frame image.Rectangle) (Rect, bool) {
	if len(faces) == 0 {
		return Rect{}, false
	}
	ix := float64(frame.Dx()) / 2
	iy := float64(frame.Dy()) / 3

	best := faces[0]
	bestDist := math.Inf(1)
	for _, f := range faces {
		cx, cy := f.Center()
		d := math.Hypot(cx-ix, cy-iy)
		if d < bestDist {
			best, bestDist = f, d
		}
	}
	return best, true
}

// PolicyByName resolves a configured policy name. An empty name selects
// LargestFace.
func PolicyByName(name string) (FacePolicy, error) {
	switch name {
	case "", PolicyLargest:
		return LargestFace, nil
	case PolicyMostCentered:
		return MostCentered, nil
	default:
		return nil, fmt.Errorf("unknown face policy %q (want %q or %q)", name, PolicyLargest, PolicyMostCentered)
	}
}
