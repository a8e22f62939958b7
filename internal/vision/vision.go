// Package vision holds the image-side primitives of the behavioral pipeline:
// region geometry, the detector contract, face selection policies, and
// decoding of still frames into upright images.
//
// Concrete detectors live in subpackages (see vision/cascade) so that the
// pipeline itself never links against a native vision library.
package vision

import "image"

// Rect is an axis-aligned bounding box in pixel coordinates of the frame
// it was detected in.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Area returns w*h.
func (r Rect) Area() int {
	return r.W * r.H
}

// Center returns the geometric center of the box.
func (r Rect) Center() (float64, float64) {
	return float64(r.X) + float64(r.W)/2, float64(r.Y) + float64(r.H)/2
}

// Rectangle converts the box to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// FromRectangle converts an image.Rectangle to a Rect.
func FromRectangle(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Detector finds regions of one kind (faces, eyes) in a grayscale image.
//
// The search is restricted to region, and returned boxes are in the
// coordinate space of img, not of region. Implementations must be safe for
// concurrent use: a single detector is loaded at startup and shared by every
// in-flight analysis.
type Detector interface {
	Detect(img *image.Gray, region image.Rectangle) []Rect
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(img *image.Gray, region image.Rectangle) []Rect

// Detect calls f.
func (f DetectorFunc) Detect(img *image.Gray, region image.Rectangle) []Rect {
	return f(img, region)
}
