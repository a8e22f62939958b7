// Package cascade provides vision.Detector implementations backed by
// OpenCV Haar cascade classifiers.
package cascade

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/fpang/interview-coach/internal/vision"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Default cascade locations for the opencv4 data package on Debian/Ubuntu
// and in the Lambda container image.
const (
	DefaultFacePath = "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml"
	DefaultEyePath  = "/usr/share/opencv4/haarcascades/haarcascade_eye.xml"
)

// Detection parameters shared by both classifiers.
const (
	scaleFactor  = 1.1
	minNeighbors = 4
)

// Classifier wraps a gocv.CascadeClassifier. The underlying OpenCV object is
// not safe for concurrent use, so calls are serialized.
type Classifier struct {
	mu   sync.Mutex
	cc   gocv.CascadeClassifier
	name string
}

var _ vision.Detector = (*Classifier)(nil)

// Load reads a cascade XML file.
func Load(path string) (*Classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade %s: %w", path, err)
	}
	cc := gocv.NewCascadeClassifier()
	if !cc.Load(path) {
		cc.Close()
		return nil, fmt.Errorf("cascade %s: failed to load classifier", path)
	}
	log.Debug().Str("path", path).Msg("Cascade classifier loaded")
	return &Classifier{cc: cc, name: path}, nil
}

// Detect runs the classifier over region of img. Returned boxes are offset
// back into img coordinates.
func (c *Classifier) Detect(img *image.Gray, region image.Rectangle) []vision.Rect {
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return nil
	}

	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to convert frame to Mat")
		return nil
	}
	defer mat.Close()

	roi := mat.Region(region)
	defer roi.Close()

	c.mu.Lock()
	found := c.cc.DetectMultiScaleWithParams(roi, scaleFactor, minNeighbors, 0, image.Point{}, image.Point{})
	c.mu.Unlock()

	out := make([]vision.Rect, 0, len(found))
	for _, r := range found {
		out = append(out, vision.FromRectangle(r.Add(region.Min)))
	}
	return out
}

// Close releases the native classifier.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cc.Close()
}

// Detectors is the face/eye classifier pair used by frame feature extraction.
type Detectors struct {
	Face *Classifier
	Eye  *Classifier
}

// LoadDetectors loads both classifiers. Empty paths fall back to the
// defaults.
func LoadDetectors(facePath, eyePath string) (*Detectors, error) {
	if facePath == "" {
		facePath = DefaultFacePath
	}
	if eyePath == "" {
		eyePath = DefaultEyePath
	}

	face, err := Load(facePath)
	if err != nil {
		return nil, fmt.Errorf("face detector: %w", err)
	}
	eye, err := Load(eyePath)
	if err != nil {
		face.Close()
		return nil, fmt.Errorf("eye detector: %w", err)
	}

	log.Info().
		Str("face", facePath).
		Str("eye", eyePath).
		Msg("Detectors ready")
	return &Detectors{Face: face, Eye: eye}, nil
}

// Close releases both classifiers.
func (d *Detectors) Close() error {
	ferr := d.Face.Close()
	eerr := d.Eye.Close()
	if ferr != nil {
		return ferr
	}
	return eerr
}
