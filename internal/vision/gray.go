package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// ToGray converts img to a single-channel intensity image whose bounds start
// at the origin. Detector coordinates are always relative to that origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
