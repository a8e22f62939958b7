package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// EXIF orientation tag values (TIFF 6.0 / EXIF 2.3, tag 0x0112).
const (
	orientNormal      = 1
	orientFlipH       = 2
	orientRotate180   = 3
	orientFlipV       = 4
	orientTranspose   = 5
	orientRotate90CW  = 6
	orientTransverse  = 7
	orientRotate270CW = 8
)

// Decode decodes a single still frame (JPEG, PNG, GIF, WebP or BMP) and
// returns it upright. Webcam captures carry no orientation, but phone stills
// usually do, and the cascade detectors only find upright faces.
//
// The returned format is the name registered by the image package
// ("jpeg", "png", "webp", ...).
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	if format == "jpeg" {
		if o := readOrientation(data); o > orientNormal {
			log.Debug().Int("orientation", o).Msg("Applying EXIF orientation to frame")
			img = Orient(img, o)
		}
	}
	return img, format, nil
}

// readOrientation returns the EXIF orientation of a JPEG, or 0 when the
// image has no readable EXIF block.
func readOrientation(data []byte) int {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	return int(exifData.Orientation)
}

// Orient returns img transformed so that an image stored with the given
// EXIF orientation is displayed upright. Unknown values return img as is.
func Orient(img image.Image, orientation int) image.Image {
	if orientation <= orientNormal || orientation > orientRotate270CW {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dw, dh := w, h
	if orientation >= orientTranspose {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch orientation {
			case orientFlipH:
				sx, sy = w-1-x, y
			case orientRotate180:
				sx, sy = w-1-x, h-1-y
			case orientFlipV:
				sx, sy = x, h-1-y
			case orientTranspose:
				sx, sy = y, x
			case orientRotate90CW:
				sx, sy = y, h-1-x
			case orientTransverse:
				sx, sy = w-1-y, h-1-x
			case orientRotate270CW:
				sx, sy = w-1-y, x
			}
			dst.Set(x, y, img.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return dst
}
