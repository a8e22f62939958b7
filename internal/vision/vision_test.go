package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestLargestFace(t *testing.T) {
	frame := image.Rect(0, 0, 640, 480)
	tests := []struct {
		name   string
		faces  []Rect
		want   Rect
		wantOK bool
	}{
		{
			name:   "No faces",
			faces:  nil,
			wantOK: false,
		},
		{
			name:   "Single face",
			faces:  []Rect{{X: 10, Y: 10, W: 50, H: 50}},
			want:   Rect{X: 10, Y: 10, W: 50, H: 50},
			wantOK: true,
		},
		{
			name: "Largest wins",
			faces: []Rect{
				{X: 0, Y: 0, W: 40, H: 40},
				{X: 100, Y: 100, W: 120, H: 120},
				{X: 300, Y: 50, W: 60, H: 60},
			},
			want:   Rect{X: 100, Y: 100, W: 120, H: 120},
			wantOK: true,
		},
		{
			name: "Tie goes to first encountered",
			faces: []Rect{
				{X: 5, Y: 5, W: 100, H: 50},
				{X: 200, Y: 200, W: 50, H: 100},
			},
			want:   Rect{X: 5, Y: 5, W: 100, H: 50},
			wantOK: true,
		},
		{
			name: "Duplicate overlapping boxes tolerated",
			faces: []Rect{
				{X: 100, Y: 100, W: 80, H: 80},
				{X: 100, Y: 100, W: 80, H: 80},
			},
			want:   Rect{X: 100, Y: 100, W: 80, H: 80},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LargestFace(tt.faces, frame)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("face: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMostCentered(t *testing.T) {
	frame := image.Rect(0, 0, 600, 300)
	faces := []Rect{
		{X: 0, Y: 0, W: 200, H: 200},     // large, far from ideal
		{X: 280, Y: 80, W: 40, H: 40},    // centered on (300, 100)
		{X: 500, Y: 200, W: 100, H: 100}, // corner
	}
	got, ok := MostCentered(faces, frame)
	if !ok {
		t.Fatal("expected a face")
	}
	if got != faces[1] {
		t.Errorf("got %+v, want %+v", got, faces[1])
	}
}

func TestPolicyByName(t *testing.T) {
	for _, name := range []string{"", PolicyLargest, PolicyMostCentered} {
		if p, err := PolicyByName(name); err != nil || p == nil {
			t.Errorf("PolicyByName(%q): unexpected error %v", name, err)
		}
	}
	if _, err := PolicyByName("tallest"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRectGeometry(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 30, H: 40}
	if r.Area() != 1200 {
		t.Errorf("area: got %d", r.Area())
	}
	cx, cy := r.Center()
	if cx != 25 || cy != 40 {
		t.Errorf("center: got (%v, %v)", cx, cy)
	}
	if FromRectangle(r.Rectangle()) != r {
		t.Errorf("rectangle round trip changed %+v", r)
	}
}

// markedImage returns a w×h image that is black except for a white pixel
// at (1, 0), which makes every orientation distinguishable.
func markedImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Black)
		}
	}
	img.Set(1, 0, color.White)
	return img
}

func TestOrient(t *testing.T) {
	const w, h = 4, 3
	tests := []struct {
		name        string
		orientation int
		wantW       int
		wantH       int
		wantMark    image.Point
	}{
		{"Normal", 1, w, h, image.Pt(1, 0)},
		{"Flip horizontal", 2, w, h, image.Pt(2, 0)},
		{"Rotate 180", 3, w, h, image.Pt(2, 2)},
		{"Flip vertical", 4, w, h, image.Pt(1, 2)},
		{"Transpose", 5, h, w, image.Pt(0, 1)},
		{"Rotate 90 CW", 6, h, w, image.Pt(2, 1)},
		{"Transverse", 7, h, w, image.Pt(2, 2)},
		{"Rotate 270 CW", 8, h, w, image.Pt(0, 2)},
		{"Unknown value", 42, w, h, image.Pt(1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Orient(markedImage(w, h), tt.orientation)
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("size: got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			r, _, _, _ := out.At(tt.wantMark.X, tt.wantMark.Y).RGBA()
			if r != 0xffff {
				t.Errorf("expected marker at %v", tt.wantMark)
			}
		})
	}
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, markedImage(8, 6)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, format, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != "png" {
		t.Errorf("format: got %q, want png", format)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode(nil); err == nil {
		t.Error("expected error for empty input")
	}
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestToGrayRebasesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 20, 15))
	src.Set(10, 10, color.White)
	g := ToGray(src)
	if g.Bounds() != image.Rect(0, 0, 10, 5) {
		t.Fatalf("bounds: got %v", g.Bounds())
	}
	if g.GrayAt(0, 0).Y != 0xff {
		t.Errorf("expected white pixel at origin, got %d", g.GrayAt(0, 0).Y)
	}
}
