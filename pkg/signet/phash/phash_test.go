package phash

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/signetlabs/signet/pkg/models"
)

// encodePNG renders an image to PNG bytes
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

// solidImage builds a single-color image
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// gradientImage builds an image with enough structure that every row
// and column clears the border-trim luminance threshold
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(100 + (x*155)/max(w-1, 1))
			g := uint8(100 + (y*155)/max(h-1, 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: g, B: 128, A: 255})
		}
	}
	return img
}

func TestHashImageDeterminism(t *testing.T) {
	data := encodePNG(t, solidImage(640, 480, color.NRGBA{R: 255, A: 255}))

	first, err := HashImage(data)
	if err != nil {
		t.Fatalf("HashImage failed: %v", err)
	}
	second, err := HashImage(data)
	if err != nil {
		t.Fatalf("HashImage failed on second call: %v", err)
	}

	if first != second {
		t.Errorf("same bytes hashed differently: %s vs %s", first, second)
	}
	if len(first) != CanonicalHexLen {
		t.Errorf("expected %d hex chars, got %d", CanonicalHexLen, len(first))
	}
}

func TestHashImageSegmentsEqual(t *testing.T) {
	data := encodePNG(t, gradientImage(320, 240))

	fp, err := HashImage(data)
	if err != nil {
		t.Fatalf("HashImage failed: %v", err)
	}

	seg0 := fp[0:SegmentHexLen]
	seg1 := fp[SegmentHexLen : 2*SegmentHexLen]
	seg2 := fp[2*SegmentHexLen:]
	if seg0 != seg1 || seg1 != seg2 {
		t.Errorf("image fingerprint segments are not replicated: %s / %s / %s", seg0, seg1, seg2)
	}
}

// An all-black image survives border trimming with no bounding box; the
// pipeline must return a valid low-entropy fingerprint, not crash.
func TestHashImageAllBlack(t *testing.T) {
	data := encodePNG(t, solidImage(128, 128, color.NRGBA{A: 255}))

	fp, err := HashImage(data)
	if err != nil {
		t.Fatalf("HashImage failed on all-black image: %v", err)
	}
	if len(fp) != CanonicalHexLen {
		t.Errorf("expected %d hex chars, got %d", CanonicalHexLen, len(fp))
	}
	if !Valid(fp) {
		t.Errorf("all-black fingerprint is not valid hex: %s", fp)
	}
}

// Letterboxing robustness: a frame embedded in black bars must hash to
// the same fingerprint as the bare frame.
func TestHashImageLetterboxInvariant(t *testing.T) {
	inner := gradientImage(120, 80)
	bare, err := HashImage(encodePNG(t, inner))
	if err != nil {
		t.Fatalf("HashImage failed on bare frame: %v", err)
	}

	canvas := solidImage(200, 150, color.NRGBA{A: 255})
	offX, offY := 40, 35
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			canvas.SetNRGBA(offX+x, offY+y, inner.NRGBAAt(x, y))
		}
	}
	boxed, err := HashImage(encodePNG(t, canvas))
	if err != nil {
		t.Fatalf("HashImage failed on letterboxed frame: %v", err)
	}

	if bare != boxed {
		d, _ := Distance(bare, boxed)
		t.Errorf("letterboxed copy hashed differently (distance %d)", d)
	}
}

func TestTrimBordersUniformImage(t *testing.T) {
	img := solidImage(64, 64, color.NRGBA{A: 255})
	trimmed := TrimBorders(img)
	if trimmed.Bounds() != img.Bounds() {
		t.Errorf("uniform image should be untouched, got bounds %v", trimmed.Bounds())
	}
}

func TestTrimBordersCropsBars(t *testing.T) {
	canvas := solidImage(100, 100, color.NRGBA{A: 255})
	for y := 30; y < 70; y++ {
		for x := 20; x < 80; x++ {
			canvas.SetNRGBA(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	trimmed := TrimBorders(canvas)
	b := trimmed.Bounds()
	if b.Dx() != 60 || b.Dy() != 40 {
		t.Errorf("expected 60x40 crop, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestHashImageDecodeError(t *testing.T) {
	_, err := HashImage([]byte("definitely not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDetectKind(t *testing.T) {
	pngData := encodePNG(t, solidImage(8, 8, color.NRGBA{R: 1, A: 255}))
	if kind := DetectKind(pngData); kind != models.KindImage {
		t.Errorf("expected image kind for PNG bytes, got %v", kind)
	}
	if kind := DetectKind([]byte("plain text payload")); kind != models.KindUnknown {
		t.Errorf("expected unknown kind for text bytes, got %v", kind)
	}
}
