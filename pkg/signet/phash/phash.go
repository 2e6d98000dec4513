// Package phash derives canonical perceptual fingerprints from images
// and videos and computes exact Hamming distances between them.
//
// A fingerprint is 192 hex characters: three 64-hex-char segments, each
// a 256-bit DCT perceptual hash. Video fingerprints hash frames sampled
// at 20%, 50% and 80% of the timeline; image fingerprints replicate the
// single frame hash three times so both kinds share one comparable
// shape.
package phash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"

	"github.com/signetlabs/signet/pkg/models"
)

const (
	// HashSide is the per-axis resolution of the DCT hash grid.
	// HashSide² = 256 bits per segment.
	HashSide = 16

	// SegmentHexLen is the hex length of one 256-bit segment.
	SegmentHexLen = 64

	// Segments per fingerprint (start, middle, end frame).
	Segments = 3

	// CanonicalHexLen is the full fingerprint length in hex characters.
	CanonicalHexLen = SegmentHexLen * Segments

	// VectorDim is the dimensionality of the float encoding used by the
	// similarity index: 3 × 256 bits.
	VectorDim = Segments * HashSide * HashSide

	// CanonicalSize is the resolution every frame is resampled to
	// before hashing. Resampling must be identical on the registration
	// and verification paths or distances drift.
	CanonicalSize = 128

	// borderLuminance is the mean-channel threshold below which a row
	// or column counts as uniform border and is trimmed.
	borderLuminance = 30
)

// wordsPerSegment is the number of uint64 words in one 256-bit segment.
const wordsPerSegment = SegmentHexLen / 16

var (
	ErrDecode           = errors.New("media decode failed")
	ErrFrameRead        = errors.New("no readable video frames")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// DetectKind sniffs the media class from the leading bytes.
func DetectKind(data []byte) models.Kind {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.KindImage
	case strings.HasPrefix(ct, "video/"):
		return models.KindVideo
	default:
		return models.KindUnknown
	}
}

// HashImage computes the canonical fingerprint of a still image. The
// single frame hash is replicated across all three segments.
func HashImage(data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	seg, err := hashFrame(img)
	if err != nil {
		return "", err
	}
	return strings.Repeat(seg, Segments), nil
}

// hashFrame runs the per-frame pipeline: normalize to 3-channel RGB,
// trim uniform borders, resample to the canonical resolution, hash.
// EXIF orientation has already been applied by the decoder; it must
// come before everything else or rotated copies hash differently.
func hashFrame(img image.Image) (string, error) {
	frame := imaging.Clone(img)
	frame = TrimBorders(frame)
	frame = imaging.Resize(frame, CanonicalSize, CanonicalSize, imaging.Lanczos)

	h, err := goimagehash.ExtPerceptionHash(frame, HashSide, HashSide)
	if err != nil {
		return "", fmt.Errorf("%w: perceptual hash: %v", ErrDecode, err)
	}

	var sb strings.Builder
	for _, word := range h.GetHash() {
		fmt.Fprintf(&sb, "%016x", word)
	}
	return sb.String(), nil
}

// TrimBorders removes leading and trailing rows and columns whose
// luminance stays at or below the border threshold (letterboxing,
// pillarboxing, black bars around screenshots). A fully uniform image
// has no bounding box and is returned untouched.
func TrimBorders(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	rowLit := make([]bool, h)
	colLit := make([]bool, w)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			i := off + x*4
			lum := (int(img.Pix[i]) + int(img.Pix[i+1]) + int(img.Pix[i+2])) / 3
			if lum > borderLuminance {
				rowLit[y] = true
				colLit[x] = true
			}
		}
	}

	top, bottom := -1, -1
	for y := 0; y < h; y++ {
		if rowLit[y] {
			if top < 0 {
				top = y
			}
			bottom = y
		}
	}
	left, right := -1, -1
	for x := 0; x < w; x++ {
		if colLit[x] {
			if left < 0 {
				left = x
			}
			right = x
		}
	}

	if top < 0 || left < 0 {
		return img
	}
	if top == 0 && left == 0 && bottom == h-1 && right == w-1 {
		return img
	}
	return imaging.Crop(img, image.Rect(left, top, right+1, bottom+1))
}
