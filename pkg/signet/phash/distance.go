package phash

import (
	"encoding/hex"
	"math/bits"
	"strings"
)

// Normalize brings a fingerprint to canonical shape: lowercased, short
// input replicated three times, then truncated or zero-padded to 192
// hex characters. Normalization is deterministic and never fails, so
// decoding downstream never fails on length.
func Normalize(fp string) string {
	fp = strings.ToLower(strings.TrimSpace(fp))
	if len(fp) < CanonicalHexLen {
		fp = strings.Repeat(fp, Segments)
	}
	if len(fp) > CanonicalHexLen {
		fp = fp[:CanonicalHexLen]
	}
	if len(fp) < CanonicalHexLen {
		fp += strings.Repeat("0", CanonicalHexLen-len(fp))
	}
	return fp
}

// ValidSegments returns how many of the three segments hex-decode
// after normalization.
func ValidSegments(fp string) int {
	n := Normalize(fp)
	valid := 0
	for i := 0; i < Segments; i++ {
		if _, err := decodeSegment(n[i*SegmentHexLen : (i+1)*SegmentHexLen]); err == nil {
			valid++
		}
	}
	return valid
}

// Valid reports whether fp normalizes to well-formed hex in every
// segment.
func Valid(fp string) bool {
	return ValidSegments(fp) == Segments
}

// Distance returns the summed per-segment Hamming distance between two
// fingerprints, plus the number of segment pairs that were skipped
// because one side failed to hex-decode. Skipped segments contribute
// zero distance: a corrupted stored record must not make comparisons
// against it crash, at the cost of understating its distance. Callers
// that care should log when skipped > 0.
//
// Distance is symmetric and Distance(f, f) == (0, 0) for well-formed f.
func Distance(a, b string) (dist int, skipped int) {
	na, nb := Normalize(a), Normalize(b)
	for i := 0; i < Segments; i++ {
		start, end := i*SegmentHexLen, (i+1)*SegmentHexLen
		wa, errA := decodeSegment(na[start:end])
		wb, errB := decodeSegment(nb[start:end])
		if errA != nil || errB != nil {
			skipped++
			continue
		}
		for j := 0; j < wordsPerSegment; j++ {
			dist += bits.OnesCount64(wa[j] ^ wb[j])
		}
	}
	return dist, skipped
}

// ToVector encodes a fingerprint as a 768-dimensional 0.0/1.0 float
// vector for the similarity index. Malformed segments encode as zero
// bits, mirroring the leniency of Distance.
func ToVector(fp string) []float32 {
	n := Normalize(fp)
	vec := make([]float32, 0, VectorDim)
	for i := 0; i < Segments; i++ {
		words, err := decodeSegment(n[i*SegmentHexLen : (i+1)*SegmentHexLen])
		if err != nil {
			vec = append(vec, make([]float32, HashSide*HashSide)...)
			continue
		}
		for j := 0; j < wordsPerSegment; j++ {
			for bit := 0; bit < 64; bit++ {
				vec = append(vec, float32((words[j]>>(63-uint(bit)))&1))
			}
		}
	}
	return vec
}

// decodeSegment parses one 64-hex-char segment into four big-endian
// uint64 words, matching the encoding in hashFrame.
func decodeSegment(seg string) ([wordsPerSegment]uint64, error) {
	var words [wordsPerSegment]uint64
	raw, err := hex.DecodeString(seg)
	if err != nil {
		return words, err
	}
	for j := 0; j < wordsPerSegment; j++ {
		for k := 0; k < 8; k++ {
			words[j] = words[j]<<8 | uint64(raw[j*8+k])
		}
	}
	return words, nil
}
