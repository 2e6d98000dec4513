package phash

import (
	"strings"
	"testing"
)

const zeroSegment = "0000000000000000000000000000000000000000000000000000000000000000"

func zeroFingerprint() string {
	return strings.Repeat(zeroSegment, Segments)
}

func TestDistanceIdentity(t *testing.T) {
	fp := strings.Repeat("a5", 32) + strings.Repeat("3c", 32) + strings.Repeat("f0", 32)
	dist, skipped := Distance(fp, fp)
	if dist != 0 || skipped != 0 {
		t.Errorf("Distance(f, f) = (%d, %d), want (0, 0)", dist, skipped)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := strings.Repeat("ff", 96)
	b := strings.Repeat("0f", 96)
	ab, _ := Distance(a, b)
	ba, _ := Distance(b, a)
	if ab != ba {
		t.Errorf("Distance not symmetric: %d vs %d", ab, ba)
	}
}

func TestDistanceKnownBitCounts(t *testing.T) {
	zero := zeroFingerprint()

	// one bit set in the first segment
	one := "8" + strings.Repeat("0", CanonicalHexLen-1)
	if dist, _ := Distance(zero, one); dist != 1 {
		t.Errorf("expected distance 1, got %d", dist)
	}

	// all 768 bits set
	full := strings.Repeat("f", CanonicalHexLen)
	if dist, _ := Distance(zero, full); dist != VectorDim {
		t.Errorf("expected distance %d, got %d", VectorDim, dist)
	}
}

// A bare 64-char single-frame hash must normalize by replication so it
// compares at distance zero against its own three-segment form.
func TestNormalizeReplicatesShortInput(t *testing.T) {
	seg := strings.Repeat("b7", 32)
	full := strings.Repeat(seg, Segments)

	if got := Normalize(seg); got != full {
		t.Errorf("Normalize(%q) = %q, want replicated form", seg[:8], got[:8])
	}
	if dist, skipped := Distance(seg, full); dist != 0 || skipped != 0 {
		t.Errorf("short form vs replicated form = (%d, %d), want (0, 0)", dist, skipped)
	}
}

func TestNormalizePadsOddLengths(t *testing.T) {
	n := Normalize("abc")
	if len(n) != CanonicalHexLen {
		t.Fatalf("expected %d chars, got %d", CanonicalHexLen, len(n))
	}
	if !Valid(n) {
		t.Errorf("padded fingerprint is not valid hex")
	}
}

// Malformed segments are skipped rather than raising, so one corrupted
// legacy record cannot crash comparisons against it. The trade-off: the
// reported distance understates the true difference, which is why the
// skip count is surfaced to callers.
func TestDistanceMalformedSegmentSkipped(t *testing.T) {
	good := zeroFingerprint()
	corrupt := strings.Repeat("z", SegmentHexLen) + // undecodable
		strings.Repeat("f", SegmentHexLen) + // 256 differing bits
		zeroSegment

	dist, skipped := Distance(good, corrupt)
	if skipped != 1 {
		t.Errorf("expected 1 skipped segment, got %d", skipped)
	}
	if dist != 256 {
		t.Errorf("expected distance 256 from the decodable segments, got %d", dist)
	}
}

func TestValidSegments(t *testing.T) {
	if got := ValidSegments(zeroFingerprint()); got != Segments {
		t.Errorf("expected %d valid segments, got %d", Segments, got)
	}
	allBad := strings.Repeat("z", CanonicalHexLen)
	if got := ValidSegments(allBad); got != 0 {
		t.Errorf("expected 0 valid segments, got %d", got)
	}
}

func TestToVector(t *testing.T) {
	fp := "8" + strings.Repeat("0", CanonicalHexLen-1)
	vec := ToVector(fp)
	if len(vec) != VectorDim {
		t.Fatalf("expected %d dims, got %d", VectorDim, len(vec))
	}

	ones := 0
	for i, v := range vec {
		if v != 0 && v != 1 {
			t.Fatalf("component %d is %f, want 0 or 1", i, v)
		}
		if v == 1 {
			ones++
		}
	}
	if ones != 1 {
		t.Errorf("expected exactly 1 set bit, got %d", ones)
	}
	if vec[0] != 1 {
		t.Errorf("leading hex '8' should set the first component")
	}
}
