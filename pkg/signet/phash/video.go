package phash

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// samplePoints are the relative positions on the frame timeline used
// for video fingerprints: start, middle, end.
var samplePoints = [Segments]float64{0.20, 0.50, 0.80}

// VideoHasher extracts and hashes sampled video frames by shelling out
// to ffmpeg/ffprobe. The zero value uses the binaries from PATH and a
// 30 second per-invocation timeout.
type VideoHasher struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

func (v *VideoHasher) ffmpeg() string {
	if v.FFmpegPath != "" {
		return v.FFmpegPath
	}
	return "ffmpeg"
}

func (v *VideoHasher) ffprobe() string {
	if v.FFprobePath != "" {
		return v.FFprobePath
	}
	return "ffprobe"
}

func (v *VideoHasher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := v.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Hash computes the canonical fingerprint of a video file: the image
// pipeline applied to frames sampled at 20%, 50% and 80%, hex hashes
// concatenated in sample order. A frame that fails to decode is retried
// at frame 0; if that also fails the whole operation fails. Partial
// fingerprints are never emitted.
func (v *VideoHasher) Hash(ctx context.Context, path string) (string, error) {
	frameCount, err := v.probeFrameCount(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if frameCount <= 0 {
		return "", fmt.Errorf("%w: %s", ErrFrameRead, path)
	}

	var sb strings.Builder
	for _, p := range samplePoints {
		idx := int(float64(frameCount) * p)
		data, err := v.extractFrame(ctx, path, idx)
		if err != nil {
			// Seek failures near the end of short or damaged files are
			// common; frame 0 is the fallback sample.
			data, err = v.extractFrame(ctx, path, 0)
			if err != nil {
				return "", fmt.Errorf("%w: frame %d: %v", ErrFrameRead, idx, err)
			}
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("%w: frame %d: %v", ErrDecode, idx, err)
		}
		seg, err := hashFrame(img)
		if err != nil {
			return "", err
		}
		sb.WriteString(seg)
	}
	return sb.String(), nil
}

// probeFrameCount asks ffprobe for the packet count of the first video
// stream. nb_read_packets is used instead of nb_frames because the
// latter is absent from many containers.
func (v *VideoHasher) probeFrameCount(ctx context.Context, path string) (int, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(
		ctx,
		v.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed: %v", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe output %q: %v", strings.TrimSpace(string(out)), err)
	}
	return count, nil
}

// extractFrame decodes exactly one frame by index to PNG bytes on
// stdout.
func (v *VideoHasher) extractFrame(ctx context.Context, path string, idx int) ([]byte, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(
		ctx,
		v.ffmpeg(),
		"-v", "error",
		"-i", path,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", idx),
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at index %d", idx)
	}
	return stdout.Bytes(), nil
}

// HashVideo is a convenience wrapper over a default VideoHasher.
func HashVideo(ctx context.Context, path string) (string, error) {
	var v VideoHasher
	return v.Hash(ctx, path)
}
