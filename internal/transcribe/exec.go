package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_book/internal/engine"
)

// Runner executes external tools (yt-dlp, ffmpeg, ffprobe).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec and returns stdout.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := engine.TruncateRunes(strings.TrimSpace(stderr.String()), 300, "...")
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return out, nil
}

// probeDuration returns the media duration in milliseconds.
func probeDuration(ctx context.Context, r Runner, ffprobe, path string) (int64, error) {
	out, err := r.Run(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return int64(secs * 1000), nil
}

// cutSegment re-encodes [seg.StartMs, seg.EndMs) of src as 16 kHz mono FLAC.
func cutSegment(ctx context.Context, r Runner, ffmpeg, src, dst string, seg Segment) error {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if seg.StartMs > 0 {
		args = append(args, "-ss", msToSeconds(seg.StartMs))
	}
	args = append(args,
		"-i", src,
		"-t", msToSeconds(seg.EndMs-seg.StartMs),
		"-vn", "-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-c:a", "flac",
		dst)
	_, err := r.Run(ctx, ffmpeg, args...)
	return err
}

func msToSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}
