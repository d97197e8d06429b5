package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

// sectionError replaces the text of a segment that failed to transcribe.
const sectionError = "[Error transcribing this section]"

// Audio is the capable path: yt-dlp download, ffmpeg segmenting, speech recognition.
type Audio struct {
	runner     Runner
	recognizer Recognizer
	ytdlp      string
	ffmpeg     string
	ffprobe    string
	workDir    string
	chunkBytes int64
	metrics    *engine.Metrics
	log        *slog.Logger
}

// NewAudio builds the audio path.
func NewAudio(cfg engine.Config, r Runner, rec Recognizer, log *slog.Logger, m *engine.Metrics) *Audio {
	mb := cfg.SpeechChunkMB
	if mb <= 0 {
		mb = 25
	}
	return &Audio{
		runner:     r,
		recognizer: rec,
		ytdlp:      cfg.YTDLPPath,
		ffmpeg:     cfg.FFmpegPath,
		ffprobe:    cfg.FFprobePath,
		workDir:    cfg.WorkDir,
		chunkBytes: int64(mb) << 20,
		metrics:    engine.OrNew(m),
		log:        engine.OrDefault(log).With("component", "audio"),
	}
}

func (a *Audio) Name() string { return "speech" }

// Close releases the recognizer when it holds clients.
func (a *Audio) Close() error {
	if c, ok := a.recognizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Transcribe downloads the audio and transcribes it segment by segment.
// A failed segment leaves a marker in the text; the call fails only when
// no segment succeeded.
func (a *Audio) Transcribe(ctx context.Context, videoID string) (string, error) {
	dir, err := os.MkdirTemp(a.workDir, "go_book-"+videoID+"-")
	if err != nil {
		return "", fmt.Errorf("work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src, err := a.download(ctx, videoID, dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", err
	}
	durationMs, err := probeDuration(ctx, a.runner, a.ffprobe, src)
	if err != nil {
		return "", err
	}

	segs := Plan(durationMs, info.Size(), a.chunkBytes)
	if len(segs) == 0 {
		return "", errors.New("audio has zero duration")
	}
	a.log.Info("transcribing audio",
		slog.String("video_id", videoID),
		slog.Int64("duration_ms", durationMs),
		slog.Int("segments", len(segs)))

	var (
		sb     strings.Builder
		failed int
	)
	for i, seg := range segs {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, err := a.segment(ctx, src, dir, fmt.Sprintf("%s-%03d.flac", videoID, i), seg)
		if err != nil {
			failed++
			a.log.Warn("segment transcription failed",
				slog.String("video_id", videoID),
				slog.Int("segment", i),
				slog.Any("error", err))
			sb.WriteString(" " + sectionError)
			continue
		}
		sb.WriteString(" " + text)
	}
	if failed == len(segs) {
		return "", fmt.Errorf("all %d audio segments failed", failed)
	}
	a.metrics.AudioTranscriptions.Add(1)
	return strings.TrimSpace(sb.String()), nil
}

func (a *Audio) segment(ctx context.Context, src, dir, name string, seg Segment) (string, error) {
	dst := filepath.Join(dir, name)
	if err := cutSegment(ctx, a.runner, a.ffmpeg, src, dst, seg); err != nil {
		return "", err
	}
	defer os.Remove(dst)
	data, err := os.ReadFile(dst)
	if err != nil {
		return "", err
	}
	return a.recognizer.Recognize(ctx, data, name)
}

// download fetches the best audio stream into dir and returns its path.
func (a *Audio) download(ctx context.Context, videoID, dir string) (string, error) {
	_, err := a.runner.Run(ctx, a.ytdlp,
		"--no-playlist", "--quiet", "--no-warnings",
		"-f", "bestaudio/best",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		book.CanonicalURL(videoID))
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "audio.*"))
	if len(matches) == 0 {
		return "", errors.New("download audio: yt-dlp produced no file")
	}
	return matches[0], nil
}
