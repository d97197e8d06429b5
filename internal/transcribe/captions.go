package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
	"github.com/anatolykoptev/go_book/internal/sources"
)

// CaptionSource yields caption text for a video.
type CaptionSource interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// Captions is the simplified path: YouTube captions, then subtitles
// downloaded by yt-dlp when a binary is configured.
type Captions struct {
	source  CaptionSource
	runner  Runner
	ytdlp   string
	workDir string
	langs   []string
	log     *slog.Logger
}

// NewCaptions builds the caption path. source or ytdlp may be empty.
func NewCaptions(source CaptionSource, r Runner, ytdlp, workDir string, langs []string, log *slog.Logger) *Captions {
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &Captions{
		source:  source,
		runner:  r,
		ytdlp:   ytdlp,
		workDir: workDir,
		langs:   langs,
		log:     engine.OrDefault(log).With("component", "captions"),
	}
}

func (c *Captions) Name() string { return "captions" }

func (c *Captions) Transcribe(ctx context.Context, videoID string) (string, error) {
	var errs []error
	if c.source != nil {
		text, err := c.source.Transcript(ctx, videoID)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = errors.New("empty caption transcript")
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, err)
	}
	if c.ytdlp == "" || c.runner == nil {
		return "", errors.Join(append(errs, errors.New("no subtitle downloader configured"))...)
	}

	c.log.Info("captions unavailable, downloading subtitles", slog.String("video_id", videoID))
	text, err := c.subtitles(ctx, videoID)
	if err != nil {
		return "", errors.Join(append(errs, err)...)
	}
	return text, nil
}

// subtitles asks yt-dlp for manual or automatic subtitles as SRT.
func (c *Captions) subtitles(ctx context.Context, videoID string) (string, error) {
	dir, err := os.MkdirTemp(c.workDir, "go_book-subs-")
	if err != nil {
		return "", fmt.Errorf("work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	langs := make([]string, len(c.langs))
	for i, l := range c.langs {
		langs[i] = l + ".*"
	}
	_, err = c.runner.Run(ctx, c.ytdlp,
		"--skip-download", "--no-playlist", "--quiet", "--no-warnings",
		"--write-subs", "--write-auto-subs",
		"--sub-langs", strings.Join(langs, ","),
		"--convert-subs", "srt",
		"-o", filepath.Join(dir, "subs.%(ext)s"),
		book.CanonicalURL(videoID))
	if err != nil {
		return "", fmt.Errorf("download subtitles: %w", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.srt"))
	if len(files) == 0 {
		return "", fmt.Errorf("download subtitles: %w", sources.ErrNoCaptions)
	}
	sort.Strings(files)
	data, err := os.ReadFile(files[0])
	if err != nil {
		return "", err
	}
	text := sources.CleanSRT(string(data))
	if text == "" {
		return "", fmt.Errorf("download subtitles: %w", sources.ErrNoCaptions)
	}
	return text, nil
}
