// Package transcribe turns a YouTube video into transcript text.
//
// Two paths exist. The audio path downloads the soundtrack with yt-dlp,
// cuts it with ffmpeg and sends each piece to Google Speech-to-Text. The
// caption path reads YouTube captions. A Resolver tries the audio path
// when it is configured and falls back to captions at most once per run.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/anatolykoptev/go_book/internal/engine"
)

// ErrNoTranscript is returned when no path produced a transcript.
var ErrNoTranscript = errors.New("transcribe: no transcript available")

// Transcriber produces the transcript of one video.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, videoID string) (string, error)
}

// Resolver picks the audio path when available and degrades to captions.
type Resolver struct {
	capable    Transcriber
	simplified Transcriber
	metrics    *engine.Metrics
	log        *slog.Logger
}

// NewResolver wires the two paths. capable may be nil.
func NewResolver(capable, simplified Transcriber, log *slog.Logger, m *engine.Metrics) *Resolver {
	return &Resolver{
		capable:    capable,
		simplified: simplified,
		metrics:    engine.OrNew(m),
		log:        engine.OrDefault(log).With("component", "transcribe"),
	}
}

// Name reports the primary path.
func (r *Resolver) Name() string {
	if r.capable != nil {
		return r.capable.Name()
	}
	return r.simplified.Name()
}

// Transcribe runs the capable path, then the simplified path on failure.
// The fallback is logged and counted but not surfaced.
func (r *Resolver) Transcribe(ctx context.Context, videoID string) (string, error) {
	var capErr error
	if r.capable != nil {
		text, err := r.capable.Transcribe(ctx, videoID)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		capErr = fmt.Errorf("%s: %w", r.capable.Name(), err)
		r.metrics.TranscriptionFallbacks.Add(1)
		r.log.Warn("capable transcription failed, falling back",
			slog.String("video_id", videoID),
			slog.String("fallback", r.simplified.Name()),
			slog.Any("error", err))
	}

	text, err := r.simplified.Transcribe(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTranscript, errors.Join(capErr, fmt.Errorf("%s: %w", r.simplified.Name(), err)))
	}
	return text, nil
}

// Close releases the capable path's clients.
func (r *Resolver) Close() error {
	if c, ok := r.capable.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New builds the resolver from config: the audio path is enabled when
// Config.CapableSpeech reports true and the speech client can be created.
func New(ctx context.Context, cfg engine.Config, captions CaptionSource, log *slog.Logger, m *engine.Metrics) *Resolver {
	log = engine.OrDefault(log)
	runner := ExecRunner{}
	simplified := NewCaptions(captions, runner, cfg.YTDLPPath, cfg.WorkDir, cfg.CaptionLangs, log)

	var capable Transcriber
	if cfg.CapableSpeech() {
		rec, err := NewGoogleSpeech(ctx, cfg, log)
		if err != nil {
			log.Warn("speech client unavailable, using captions only", slog.Any("error", err))
		} else {
			capable = NewAudio(cfg, runner, rec, log, m)
		}
	}
	return NewResolver(capable, simplified, log, m)
}
