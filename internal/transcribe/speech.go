package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anatolykoptev/go_book/internal/engine"
)

const (
	sampleRate = 16000
	// inlineLimit is the largest payload Speech accepts as inline content.
	inlineLimit = 10 << 20
)

// Recognizer transcribes one FLAC payload.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, name string) (string, error)
}

// GoogleSpeech calls Speech-to-Text LongRunningRecognize. Payloads above the
// inline limit are staged in a GCS bucket when one is configured.
type GoogleSpeech struct {
	client   *speech.Client
	storage  *storage.Client
	bucket   string
	language string
	log      *slog.Logger
}

// NewGoogleSpeech creates the speech client and, with GCS_BUCKET set, the storage client.
func NewGoogleSpeech(ctx context.Context, cfg engine.Config, log *slog.Logger) (*GoogleSpeech, error) {
	opts := credentialOptions(cfg.GoogleCredentials)
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	g := &GoogleSpeech{
		client:   client,
		bucket:   cfg.GCSBucket,
		language: cfg.SpeechLanguage,
		log:      engine.OrDefault(log).With("component", "speech"),
	}
	if g.language == "" {
		g.language = "en-US"
	}
	if g.bucket != "" {
		st, err := storage.NewClient(ctx, append(opts, option.WithScopes(storage.ScopeReadWrite))...)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("storage client: %w", err)
		}
		g.storage = st
	}
	return g, nil
}

// credentialOptions accepts a credentials file path or inline JSON.
func credentialOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

// Close releases both clients.
func (g *GoogleSpeech) Close() error {
	var errs []error
	if g.storage != nil {
		errs = append(errs, g.storage.Close())
	}
	errs = append(errs, g.client.Close())
	return errors.Join(errs...)
}

func (g *GoogleSpeech) Recognize(ctx context.Context, audio []byte, name string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_FLAC,
			SampleRateHertz:            sampleRate,
			AudioChannelCount:          1,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
	}

	if len(audio) <= inlineLimit {
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}}
	} else {
		if g.storage == nil {
			return "", fmt.Errorf("audio chunk %s is %d bytes, above the inline limit, and no GCS bucket is configured", name, len(audio))
		}
		uri, cleanup, err := g.stage(ctx, audio, name)
		if err != nil {
			return "", err
		}
		defer cleanup()
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri}}
	}

	resp, err := engine.Backoff(ctx, 5, 10*time.Minute, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := g.client.LongRunningRecognize(ctx, req)
		if err == nil {
			var resp *speechpb.LongRunningRecognizeResponse
			resp, err = op.Wait(ctx)
			if err == nil {
				return resp, nil
			}
		}
		if !retryableSpeech(err) {
			return nil, engine.Permanent(err)
		}
		g.log.Debug("speech call retry", slog.String("chunk", name), slog.Any("error", err))
		return nil, err
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize %s: %w", name, err)
	}
	return joinResults(resp), nil
}

func retryableSpeech(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	}
	return false
}

// stage uploads audio to the bucket and returns its gs:// URI.
func (g *GoogleSpeech) stage(ctx context.Context, audio []byte, name string) (string, func(), error) {
	object := "go_book/" + name
	obj := g.storage.Bucket(g.bucket).Object(object)
	w := obj.NewWriter(ctx)
	w.ContentType = "audio/flac"
	if _, err := w.Write(audio); err != nil {
		_ = w.Close()
		return "", nil, fmt.Errorf("gcs upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("gcs upload %s: %w", object, err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := obj.Delete(ctx); err != nil {
			g.log.Warn("gcs cleanup failed", slog.String("object", object), slog.Any("error", err))
		}
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, object), cleanup, nil
}

func joinResults(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if text := strings.TrimSpace(r.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
