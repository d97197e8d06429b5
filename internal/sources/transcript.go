package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_book/internal/engine"
)

// Caption paths, tried in order:
//  1. watch page ytInitialPlayerResponse → timedtext XML (any IP)
//  2. WEB /next → engagement panel token → /get_transcript (datacenter IPs)
//  3. ANDROID /player → captionTracks → timedtext XML

// Transcript returns the caption transcript of a video as plain text.
// Results are cached per video id.
func (y *YouTube) Transcript(ctx context.Context, videoID string) (string, error) {
	key := engine.CacheKey("transcript", videoID)
	if text, ok := engine.LoadJSON[string](ctx, y.cache, key); ok && text != "" {
		return text, nil
	}

	paths := []struct {
		name string
		fn   func(context.Context, string) (string, error)
	}{
		{"watch page", y.transcriptViaWatchPage},
		{"engagement panel", y.transcriptViaEngagementPanel},
		{"android player", y.transcriptViaPlayer},
	}

	var errs []error
	for _, p := range paths {
		text, err := p.fn(ctx, videoID)
		if err == nil && strings.TrimSpace(text) != "" {
			y.metrics.CaptionsFetched.Add(1)
			engine.StoreJSON(ctx, y.cache, key, text)
			return text, nil
		}
		if err == nil {
			err = errors.New("empty transcript")
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		y.log.Warn("caption path failed", slog.String("video_id", videoID), slog.String("path", p.name), slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return "", fmt.Errorf("%w: %w", ErrNoCaptions, errors.Join(errs...))
}

func (y *YouTube) transcriptViaWatchPage(ctx context.Context, videoID string) (string, error) {
	page, err := y.getPage(ctx, y.endpoints.Watch+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}
	data, err := extractPlayerResponse(page)
	if err != nil {
		return "", err
	}
	var player playerResponse
	if err := json.Unmarshal(data, &player); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return y.transcriptFromTracks(ctx, player)
}

func (y *YouTube) transcriptViaPlayer(ctx context.Context, videoID string) (string, error) {
	player, err := y.postAndroidPlayer(ctx, videoID)
	if err != nil {
		return "", err
	}
	return y.transcriptFromTracks(ctx, player)
}

func (y *YouTube) transcriptFromTracks(ctx context.Context, player playerResponse) (string, error) {
	tracks := player.tracks()
	if len(tracks) == 0 {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return "", fmt.Errorf("captions unavailable: %s", player.PlayabilityStatus.Reason)
		}
		return "", errors.New("no caption tracks")
	}
	track, ok := pickTrack(tracks, y.langs)
	if !ok {
		return "", errors.New("all caption tracks require PoToken")
	}
	return y.fetchTimedText(ctx, track.BaseURL)
}

// transcriptTokenRE extracts the continuation token from a raw /next response.
var transcriptTokenRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func transcriptToken(data []byte) (string, error) {
	m := transcriptTokenRE.FindSubmatch(data)
	if len(m) < 2 {
		return "", errors.New("getTranscriptEndpoint not found in engagement panels")
	}
	// /next returns the params URL-encoded; /get_transcript wants raw base64.
	decoded, err := url.QueryUnescape(string(m[1]))
	if err != nil {
		return string(m[1]), nil
	}
	return decoded, nil
}

func (y *YouTube) transcriptViaEngagementPanel(ctx context.Context, videoID string) (string, error) {
	visitor := visitorID()

	next, err := y.postWEB(ctx, "next", map[string]any{
		"videoId": videoID,
		"context": map[string]any{
			"client":  webClient(visitor),
			"user":    map[string]bool{"enableSafetyMode": false},
			"request": map[string]bool{"useSsl": true},
		},
	}, visitor)
	if err != nil {
		return "", err
	}
	token, err := transcriptToken(next)
	if err != nil {
		return "", err
	}

	data, err := y.postWEB(ctx, "get_transcript", map[string]any{
		"params":  token,
		"context": map[string]any{"client": webClient(visitor)},
	}, visitor)
	if err != nil {
		return "", err
	}
	var resp transcriptSegmentsResp
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return joinSegments(resp), nil
}

func joinSegments(resp transcriptSegmentsResp) string {
	var parts []string
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			if seg.TranscriptSegmentRenderer == nil {
				continue
			}
			for _, run := range seg.TranscriptSegmentRenderer.Snippet.Runs {
				if text := engine.CleanCaption(run.Text); text != "" {
					parts = append(parts, text)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// needsPoToken reports whether a track URL only works in a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track, then the first usable track.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

func (y *YouTube) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	resp, err := engine.RetryHTTP(ctx, y.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return y.http.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch timedtext: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", err
	}
	return parseTimedText(body)
}

// parseTimedText flattens timedtext XML into one line of text.
func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}
	parts := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		if text := engine.CleanCaption(line.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
