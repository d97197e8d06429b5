package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

// errQuota marks a Data API key as exhausted or rejected; the next key is tried.
var errQuota = errors.New("youtube data api: key rejected")

type dataAPIVideos struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
			Caption  string `json:"caption"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Metadata returns the metadata of a video. The Data API is used when a key
// is configured; otherwise, or when every key is rejected, the watch page
// is scraped.
func (y *YouTube) Metadata(ctx context.Context, videoID string) (book.SourceVideo, error) {
	key := engine.CacheKey("metadata", videoID)
	if v, ok := engine.LoadJSON[book.SourceVideo](ctx, y.cache, key); ok && v.ID != "" {
		return v, nil
	}

	v, err := y.metadataFromDataAPI(ctx, videoID)
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) || ctx.Err() != nil {
			return book.SourceVideo{}, err
		}
		if len(y.apiKeys) > 0 {
			y.log.Warn("data api lookup failed, scraping watch page", slog.String("video_id", videoID), slog.Any("error", err))
		}
		v, err = y.metadataFromWatchPage(ctx, videoID)
		if err != nil {
			return book.SourceVideo{}, err
		}
	}
	engine.StoreJSON(ctx, y.cache, key, v)
	return v, nil
}

func (y *YouTube) metadataFromDataAPI(ctx context.Context, videoID string) (book.SourceVideo, error) {
	if len(y.apiKeys) == 0 {
		return book.SourceVideo{}, errors.New("no data api key")
	}
	var lastErr error
	for _, k := range y.apiKeys {
		v, err := y.dataAPIVideo(ctx, videoID, k)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !errors.Is(err, errQuota) {
			break
		}
	}
	return book.SourceVideo{}, lastErr
}

func (y *YouTube) dataAPIVideo(ctx context.Context, videoID, apiKey string) (book.SourceVideo, error) {
	params := url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {videoID},
		"key":  {apiKey},
	}
	target := y.endpoints.DataAPI + "/videos?" + params.Encode()

	resp, err := engine.RetryHTTP(ctx, y.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return y.http.Do(req)
	})
	if err != nil {
		return book.SourceVideo{}, fmt.Errorf("youtube data api: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusBadRequest:
		return book.SourceVideo{}, fmt.Errorf("%w: HTTP %d", errQuota, resp.StatusCode)
	default:
		return book.SourceVideo{}, fmt.Errorf("youtube data api: HTTP %d", resp.StatusCode)
	}

	var out dataAPIVideos
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return book.SourceVideo{}, fmt.Errorf("youtube data api: decode: %w", err)
	}
	if len(out.Items) == 0 {
		return book.SourceVideo{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}

	item := out.Items[0]
	v := book.SourceVideo{
		ID:              videoID,
		URL:             book.CanonicalURL(videoID),
		Title:           item.Snippet.Title,
		ChannelID:       item.Snippet.ChannelID,
		ChannelName:     item.Snippet.ChannelTitle,
		DurationSeconds: ParseISODuration(item.ContentDetails.Duration),
		UploadDate:      uploadDate(item.Snippet.PublishedAt),
		Description:     item.Snippet.Description,
		HasCaptions:     item.ContentDetails.Caption == "true",
	}
	for _, size := range []string{"default", "high"} {
		if th, ok := item.Snippet.Thumbnails[size]; ok && th.URL != "" {
			if v.Thumbnails == nil {
				v.Thumbnails = map[string]string{}
			}
			v.Thumbnails[size] = th.URL
		}
	}
	return v, nil
}

func (y *YouTube) metadataFromWatchPage(ctx context.Context, videoID string) (book.SourceVideo, error) {
	page, err := y.getPage(ctx, y.endpoints.Watch+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) {
			return book.SourceVideo{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
		}
		return book.SourceVideo{}, fmt.Errorf("watch page: %w", err)
	}
	return parseWatchPage(videoID, page)
}

// parseWatchPage reads metadata from the page's meta tags, filling gaps
// from the embedded player response.
func parseWatchPage(videoID string, page []byte) (book.SourceVideo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return book.SourceVideo{}, fmt.Errorf("parse watch page: %w", err)
	}

	attr := func(selector, name string) string {
		s, _ := doc.Find(selector).First().Attr(name)
		return strings.TrimSpace(s)
	}

	v := book.SourceVideo{
		ID:              videoID,
		URL:             book.CanonicalURL(videoID),
		Title:           firstNonEmpty(attr(`meta[name="title"]`, "content"), attr(`meta[property="og:title"]`, "content")),
		ChannelID:       attr(`meta[itemprop="channelId"]`, "content"),
		ChannelName:     attr(`span[itemprop="author"] link[itemprop="name"]`, "content"),
		DurationSeconds: ParseISODuration(attr(`meta[itemprop="duration"]`, "content")),
		UploadDate:      uploadDate(firstNonEmpty(attr(`meta[itemprop="uploadDate"]`, "content"), attr(`meta[itemprop="datePublished"]`, "content"))),
		Description:     descriptionMarkdown(doc),
	}
	if v.Description == "" {
		v.Description = firstNonEmpty(attr(`meta[property="og:description"]`, "content"), attr(`meta[name="description"]`, "content"))
	}
	if thumb := firstNonEmpty(attr(`link[itemprop="thumbnailUrl"]`, "href"), attr(`meta[property="og:image"]`, "content")); thumb != "" {
		v.Thumbnails = map[string]string{"high": thumb}
	}

	var player playerResponse
	if data, err := extractPlayerResponse(page); err == nil {
		_ = json.Unmarshal(data, &player)
	}
	if d := player.VideoDetails; d != nil {
		v.Title = firstNonEmpty(v.Title, d.Title)
		v.ChannelID = firstNonEmpty(v.ChannelID, d.ChannelID)
		v.ChannelName = firstNonEmpty(v.ChannelName, d.Author)
		v.Description = firstNonEmpty(v.Description, d.ShortDescription)
		if v.DurationSeconds == 0 {
			v.DurationSeconds, _ = strconv.Atoi(d.LengthSeconds)
		}
	}
	if m := player.Microformat; m != nil && v.UploadDate == "" {
		v.UploadDate = uploadDate(firstNonEmpty(m.Renderer.UploadDate, m.Renderer.PublishDate))
	}
	v.HasCaptions = len(player.tracks()) > 0

	if v.Title == "" {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Status == "ERROR" {
			return book.SourceVideo{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
		}
		return book.SourceVideo{}, fmt.Errorf("%w: %s: no title on watch page", ErrVideoNotFound, videoID)
	}
	return v, nil
}

// descriptionMarkdown converts a server-rendered description block to markdown.
func descriptionMarkdown(doc *goquery.Document) string {
	sel := doc.Find("#description, #watch-description-text").First()
	if sel.Length() == 0 {
		return ""
	}
	raw, err := sel.Html()
	if err != nil || strings.TrimSpace(raw) == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(raw)
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	return strings.TrimSpace(md)
}

var isoDurationRE = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO-8601 duration such as PT1H2M3S to
// seconds. Unparseable input yields 0.
func ParseISODuration(s string) int {
	m := isoDurationRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * unit
	}
	return total
}

// uploadDate normalizes a timestamp or date to YYYY-MM-DD.
func uploadDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.DateOnly)
	}
	if len(s) >= 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
