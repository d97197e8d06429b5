package book

import (
	"time"

	"github.com/anatolykoptev/go-kit/strutil"
)

// Status is the processing state of a book document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// SourceVideo identifies the YouTube video a book was built from.
// ID is unique across all stored documents.
type SourceVideo struct {
	ID              string            `json:"id" bson:"id"`
	URL             string            `json:"url" bson:"url"`
	Title           string            `json:"title" bson:"title"`
	ChannelID       string            `json:"channel_id,omitempty" bson:"channel_id,omitempty"`
	ChannelName     string            `json:"channel_name,omitempty" bson:"channel_name,omitempty"`
	DurationSeconds int               `json:"duration_seconds" bson:"duration_seconds"`
	UploadDate      string            `json:"upload_date,omitempty" bson:"upload_date,omitempty"`
	Description     string            `json:"description,omitempty" bson:"description,omitempty"`
	Thumbnails      map[string]string `json:"thumbnails,omitempty" bson:"thumbnails,omitempty"`
	HasCaptions     bool              `json:"has_captions" bson:"has_captions"`
}

// Chapter is one merged chapter of a book.
type Chapter struct {
	Title     string   `json:"title" bson:"title"`
	Content   string   `json:"content" bson:"content"`
	KeyPoints []string `json:"key_points" bson:"key_points"`
	Examples  []string `json:"examples" bson:"examples"`
	Quotes    []string `json:"quotes" bson:"quotes"`
}

// Fragment is the partial chapter produced for a single transcript chunk.
type Fragment struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	KeyPoints []string `json:"key_points"`
	Examples  []string `json:"examples"`
	Quotes    []string `json:"quotes"`
}

// ReadingItem is a further-reading recommendation.
type ReadingItem struct {
	Title       string `json:"title" bson:"title"`
	Author      string `json:"author" bson:"author"`
	Description string `json:"description" bson:"description"`
}

// Outline is the result of the outline stage. Chapter titles are the
// merge keys for every later chapter fragment.
type Outline struct {
	Summary         string   `json:"summary"`
	ChapterOutline  []string `json:"chapter_outline"`
	KeyThemes       []string `json:"key_themes"`
	TargetAudience  string   `json:"target_audience"`
	DifficultyLevel string   `json:"difficulty_level"`
}

// Classification is the result of the classification stage.
type Classification struct {
	PrimaryCategory      string   `json:"primary_category"`
	Categories           []string `json:"categories"`
	Tags                 []string `json:"tags"`
	EstimatedReadingTime int      `json:"estimated_reading_time"`
}

// Document is the persisted book.
type Document struct {
	ID                   string            `json:"id" bson:"_id,omitempty"`
	Title                string            `json:"title" bson:"title"`
	Slug                 string            `json:"slug" bson:"slug"`
	Author               string            `json:"author" bson:"author"`
	Summary              string            `json:"summary" bson:"summary"`
	Chapters             []Chapter         `json:"chapters" bson:"chapters"`
	Glossary             map[string]string `json:"glossary" bson:"glossary"`
	FurtherReading       []ReadingItem     `json:"further_reading" bson:"further_reading"`
	KeyTakeaways         []string          `json:"key_takeaways" bson:"key_takeaways"`
	KeyThemes            []string          `json:"key_themes" bson:"key_themes"`
	TargetAudience       string            `json:"target_audience" bson:"target_audience"`
	DifficultyLevel      string            `json:"difficulty_level" bson:"difficulty_level"`
	PrimaryCategory      string            `json:"primary_category" bson:"primary_category"`
	Categories           []string          `json:"categories" bson:"categories"`
	Tags                 []string          `json:"tags" bson:"tags"`
	EstimatedReadingTime int               `json:"estimated_reading_time" bson:"estimated_reading_time"`
	Language             string            `json:"language,omitempty" bson:"language,omitempty"`
	Backend              string            `json:"backend" bson:"backend"`
	SourceVideo          SourceVideo       `json:"source_video" bson:"source_video"`
	Status               Status            `json:"processing_status" bson:"processing_status"`
	CreatedAt            time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" bson:"updated_at"`
}

// Summary is the search-result projection of a Document.
type Summary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Author          string    `json:"author"`
	Summary         string    `json:"summary"`
	DifficultyLevel string    `json:"difficulty_level"`
	PrimaryCategory string    `json:"primary_category,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	SourceVideoID   string    `json:"source_video_id"`
	SourceURL       string    `json:"source_url"`
	Chapters        int       `json:"chapters"`
	CreatedAt       time.Time `json:"created_at"`
	Score           float64   `json:"score,omitempty"`
}

// Summarize projects d for listings. The summary text is capped at 300 runes.
func (d *Document) Summarize() Summary {
	return Summary{
		ID:              d.ID,
		Title:           d.Title,
		Slug:            d.Slug,
		Author:          d.Author,
		Summary:         strutil.TruncateWith(d.Summary, 300, "..."),
		DifficultyLevel: d.DifficultyLevel,
		PrimaryCategory: d.PrimaryCategory,
		Tags:            d.Tags,
		SourceVideoID:   d.SourceVideo.ID,
		SourceURL:       d.SourceVideo.URL,
		Chapters:        len(d.Chapters),
		CreatedAt:       d.CreatedAt,
	}
}

// ErrorRecord is the append-only trace of a failed processing run.
type ErrorRecord struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	VideoURL  string    `json:"video_url" bson:"video_url"`
	VideoID   string    `json:"video_id,omitempty" bson:"video_id,omitempty"`
	Stage     string    `json:"stage,omitempty" bson:"stage,omitempty"`
	Error     string    `json:"error" bson:"error"`
	Status    Status    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Patch holds the user-editable fields of a Document. Nil fields are left unchanged.
type Patch struct {
	Title           *string   `json:"title,omitempty"`
	Summary         *string   `json:"summary,omitempty"`
	DifficultyLevel *string   `json:"difficulty_level,omitempty"`
	Tags            *[]string `json:"tags,omitempty"`
	Categories      *[]string `json:"categories,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Summary == nil && p.DifficultyLevel == nil && p.Tags == nil && p.Categories == nil
}

// Apply writes p onto d and refreshes UpdatedAt. The slug follows the title;
// SourceVideo is never touched.
func (d *Document) Apply(p Patch, now time.Time) {
	if p.Title != nil {
		d.Title = *p.Title
		d.Slug = Slugify(*p.Title)
	}
	if p.Summary != nil {
		d.Summary = *p.Summary
	}
	if p.DifficultyLevel != nil {
		d.DifficultyLevel = NormalizeDifficulty(*p.DifficultyLevel)
	}
	if p.Tags != nil {
		d.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Categories != nil {
		d.Categories = append([]string(nil), (*p.Categories)...)
	}
	d.UpdatedAt = now
}

// Query is a paginated document search.
type Query struct {
	Text       string `json:"query,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Skip       int    `json:"skip,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Normalize clamps paging and canonicalizes the difficulty filter.
func (q Query) Normalize() Query {
	if q.Skip < 0 {
		q.Skip = 0
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Difficulty != "" {
		q.Difficulty = NormalizeDifficulty(q.Difficulty)
	}
	return q
}
