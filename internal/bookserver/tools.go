package bookserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/toolutil"
)

type ProcessInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL or bare video id (e.g. https://www.youtube.com/watch?v=dQw4w9WgXcQ)"`
}

type GetInput struct {
	ID       string `json:"id" jsonschema:"Book id returned by book_process or book_search"`
	Markdown bool   `json:"markdown,omitempty" jsonschema:"Also render the book as markdown"`
}

type GetOutput struct {
	Book     *book.Document `json:"book"`
	Markdown string         `json:"markdown,omitempty"`
}

type SearchInput struct {
	Query      string `json:"query,omitempty" jsonschema:"Free-text query; empty lists newest books"`
	Difficulty string `json:"difficulty,omitempty" jsonschema:"Difficulty filter: Beginner, Intermediate, Advanced, Expert"`
	Skip       int    `json:"skip,omitempty" jsonschema:"Results to skip (default 0)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Max results (default 10, max 100)"`
}

type SearchOutput struct {
	Books []book.Summary `json:"books"`
	Count int            `json:"count"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
}

type UpdateInput struct {
	ID              string    `json:"id" jsonschema:"Book id"`
	Title           *string   `json:"title,omitempty" jsonschema:"New title; the slug is recomputed"`
	Summary         *string   `json:"summary,omitempty" jsonschema:"New summary"`
	DifficultyLevel *string   `json:"difficulty_level,omitempty" jsonschema:"Beginner, Intermediate, Advanced or Expert"`
	Tags            *[]string `json:"tags,omitempty" jsonschema:"Replacement tag list"`
	Categories      *[]string `json:"categories,omitempty" jsonschema:"Replacement category list"`
}

func (in UpdateInput) patch() book.Patch {
	return book.Patch{
		Title:           in.Title,
		Summary:         in.Summary,
		DifficultyLevel: in.DifficultyLevel,
		Tags:            in.Tags,
		Categories:      in.Categories,
	}
}

type DeleteInput struct {
	ID string `json:"id" jsonschema:"Book id"`
}

type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type ErrorsInput struct {
	VideoURL string `json:"video_url,omitempty" jsonschema:"Only failures for this exact URL"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Max records (default 20, max 100)"`
}

type ErrorsOutput struct {
	Errors []book.ErrorRecord `json:"errors"`
	Count  int                `json:"count"`
}

func (t *tools) process(ctx context.Context, _ *mcp.CallToolRequest, in ProcessInput) (*mcp.CallToolResult, *book.Document, error) {
	if err := toolutil.Required("url", in.URL); err != nil {
		return nil, nil, err
	}
	doc, err := t.books.Process(ctx, in.URL)
	if err != nil {
		return nil, nil, t.fail("book_process", err, "")
	}
	return nil, output(doc), nil
}

func (t *tools) get(ctx context.Context, _ *mcp.CallToolRequest, in GetInput) (*mcp.CallToolResult, GetOutput, error) {
	if err := toolutil.Required("id", in.ID); err != nil {
		return nil, GetOutput{}, err
	}
	doc, err := t.books.Get(ctx, in.ID)
	if err != nil {
		return nil, GetOutput{}, t.fail("book_get", err, in.ID)
	}
	out := GetOutput{Book: output(doc)}
	if in.Markdown {
		out.Markdown = book.Markdown(doc)
	}
	return nil, out, nil
}

func (t *tools) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	q, err := toolutil.SearchQuery(in.Query, in.Difficulty, in.Skip, in.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	hits, err := t.books.Search(ctx, q)
	if err != nil {
		return nil, SearchOutput{}, t.fail("book_search", err, "")
	}
	if hits == nil {
		hits = []book.Summary{}
	}
	return nil, SearchOutput{Books: hits, Count: len(hits), Skip: q.Skip, Limit: q.Limit}, nil
}

func (t *tools) update(ctx context.Context, _ *mcp.CallToolRequest, in UpdateInput) (*mcp.CallToolResult, *book.Document, error) {
	if err := toolutil.Required("id", in.ID); err != nil {
		return nil, nil, err
	}
	doc, err := t.books.Update(ctx, in.ID, in.patch())
	if err != nil {
		return nil, nil, t.fail("book_update", err, in.ID)
	}
	return nil, output(doc), nil
}

func (t *tools) remove(ctx context.Context, _ *mcp.CallToolRequest, in DeleteInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := toolutil.Required("id", in.ID); err != nil {
		return nil, DeleteOutput{}, err
	}
	if err := t.books.Delete(ctx, in.ID); err != nil {
		return nil, DeleteOutput{}, t.fail("book_delete", err, in.ID)
	}
	return nil, DeleteOutput{ID: in.ID, Deleted: true}, nil
}

func (t *tools) listErrors(ctx context.Context, _ *mcp.CallToolRequest, in ErrorsInput) (*mcp.CallToolResult, ErrorsOutput, error) {
	recs, err := t.books.Errors(ctx, in.VideoURL, toolutil.ErrorLimit(in.Limit))
	if err != nil {
		return nil, ErrorsOutput{}, t.fail("book_errors", err, "")
	}
	if recs == nil {
		recs = []book.ErrorRecord{}
	}
	return nil, ErrorsOutput{Errors: recs, Count: len(recs)}, nil
}

// output fills maps that the tool output schema does not allow to be null.
func output(d *book.Document) *book.Document {
	if d.Glossary == nil {
		d.Glossary = map[string]string{}
	}
	return d
}

// fail logs internal failures and returns the caller-facing error.
func (t *tools) fail(tool string, err error, id string) error {
	if toolutil.Classify(err) == toolutil.KindInternal {
		t.log.Error("tool failed", slog.String("tool", tool), slog.Any("error", err))
	}
	return errors.New(toolutil.Message(err, id))
}
