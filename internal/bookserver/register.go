// Package bookserver exposes the book pipeline as MCP tools.
package bookserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

// Books is the pipeline surface the tools call. pipeline.Processor implements it.
type Books interface {
	Process(ctx context.Context, videoURL string) (*book.Document, error)
	Get(ctx context.Context, id string) (*book.Document, error)
	Search(ctx context.Context, q book.Query) ([]book.Summary, error)
	Update(ctx context.Context, id string, p book.Patch) (*book.Document, error)
	Delete(ctx context.Context, id string) error
	Errors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error)
	Markdown(ctx context.Context, id string) (string, error)
}

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 6

type tools struct {
	books Books
	log   *slog.Logger
}

// RegisterTools registers book_process, book_get, book_search, book_update,
// book_delete and book_errors on server.
func RegisterTools(server *mcp.Server, books Books, log *slog.Logger) {
	t := &tools{books: books, log: engine.OrDefault(log).With("component", "mcp")}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_process",
		Description: "Convert a YouTube video into a structured book: summary, chapters with key points, examples and quotes, glossary, further reading, key takeaways and classification. Returns the stored book. If a book for the same video already exists it is returned without reprocessing. Accepts watch, youtu.be, embed, shorts and live URLs or a bare 11-character video id.",
	}, t.process)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_get",
		Description: "Fetch a stored book by id. Set markdown=true to also receive the book rendered as markdown.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.get)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_search",
		Description: "Search stored books by text (title, summary, chapters, tags) and difficulty. Without a query returns the newest books. Paginated with skip and limit (default 10, max 100).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.search)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_update",
		Description: "Edit a stored book: title, summary, difficulty_level, tags, categories. Omitted fields are left unchanged. The slug follows the title; the source video cannot be changed.",
	}, t.update)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_delete",
		Description: "Delete a stored book by id. Processing the same video afterwards builds a new book.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: ptr(true)},
	}, t.remove)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_errors",
		Description: "List recorded processing failures, newest first, with the failing stage and error message. Optionally filter by video_url.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.listErrors)
}

func ptr[T any](v T) *T { return &v }
