package bookserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
	"github.com/anatolykoptev/go_book/internal/pipeline"
	"github.com/anatolykoptev/go_book/internal/stages"
	"github.com/anatolykoptev/go_book/internal/store"
)

type staticVideo struct{}

func (staticVideo) Metadata(_ context.Context, id string) (book.SourceVideo, error) {
	return book.SourceVideo{ID: id, Title: "Go Concurrency Patterns", ChannelName: "GopherCon"}, nil
}

func (staticVideo) Transcribe(context.Context, string) (string, error) {
	return strings.Repeat("goroutines and channels compose ", 40), nil
}

type noLanguage struct{}

func (noLanguage) Detect(string) string { return "" }

func newTools(t *testing.T) *tools {
	t.Helper()
	proc := pipeline.New(engine.DefaultConfig(), pipeline.Deps{
		Store:       store.NewMemory(),
		Backend:     stages.NewSimplifiedBackend(),
		Metadata:    staticVideo{},
		Transcripts: staticVideo{},
		Language:    noLanguage{},
	})
	return &tools{books: proc, log: engine.OrDefault(nil)}
}

func TestToolsLifecycle(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)

	_, doc, err := tl.process(ctx, nil, ProcessInput{URL: "https://youtu.be/f6kdp27TYZs"})
	require.NoError(t, err)
	assert.Equal(t, "go-concurrency-patterns", doc.Slug)

	_, got, err := tl.get(ctx, nil, GetInput{ID: doc.ID, Markdown: true})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.Book.ID)
	assert.True(t, strings.HasPrefix(got.Markdown, "# Go Concurrency Patterns"))

	_, found, err := tl.search(ctx, nil, SearchInput{Query: "concurrency"})
	require.NoError(t, err)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, book.DefaultLimit, found.Limit)

	level := "beginner"
	_, updated, err := tl.update(ctx, nil, UpdateInput{ID: doc.ID, DifficultyLevel: &level})
	require.NoError(t, err)
	assert.Equal(t, book.DifficultyBeginner, updated.DifficultyLevel)

	_, del, err := tl.remove(ctx, nil, DeleteInput{ID: doc.ID})
	require.NoError(t, err)
	assert.True(t, del.Deleted)

	_, _, err = tl.get(ctx, nil, GetInput{ID: doc.ID})
	require.Error(t, err)
	assert.Equal(t, "book "+doc.ID+" not found", err.Error())
}

func TestToolsValidation(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)

	_, _, err := tl.process(ctx, nil, ProcessInput{})
	assert.ErrorContains(t, err, "url is required")

	_, _, err = tl.process(ctx, nil, ProcessInput{URL: "https://vimeo.com/1"})
	assert.ErrorContains(t, err, "unrecognized YouTube URL")

	_, _, err = tl.search(ctx, nil, SearchInput{Skip: -3})
	assert.ErrorContains(t, err, "skip")

	_, _, err = tl.remove(ctx, nil, DeleteInput{ID: ""})
	assert.ErrorContains(t, err, "id is required")

	_, out, err := tl.listErrors(ctx, nil, ErrorsInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Errors)
	assert.Zero(t, out.Count)
}

func TestRegisterToolsOverMCP(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)

	server := mcp.NewServer(&mcp.Implementation{Name: "go_book", Version: "test"}, nil)
	RegisterTools(server, tl.books, nil)

	st, ct := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	defer cs.Close()

	list, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list.Tools, ToolCount)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "book_process",
		Arguments: map[string]any{"url": "f6kdp27TYZs"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)

	var doc book.Document
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), &doc))
	assert.Equal(t, "f6kdp27TYZs", doc.SourceVideo.ID)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "book_get",
		Arguments: map[string]any{"id": "missing"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
