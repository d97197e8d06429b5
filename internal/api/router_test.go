package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
	"github.com/anatolykoptev/go_book/internal/pipeline"
	"github.com/anatolykoptev/go_book/internal/stages"
	"github.com/anatolykoptev/go_book/internal/store"
)

const brokenVideo = "brokenvid01"

type fakeVideo struct{}

func (fakeVideo) Metadata(_ context.Context, id string) (book.SourceVideo, error) {
	if id == brokenVideo {
		return book.SourceVideo{}, errors.New("video unavailable")
	}
	return book.SourceVideo{ID: id, Title: "Intro to Raft", ChannelName: "Distributed Weekly"}, nil
}

func (fakeVideo) Transcribe(context.Context, string) (string, error) {
	return strings.Repeat("leader election and log replication ", 30), nil
}

type silent struct{}

func (silent) Detect(string) string { return "" }

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	proc := pipeline.New(engine.DefaultConfig(), pipeline.Deps{
		Store:       store.NewMemory(),
		Backend:     stages.NewSimplifiedBackend(),
		Metadata:    fakeVideo{},
		Transcripts: fakeVideo{},
		Language:    silent{},
	})
	return NewRouter(RouterConfig{Books: proc, Metrics: engine.NewMetrics(), Version: "test"})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthzAndRequestID(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookLifecycle(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/books", `{"url":"https://www.youtube.com/watch?v=YbZ3zDzDnrw"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := decode[book.Document](t, w)
	assert.Equal(t, "intro-to-raft", doc.Slug)
	assert.Equal(t, "YbZ3zDzDnrw", doc.SourceVideo.ID)

	w = do(r, http.MethodPost, "/api/v1/books", `{"url":"https://youtu.be/YbZ3zDzDnrw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, doc.ID, decode[book.Document](t, w).ID)

	w = do(r, http.MethodGet, "/api/v1/books/"+doc.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/books/"+doc.ID+"/markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Intro to Raft"))

	w = do(r, http.MethodPut, "/api/v1/books/"+doc.ID, `{"title":"Raft, Explained","tags":["consensus"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[book.Document](t, w)
	assert.Equal(t, "raft-explained", updated.Slug)
	assert.Equal(t, []string{"consensus"}, updated.Tags)
	assert.Equal(t, doc.SourceVideo.ID, updated.SourceVideo.ID)

	w = do(r, http.MethodGet, "/api/v1/books?query=raft&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[searchResponse](t, w)
	require.Len(t, res.Books, 1)
	assert.Equal(t, 5, res.Limit)

	w = do(r, http.MethodDelete, "/api/v1/books/"+doc.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/books/"+doc.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	env := decode[ErrorEnvelope](t, w)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestErrorMapping(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unrecognized url", http.MethodPost, "/api/v1/books", `{"url":"https://vimeo.com/1"}`, http.StatusBadRequest, "invalid_request"},
		{"missing url", http.MethodPost, "/api/v1/books", `{}`, http.StatusBadRequest, "invalid_request"},
		{"malformed body", http.MethodPost, "/api/v1/books", `{"url":`, http.StatusBadRequest, "invalid_request"},
		{"bad skip", http.MethodGet, "/api/v1/books?skip=abc", "", http.StatusBadRequest, "invalid_request"},
		{"negative skip", http.MethodGet, "/api/v1/books?skip=-1", "", http.StatusBadRequest, "invalid_request"},
		{"unknown book", http.MethodPut, "/api/v1/books/nope", `{"summary":"x"}`, http.StatusNotFound, "not_found"},
		{"pipeline failure", http.MethodPost, "/api/v1/books", `{"url":"` + brokenVideo + `"}`, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			env := decode[ErrorEnvelope](t, w)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}

	w := do(r, http.MethodGet, "/api/v1/errors?video_url="+brokenVideo, "")
	require.Equal(t, http.StatusOK, w.Code)
	recs := decode[errorsResponse](t, w)
	require.Len(t, recs.Errors, 1)
	assert.Equal(t, pipeline.StageMetadata, recs.Errors[0].Stage)
}
