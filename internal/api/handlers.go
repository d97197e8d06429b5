package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/toolutil"
)

// Handler implements the /api/v1 endpoints.
type Handler struct {
	books Books
	log   *slog.Logger
}

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type processRequest struct {
	URL string `json:"url"`
}

type searchResponse struct {
	Books []book.Summary `json:"books"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
}

type errorsResponse struct {
	Errors []book.ErrorRecord `json:"errors"`
}

// POST /api/v1/books
func (h *Handler) ProcessBook(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", toolutil.ErrInvalid, err), "")
		return
	}
	if err := toolutil.Required("url", req.URL); err != nil {
		h.respondError(c, err, "")
		return
	}
	doc, err := h.books.Process(c.Request.Context(), req.URL)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GET /api/v1/books?query=&difficulty=&skip=&limit=
func (h *Handler) SearchBooks(c *gin.Context) {
	skip, err := intParam(c, "skip")
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	limit, err := intParam(c, "limit")
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	q, err := toolutil.SearchQuery(c.Query("query"), c.Query("difficulty"), skip, limit)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	hits, err := h.books.Search(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	if hits == nil {
		hits = []book.Summary{}
	}
	c.JSON(http.StatusOK, searchResponse{Books: hits, Skip: q.Skip, Limit: q.Limit})
}

// GET /api/v1/books/:id
func (h *Handler) GetBook(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.books.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GET /api/v1/books/:id/markdown
func (h *Handler) GetMarkdown(c *gin.Context) {
	id := c.Param("id")
	md, err := h.books.Markdown(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, id)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

// PUT /api/v1/books/:id
func (h *Handler) UpdateBook(c *gin.Context) {
	id := c.Param("id")
	var patch book.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", toolutil.ErrInvalid, err), id)
		return
	}
	doc, err := h.books.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DELETE /api/v1/books/:id
func (h *Handler) DeleteBook(c *gin.Context) {
	id := c.Param("id")
	if err := h.books.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "message": "Book deleted successfully"})
}

// GET /api/v1/errors?video_url=&limit=
func (h *Handler) ListErrors(c *gin.Context) {
	limit, err := intParam(c, "limit")
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	recs, err := h.books.Errors(c.Request.Context(), c.Query("video_url"), toolutil.ErrorLimit(limit))
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	if recs == nil {
		recs = []book.ErrorRecord{}
	}
	c.JSON(http.StatusOK, errorsResponse{Errors: recs})
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", toolutil.ErrInvalid, name)
	}
	return n, nil
}

func (h *Handler) respondError(c *gin.Context, err error, id string) {
	status, code := http.StatusInternalServerError, "internal"
	switch toolutil.Classify(err) {
	case toolutil.KindInvalid:
		status, code = http.StatusBadRequest, "invalid_request"
	case toolutil.KindNotFound:
		status, code = http.StatusNotFound, "not_found"
	default:
		h.log.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.Any("error", err))
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: toolutil.Message(err, id), Code: code}})
}
