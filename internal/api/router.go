// Package api serves the book pipeline over REST with gin.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

// Books is the pipeline surface the handlers call. pipeline.Processor implements it.
type Books interface {
	Process(ctx context.Context, videoURL string) (*book.Document, error)
	Get(ctx context.Context, id string) (*book.Document, error)
	Search(ctx context.Context, q book.Query) ([]book.Summary, error)
	Update(ctx context.Context, id string, p book.Patch) (*book.Document, error)
	Delete(ctx context.Context, id string) error
	Errors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error)
	Markdown(ctx context.Context, id string) (string, error)
}

// RouterConfig wires the router.
type RouterConfig struct {
	Books   Books
	Log     *slog.Logger
	Metrics *engine.Metrics
	Version string
}

// NewRouter builds the gin engine serving /healthz and /api/v1.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := engine.OrDefault(cfg.Log).With("component", "api")
	h := &Handler{books: cfg.Books, log: log}

	router := gin.New()
	router.Use(RequestID(), AccessLog(log), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", func(c *gin.Context) {
			c.String(http.StatusOK, cfg.Metrics.Format())
		})
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/books", h.ProcessBook)
		v1.GET("/books", h.SearchBooks)
		v1.GET("/books/:id", h.GetBook)
		v1.GET("/books/:id/markdown", h.GetMarkdown)
		v1.PUT("/books/:id", h.UpdateBook)
		v1.DELETE("/books/:id", h.DeleteBook)
		v1.GET("/errors", h.ListErrors)
	}
	return router
}
