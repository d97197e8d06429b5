// go_book turns YouTube videos into structured books.
//
// The serve command exposes the pipeline as MCP tools (book_process,
// book_get, book_search, book_update, book_delete, book_errors) and as a
// REST API under /api/v1. The other commands run one operation and print
// the result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/anatolykoptev/go_book/internal/api"
	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/bookserver"
	"github.com/anatolykoptev/go_book/internal/engine"
	"github.com/anatolykoptev/go_book/internal/pipeline"
	"github.com/anatolykoptev/go_book/internal/sources"
	"github.com/anatolykoptev/go_book/internal/stages"
	"github.com/anatolykoptev/go_book/internal/store"
	"github.com/anatolykoptev/go_book/internal/toolutil"
	"github.com/anatolykoptev/go_book/internal/transcribe"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "go_book",
		Usage:   "convert YouTube videos into structured books",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file; environment variables override it",
				EnvVars: []string{"GO_BOOK_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the MCP server and the REST API",
				Action: serveAction,
			},
			{
				Name:      "process",
				Usage:     "build (or fetch the existing) book for a video",
				ArgsUsage: "<url>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "markdown", Usage: "print markdown instead of JSON"}},
				Action:    processAction,
			},
			{
				Name:      "get",
				Usage:     "print a stored book",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "markdown", Usage: "print markdown instead of JSON"}},
				Action:    getAction,
			},
			{
				Name:  "search",
				Usage: "search stored books",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}},
					&cli.StringFlag{Name: "difficulty"},
					&cli.IntFlag{Name: "skip"},
					&cli.IntFlag{Name: "limit", Value: book.DefaultLimit},
				},
				Action: searchAction,
			},
			{
				Name:  "errors",
				Usage: "list recorded processing failures",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "video-url"},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: errorsAction,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("go_book failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// runtime is the wired application for one command.
type runtime struct {
	cfg     engine.Config
	log     *slog.Logger
	metrics *engine.Metrics
	proc    *pipeline.Processor
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.Warn("close failed", slog.Any("error", err))
		}
	}
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := engine.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	log := engine.NewLogger(cfg, os.Stderr)
	slog.SetDefault(log)
	m := engine.NewMetrics()
	r := &runtime{cfg: cfg, log: log, metrics: m}

	st, err := store.Open(c.Context, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	r.closers = append(r.closers, st.Close)

	cache := engine.NewCache(cfg, m, log)
	r.closers = append(r.closers, cache.Close)

	yt := sources.NewYouTube(cfg, log, m,
		sources.WithCache(cache),
		sources.WithBrowser(engine.NewBrowserClient(cfg, log)),
	)
	resolver := transcribe.New(c.Context, cfg, yt, log, m)
	r.closers = append(r.closers, resolver.Close)

	var completer engine.Completer
	if cfg.CapableLLM() {
		completer = engine.NewLLM(cfg, m)
	}
	backend := stages.Select(cfg, completer, log)

	r.proc = pipeline.New(cfg, pipeline.Deps{
		Store:       st,
		Backend:     backend,
		Metadata:    yt,
		Transcripts: resolver,
		Counter:     book.NewTokenCounter(cfg.TokenEncodingModel, log),
		Log:         log,
		Metrics:     m,
	})
	log.Info("go_book ready",
		slog.String("store", cfg.StoreDriver),
		slog.String("backend", backend.Name()),
		slog.String("transcription", resolver.Name()))
	return r, nil
}

func serveAction(c *cli.Context) error {
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              r.cfg.HTTPAddr,
			Handler:           api.NewRouter(api.RouterConfig{Books: r.proc, Log: r.log, Metrics: r.metrics, Version: version}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			r.log.Info("REST API listening", slog.String("addr", r.cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.Error("REST API failed", slog.Any("error", err))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_book",
		Version: version,
	}, nil)
	bookserver.RegisterTools(server, r.proc, r.log)
	r.log.Info("tools registered", slog.Int("count", bookserver.ToolCount), slog.String("port", r.cfg.MCPPort))

	return mcpserver.Run(server, mcpserver.Config{
		Name:         "go_book",
		Version:      version,
		Port:         r.cfg.MCPPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      r.metrics.Format,
	})
}

func processAction(c *cli.Context) error {
	url := c.Args().First()
	if err := toolutil.Required("url", url); err != nil {
		return err
	}
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.Close()

	doc, err := r.proc.Process(c.Context, url)
	if err != nil {
		return err
	}
	if c.Bool("markdown") {
		fmt.Print(book.Markdown(doc))
		return nil
	}
	return printJSON(doc)
}

func getAction(c *cli.Context) error {
	id := c.Args().First()
	if err := toolutil.Required("id", id); err != nil {
		return err
	}
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.Close()

	if c.Bool("markdown") {
		md, err := r.proc.Markdown(c.Context, id)
		if err != nil {
			return err
		}
		fmt.Print(md)
		return nil
	}
	doc, err := r.proc.Get(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(doc)
}

func searchAction(c *cli.Context) error {
	q, err := toolutil.SearchQuery(c.String("query"), c.String("difficulty"), c.Int("skip"), c.Int("limit"))
	if err != nil {
		return err
	}
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.Close()

	hits, err := r.proc.Search(c.Context, q)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No books found")
		return nil
	}
	fmt.Printf("%-28s %-13s %-12s %s\n", "ID", "Video", "Level", "Title")
	for _, h := range hits {
		fmt.Printf("%-28s %-13s %-12s %s\n", h.ID, h.SourceVideoID, h.DifficultyLevel, h.Title)
	}
	fmt.Printf("\n%d result(s), skip %d, limit %d\n", len(hits), q.Skip, q.Limit)
	return nil
}

func errorsAction(c *cli.Context) error {
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.Close()

	recs, err := r.proc.Errors(c.Context, c.String("video-url"), toolutil.ErrorLimit(c.Int("limit")))
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No errors recorded")
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("%s  %-10s %s\n    %s\n", rec.CreatedAt.Format(time.DateTime), rec.Stage, rec.VideoURL, rec.Error)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
