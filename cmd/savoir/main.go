// Entry point for the savoir corpus service: chi HTTP API over the
// corpus orchestrator, optional MCP stdio transport, webhook events.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/savoir/corpus"
	"github.com/hazyhaar/savoir/dbopen"
	"github.com/hazyhaar/savoir/notify"
	"github.com/hazyhaar/savoir/shield"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Events: always log, optionally POST to a subscriber.
	publisher := notify.NewFanout(notify.NewSlog(logger))
	if cfg.WebhookURL != "" {
		publisher.Add(notify.NewWebhook(cfg.WebhookURL, notify.WithWebhookLogger(logger)))
	}

	svcCfg := &corpus.Config{
		ChunkSize:   cfg.ChunkSize,
		MaxFileSize: cfg.MaxFileSize,
		BlobDir:     cfg.BlobDir,
		ExportDir:   cfg.ExportDir,
	}
	svcCfg.Crawl.MaxDepth = cfg.Crawl.MaxDepth
	svcCfg.Crawl.MaxPages = cfg.Crawl.MaxPages
	svcCfg.Crawl.Delay = cfg.crawlDelay()

	svc, err := corpus.New(db, svcCfg, logger, corpus.WithPublisher(publisher))
	if err != nil {
		slog.Error("corpus service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Optional MCP stdio transport for agent integrations.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "savoir",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	registerAPI(r, svc, cfg.MaxFileSize)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
