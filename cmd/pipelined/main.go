// Command pipelined is the CML Generation Pipeline's process entrypoint:
// it loads configuration, wires the Artifact Store, LLM Gateway,
// Orchestrator and event bus, reconciles any runs an earlier process was
// interrupted mid-execution, and serves the HTTP API.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/api"
	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/events"
	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/orchestrator"
	"github.com/andylelli/cml-01-sub003/pkg/parse"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
	"github.com/andylelli/cml-01-sub003/pkg/store"
	"github.com/andylelli/cml-01-sub003/pkg/store/jsonfile"
	"github.com/andylelli/cml-01-sub003/pkg/store/postgres"
)

// connWriteTimeout bounds every WebSocket write the ConnectionManager
// performs before dropping a slow subscriber.
const connWriteTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := configureLogger(cfg)
	if err != nil {
		slog.Error("configuring logger", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	backend := llmgateway.NewHTTPBackend(cfg.LLMEndpointURL, cfg.LLMAPIKey, nil)
	gw := llmgateway.New(backend, cfg, orchestrator.NewLogRecorder(st))

	registry := schema.NewRegistry()
	parser := parse.New(registry)
	agents := agent.NewRegistry(cfg)

	connManager := events.NewConnectionManager(st, connWriteTimeout)
	publisher := events.NewPublisher(st, connManager)

	orch := orchestrator.New(st, gw, parser, registry, agents, publisher, cfg)

	slog.Info("reconciling runs interrupted by a prior process exit")
	if err := orch.ReconcileInterruptedRuns(ctx); err != nil {
		slog.Error("reconciling interrupted runs", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(cfg, st, orch, connManager)

	addr := ":" + cfg.HTTPPort
	slog.Info("HTTP server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}

// configureLogger builds the process-wide slog.Logger from cfg's LogLevel,
// LogToConsole and LogToFile/LogPath options (spec.md §6), and returns a
// closer for the log file handle, if one was opened. LogToConsole and
// LogToFile are independent switches — both, one, or neither may be set;
// neither set falls back to stderr so a misconfigured deployment still logs
// somewhere rather than silently going dark.
func configureLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var writers []io.Writer
	closeFn := func() {}
	if cfg.LogToFile {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}
	if cfg.LogToConsole || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}

// openStore selects the Postgres backend when DATABASE_URL is set,
// falling back to the single-file JSON store otherwise, per spec.md §6's
// "the underlying key-value persistence driver" being pluggable behind
// store.Store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.JSONDBPath), 0o755); err != nil {
		return nil, nil, err
	}
	js, err := jsonfile.New(cfg.JSONDBPath)
	if err != nil {
		return nil, nil, err
	}
	return js, func() {}, nil
}
