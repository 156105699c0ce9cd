// Command airtable-mcp starts the Airtable MCP bridge on a stdio pipe or as
// an SSE HTTP server.
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

	"airtable-mcp/internal/airtable"
	"airtable-mcp/internal/mcp"
	"airtable-mcp/internal/server"
	"airtable-mcp/internal/tool"

	"github.com/jessevdk/go-flags"
	"github.com/viant/jsonrpc/transport/server/stdio"
)

type options struct {
	Transport string `short:"t" long:"transport" description:"transport type" choice:"stdio" choice:"sse" default:"stdio"`
	Port      string `short:"p" long:"port" description:"listen port for the sse transport (default 3000)"`
}

func main() {
	setupLogging()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	apiKey := os.Getenv("AIRTABLE_API_KEY")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Transport {
	case "sse":
		runHTTP(ctx, opts, apiKey)
	default:
		runStdio(ctx, apiKey)
	}
}

// setupLogging routes logs to stderr; in stdio mode stdout belongs to the
// protocol.
func setupLogging() {
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))
}

func runStdio(ctx context.Context, apiKey string) {
	if apiKey == "" {
		slog.Error("AIRTABLE_API_KEY is required in stdio mode")
		os.Exit(1)
	}
	session := mcp.NewSession(mcp.Identity(), tool.New(airtable.New(apiKey)))
	slog.Info("starting stdio transport", "server", mcp.Name, "version", mcp.Version)
	srv := stdio.New(ctx, session.NewHandler)
	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		slog.Error("stdio transport failed", "err", err)
		os.Exit(1)
	}
}

func runHTTP(ctx context.Context, opts options, apiKey string) {
	if apiKey == "" {
		slog.Warn("AIRTABLE_API_KEY not set; every tool call will fail until configured")
	}
	port := opts.Port
	if port == "" {
		port = getEnv("PORT", "3000")
	}
	srv := server.New(server.Config{Port: port, APIKey: apiKey})
	httpSrv := &http.Server{Addr: ":" + port, Handler: srv.Router()}

	errs := make(chan error, 1)
	go func() { errs <- httpSrv.ListenAndServe() }()
	slog.Info("starting sse transport", "addr", httpSrv.Addr, "server", mcp.Name)

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown incomplete", "err", err)
		}
		slog.Info("server stopped")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
