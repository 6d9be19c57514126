package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/interlude/internal/adapters/http"
	mcpAdapter "github.com/aretw0/interlude/pkg/adapters/mcp"
)

const shutdownTimeout = 5 * time.Second

// NewHTTPHandler builds the REST handler for app, exposing /metrics when
// metrics are enabled.
func NewHTTPHandler(app *App) (http.Handler, error) {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(app.Logger)}
	if app.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(app.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(app.Engine, opts...)
}

// Serve runs the HTTP API on addr until ctx is done, then shuts down gracefully.
// When mcpAddr is set the MCP SSE transport runs alongside it.
func Serve(ctx context.Context, app *App, addr, mcpAddr string) error {
	handler, err := NewHTTPHandler(app)
	if err != nil {
		return fmt.Errorf("failed to build handler: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		app.Logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if mcpAddr != "" {
		go func() {
			if err := ServeMCP(ctx, app, "sse", mcpAddr); err != nil {
				errCh <- fmt.Errorf("mcp: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		shutdown(app, srv)
		return err
	}

	return shutdown(app, srv)
}

func shutdown(app *App, srv *http.Server) error {
	app.Logger.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// ServeMCP exposes app over the Model Context Protocol using the stdio or
// sse transport.
func ServeMCP(ctx context.Context, app *App, transport, addr string) error {
	srv := mcpAdapter.NewServer(app.Engine, mcpAdapter.WithLogger(app.Logger))
	switch transport {
	case "stdio", "":
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, addr)
	}
	return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
}
