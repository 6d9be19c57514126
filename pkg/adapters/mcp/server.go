// Package mcp exposes sessions as Model Context Protocol tools, so an agent
// can run a research conversation on behalf of a user.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/interlude"
	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/runner"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionURIPrefix prefixes the resource URI of every session.
const SessionURIPrefix = "interlude://sessions/"

// Service is the session protocol exposed as tools. *interlude.Engine implements it.
type Service interface {
	Initiate(ctx context.Context, sessionID, content string) (*domain.Reply, error)
	Continue(ctx context.Context, sessionID, content string) (*domain.Reply, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Result(ctx context.Context, sessionID string) (*domain.Artifact, error)
}

// Server wraps a Service and exposes it as an MCP Server.
type Server struct {
	service   Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(service Service, opts ...Option) *Server {
	s := &Server{
		service: service,
		logger:  logging.NewNop(),
		mcpServer: server.NewMCPServer("interlude-mcp", strings.TrimSpace(interlude.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("initiate_session",
		mcp.WithDescription("Start a research session on a topic. Returns the first prompt that needs a human answer, or the final report."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Initial input, usually the research topic")),
		mcp.WithString("session_id", mcp.Description("Session ID (generated when omitted)")),
		mcp.WithOutputSchema[domain.Reply](),
	), s.handleInitiate)

	s.mcpServer.AddTool(mcp.NewTool("continue_session",
		mcp.WithDescription("Answer the pending prompt of a session. Returns the next prompt or the final report."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Feedback for the pending prompt")),
		mcp.WithOutputSchema[domain.Reply](),
	), s.handleContinue)

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read the status, pending prompt and report of a session without advancing it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.handleGetSession)
}

func (s *Server) handleInitiate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := request.GetString("session_id", "")
	if id == "" {
		id = uuid.NewString()
	}
	return s.drive(ctx, id, message, s.service.Initiate)
}

func (s *Server) handleContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.drive(ctx, id, message, s.service.Continue)
}

type driveFunc func(ctx context.Context, sessionID, content string) (*domain.Reply, error)

func (s *Server) drive(ctx context.Context, id, message string, fn driveFunc) (*mcp.CallToolResult, error) {
	clean, err := runner.SanitizeInput(message)
	if err != nil {
		s.logger.Warn("MCP: Input rejected", "err", err, "size", len(message))
		return mcp.NewToolResultError(fmt.Sprintf("input rejected: %v", err)), nil
	}

	reply, err := fn(ctx, id, clean)
	if err != nil {
		s.logger.Warn("MCP: Drive failed", "session_id", id, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return structured(reply)
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.service.Session(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return structured(sess)
}

func structured(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(v, string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(SessionURIPrefix+"{id}", "Session",
		mcp.WithTemplateDescription("Session record, including the final report once completed"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, SessionURIPrefix)
		if id == "" || id == request.Params.URI {
			return nil, fmt.Errorf("invalid session uri %q", request.Params.URI)
		}

		sess, err := s.service.Session(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess.Status == domain.StatusCompleted && sess.Artifact == nil {
			if a, err := s.service.Result(ctx, id); err == nil {
				sess.Artifact = a
			} else if !errors.Is(err, domain.ErrNoActiveSession) {
				return nil, err
			}
		}

		data, err := json.Marshal(sess)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
