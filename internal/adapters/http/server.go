// Package http exposes sessions over a JSON API compatible with the chat
// endpoints of the research assistant web UI.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/interlude"
	"github.com/aretw0/interlude/api"
	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/runner"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// maxBodySize bounds JSON request bodies; messages are further limited by the sanitizer.
const maxBodySize = 1 << 20

// Service is the session protocol served by the handler. *interlude.Engine implements it.
type Service interface {
	Initiate(ctx context.Context, sessionID, content string) (*domain.Reply, error)
	Continue(ctx context.Context, sessionID, content string) (*domain.Reply, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Result(ctx context.Context, sessionID string) (*domain.Artifact, error)
	Sessions(ctx context.Context) ([]string, error)
}

// Server holds the handlers of the HTTP façade.
type Server struct {
	service Service
	doc     *openapi3.T
	logger  *slog.Logger
	metrics http.Handler
	newID   func() string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithIDGenerator overrides how session IDs are generated when a client
// initiates without one.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// NewHandler creates the HTTP handler for service. It fails if the embedded
// OpenAPI document does not validate.
func NewHandler(service Service, opts ...Option) (http.Handler, error) {
	doc, err := api.Load(context.Background())
	if err != nil {
		return nil, err
	}

	s := &Server{
		service: service,
		doc:     doc,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(api.Raw())
	})
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Get("/chat_initiate", s.Initiate)
	r.Post("/chat_initiate", s.Initiate)
	for _, path := range []string{"/chat-continue", "/chat_continue"} {
		r.Get(path, s.Continue)
		r.Post(path, s.Continue)
	}

	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{id}", s.GetSession)
	r.Get("/sessions/{id}/result", s.GetResult)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Initiate handles /chat_initiate.
func (s *Server) Initiate(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseChat(w, r)
	if err != nil {
		s.badRequest(w, req.SessionID, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = s.newID()
	}

	reply, err := s.service.Initiate(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeError(w, req.SessionID, err)
		return
	}
	s.logger.Info("Session initiated", "session_id", reply.SessionID, "status", reply.Status)
	s.writeJSON(w, http.StatusOK, reply)
}

// Continue handles /chat-continue and /chat_continue.
func (s *Server) Continue(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseChat(w, r)
	if err != nil {
		s.badRequest(w, req.SessionID, err)
		return
	}
	if req.SessionID == "" {
		s.badRequest(w, "", errors.New("session_id is required"))
		return
	}

	reply, err := s.service.Continue(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeError(w, req.SessionID, err)
		return
	}
	s.logger.Info("Session continued", "session_id", reply.SessionID, "status", reply.Status)
	s.writeJSON(w, http.StatusOK, reply)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.Sessions(r.Context())
	if err != nil {
		s.writeError(w, "", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.service.Session(r.Context(), id)
	if err != nil {
		s.writeError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// GetResult handles GET /sessions/{id}/result.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifact, err := s.service.Result(r.Context(), id)
	if err != nil {
		s.writeError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"artifact": artifact})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.doc.Info != nil {
		apiVersion = s.doc.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "interlude-http",
		"version":     strings.TrimSpace(interlude.Version),
		"api_version": apiVersion,
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
	Message   string `json:"message"`
}

// parseChat reads the session ID and message from a JSON body, a form body or
// the query string. thread_id is accepted as an alias of session_id.
func (s *Server) parseChat(w http.ResponseWriter, r *http.Request) (chatRequest, error) {
	var req chatRequest
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body := http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req.SessionID = r.Form.Get("session_id")
		req.ThreadID = r.Form.Get("thread_id")
		req.Message = r.Form.Get("message")
	}

	if req.SessionID == "" {
		req.SessionID = req.ThreadID
	}
	req.SessionID = strings.TrimSpace(req.SessionID)

	msg, err := runner.SanitizeInput(req.Message)
	if err != nil {
		return req, err
	}
	req.Message = msg
	return req, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
