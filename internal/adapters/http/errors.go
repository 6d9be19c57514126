package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/interlude/pkg/domain"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	SessionID string        `json:"session_id,omitempty"`
	Status    domain.Status `json:"status,omitempty"`
}

// classify maps the error taxonomy onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, domain.ErrDriveTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrUnknownCheckpoint):
		return http.StatusGone, "unknown_checkpoint"
	case errors.Is(err, domain.ErrSessionDegraded):
		return http.StatusConflict, "degraded"
	case errors.Is(err, domain.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, domain.ErrEngineFailure):
		return http.StatusBadGateway, "engine_failure"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, sessionID string, err error) {
	code, name := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "session_id", sessionID, "err", err)
	} else {
		s.logger.Warn("Request rejected", "session_id", sessionID, "err", err)
	}
	if errors.Is(err, domain.ErrSessionBusy) {
		w.Header().Set("Retry-After", "1")
	}
	s.writeJSON(w, code, errorBody{
		Error:     name,
		Message:   err.Error(),
		SessionID: sessionID,
		Status:    domain.StatusOf(err),
	})
}

func (s *Server) badRequest(w http.ResponseWriter, sessionID string, err error) {
	s.logger.Warn("Invalid request", "session_id", sessionID, "err", err)
	s.writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     "bad_request",
		Message:   err.Error(),
		SessionID: sessionID,
	})
}
