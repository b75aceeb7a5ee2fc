package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/session"
)

// MessageRequest is the body of POST /threads/{id}/messages.
type MessageRequest struct {
	Prompt string `json:"prompt"`
}

// MessageResponse is the reply to POST /threads/{id}/messages.
type MessageResponse struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

// ThreadsResponse lists the known thread IDs.
type ThreadsResponse struct {
	Threads []string `json:"threads"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const maxBodyBytes = 1 << 20

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /threads", s.handleListThreads)
	mux.HandleFunc("POST /threads/{id}/messages", s.handleMessage)
	mux.HandleFunc("GET /threads/{id}/stream", s.handleStream)
	mux.HandleFunc("DELETE /threads/{id}", s.handleDeleteThread)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"cli":    s.client.State().String(),
	})
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	keys, err := s.registry.Keys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sort.Strings(keys)
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, ThreadsResponse{Threads: keys})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	sess, err := s.sessionFor(ctx, threadID)
	if err != nil {
		s.log.Error().Err(err).Str("thread", threadID).Msg("open session")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	ev, err := sess.SendAndWait(ctx, copilot.MessageOptions{Prompt: req.Prompt})
	if err != nil {
		s.log.Warn().Err(err).Str("thread", threadID).Msg("turn failed")
		writeError(w, turnStatus(err), err.Error())
		return
	}
	resp := MessageResponse{SessionID: sess.ID}
	if ev != nil {
		resp.Reply = ev.Data.Content
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	unlock := s.lockThread(threadID)
	defer unlock()

	entry, err := s.registry.Get(r.Context(), threadID)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown thread")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.registry.Delete(r.Context(), threadID); err != nil && !errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Release(entry)
	w.WriteHeader(http.StatusNoContent)
}

func turnStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, copilot.ErrPromptBlocked):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
