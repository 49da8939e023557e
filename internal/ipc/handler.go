// Package ipc provides the HTTP API for the debate arena.
package ipc

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/debate-arena/internal/agents"
	"github.com/anthropics/debate-arena/internal/broadcast"
	"github.com/anthropics/debate-arena/internal/docstore"
	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/engine"
	"github.com/anthropics/debate-arena/internal/store"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Machine     *engine.Machine
	Agents      *agents.Registry
	Documents   *docstore.Store
	Broadcaster *broadcast.Broadcaster
	DB          *sql.DB
	Statements  *store.StatementRepo
}

// CreateDocumentRequest is the body for POST /api/v1/documents.
type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreateDocumentResponse is the response for POST /api/v1/documents.
type CreateDocumentResponse struct {
	DocumentID string `json:"document_id"`
}

// CreateDebateRequest is the body for POST /api/v1/debates.
type CreateDebateRequest struct {
	Title       string `json:"title"`
	DocumentID  string `json:"document_id"`
	TotalRounds int    `json:"total_rounds"`
}

// StartDebateRequest is the body for POST /api/v1/debates/{debateID}/start.
type StartDebateRequest struct {
	Participants []string `json:"participants"`
}

// VoteRequest is the body for POST /api/v1/statements/{statementID}/vote.
type VoteRequest struct {
	Direction string `json:"direction"`
}

// DebateDetail is the response for GET /api/v1/debates/{debateID}.
type DebateDetail struct {
	Debate *domain.Debate `json:"debate"`
	Rounds []domain.Round `json:"rounds"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListAgents handles GET /api/v1/agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Agents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.AgentPersonality{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAgent handles GET /api/v1/agents/{agentID}.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	a, err := h.Agents.Get(r.Context(), agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateDocument handles POST /api/v1/documents.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "content is required"})
		return
	}

	id, err := h.Documents.Put(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateDocumentResponse{DocumentID: id})
}

// CreateDebate handles POST /api/v1/debates.
func (h *Handler) CreateDebate(w http.ResponseWriter, r *http.Request) {
	var req CreateDebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "document_id is required"})
		return
	}

	d, err := h.Machine.Create(r.Context(), req.Title, req.DocumentID, req.TotalRounds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListDebates handles GET /api/v1/debates.
func (h *Handler) ListDebates(w http.ResponseWriter, r *http.Request) {
	list, err := h.Machine.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.Debate{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetDebate handles GET /api/v1/debates/{debateID}.
func (h *Handler) GetDebate(w http.ResponseWriter, r *http.Request) {
	debateID := r.PathValue("debateID")
	d, err := h.Machine.Get(r.Context(), debateID)
	if err != nil {
		writeError(w, err)
		return
	}
	rounds, err := h.Machine.Transcript(r.Context(), debateID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rounds == nil {
		rounds = []domain.Round{}
	}
	writeJSON(w, http.StatusOK, DebateDetail{Debate: d, Rounds: rounds})
}

// StartDebate handles POST /api/v1/debates/{debateID}/start.
func (h *Handler) StartDebate(w http.ResponseWriter, r *http.Request) {
	debateID := r.PathValue("debateID")
	var req StartDebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	if err := h.Machine.Start(r.Context(), debateID, req.Participants); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CancelDebate handles POST /api/v1/debates/{debateID}/cancel.
func (h *Handler) CancelDebate(w http.ResponseWriter, r *http.Request) {
	debateID := r.PathValue("debateID")
	if err := h.Machine.Cancel(r.Context(), debateID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoteStatement handles POST /api/v1/statements/{statementID}/vote.
func (h *Handler) VoteStatement(w http.ResponseWriter, r *http.Request) {
	statementID := r.PathValue("statementID")
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.Direction != "up" && req.Direction != "down" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "direction must be up or down"})
		return
	}

	if err := h.Statements.Vote(r.Context(), h.DB, statementID, req.Direction == "up"); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.Statements.GetByID(r.Context(), h.DB, statementID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StreamEvents handles GET /api/v1/debates/{debateID}/events/stream (SSE).
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	debateID := r.PathValue("debateID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	if _, err := h.Machine.Get(r.Context(), debateID); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	sub := h.Broadcaster.Subscribe(debateID)
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSEEvent(w, flusher, ev)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if arenaErr, ok := err.(*domain.ArenaError); ok {
		status := http.StatusInternalServerError
		switch arenaErr.Code {
		case domain.ErrDebateNotFound.Code, domain.ErrStatementNotFound.Code,
			domain.ErrUnknownAgent.Code, domain.ErrDocumentUnavailable.Code:
			status = http.StatusNotFound
		case domain.ErrDuplicateDebate.Code, domain.ErrDuplicateAgent.Code,
			domain.ErrOptimisticLock.Code:
			status = http.StatusConflict
		case domain.ErrInvalidTransition.Code, domain.ErrDebateAlreadyDone.Code,
			domain.ErrDebateNotRunning.Code:
			status = http.StatusUnprocessableEntity
		case domain.ErrInvalidParticipants.Code, domain.ErrInvalidRounds.Code,
			domain.ErrConfigInvalid.Code:
			status = http.StatusBadRequest
		case domain.ErrInferenceUnavailable.Code:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, APIError{Code: arenaErr.Code, Message: arenaErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev domain.DebateEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	f.Flush()
}
