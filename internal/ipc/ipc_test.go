package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/debate-arena/internal/agents"
	"github.com/anthropics/debate-arena/internal/broadcast"
	"github.com/anthropics/debate-arena/internal/docstore"
	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/engine"
	"github.com/anthropics/debate-arena/internal/prompt"
	"github.com/anthropics/debate-arena/internal/store"
)

// echoGenerator completes instantly with a fixed statement.
type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, pctx domain.PromptContext, p domain.AgentPersonality, emit func(string)) (domain.GenerationResult, error) {
	text := p.ID + " responds"
	if emit != nil {
		emit(text)
	}
	return domain.GenerationResult{Text: text, TokenCount: 2}, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	registry := agents.NewRegistry(db)
	if err := registry.EnsureDefaults(ctx); err != nil {
		t.Fatalf("seed agents: %v", err)
	}
	documents := docstore.NewStore(db)
	broadcaster := broadcast.NewBroadcaster(64)
	window := prompt.NewManager(3, 6000, nil)
	statements := &store.StatementRepo{}

	coordinator := &engine.RoundCoordinator{
		DB:                db,
		Statements:        statements,
		Gateway:           echoGenerator{},
		Window:            window,
		Events:            broadcaster,
		AbortFailureRatio: 0.5,
		AgentTimeout:      5 * time.Second,
	}
	machine := engine.NewMachine(db, registry, documents, window, coordinator, broadcaster, 1500)
	t.Cleanup(machine.Close)

	return &Handler{
		Machine:     machine,
		Agents:      registry,
		Documents:   documents,
		Broadcaster: broadcaster,
		DB:          db,
		Statements:  statements,
	}
}

func createDocument(t *testing.T, h *Handler) string {
	t.Helper()
	id, err := h.Documents.Put(context.Background(), "doc", "A document worth debating.")
	if err != nil {
		t.Fatalf("put document: %v", err)
	}
	return id
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListAgents_ReturnsSeededPanel(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	w := httptest.NewRecorder()

	h.ListAgents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var list []domain.AgentPersonality
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != len(agents.DefaultPersonalities()) {
		t.Errorf("got %d agents, want %d", len(list), len(agents.DefaultPersonalities()))
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/ghost", nil)
	req.SetPathValue("agentID", "ghost")
	w := httptest.NewRecorder()

	h.GetAgent(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateDocument(t *testing.T) {
	h := newTestHandler(t)
	body := `{"title":"Spec","content":"The proposal text."}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.CreateDocument(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreateDocumentResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.DocumentID == "" {
		t.Error("empty document_id")
	}
}

func TestCreateDocument_EmptyContent(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewBufferString(`{"title":"x"}`))
	w := httptest.NewRecorder()

	h.CreateDocument(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateDebate(t *testing.T) {
	h := newTestHandler(t)
	docID := createDocument(t, h)

	body, _ := json.Marshal(CreateDebateRequest{Title: "d", DocumentID: docID, TotalRounds: 2})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/debates", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	h.CreateDebate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var d domain.Debate
	json.NewDecoder(w.Body).Decode(&d)
	if d.Status != domain.DebateCreated {
		t.Errorf("Status = %q, want created", d.Status)
	}
}

func TestCreateDebate_InvalidRounds(t *testing.T) {
	h := newTestHandler(t)
	docID := createDocument(t, h)

	body, _ := json.Marshal(CreateDebateRequest{DocumentID: docID, TotalRounds: 0})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/debates", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	h.CreateDebate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStartDebate_UnknownParticipant(t *testing.T) {
	h := newTestHandler(t)
	docID := createDocument(t, h)

	d, err := h.Machine.Create(context.Background(), "d", docID, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	body, _ := json.Marshal(StartDebateRequest{Participants: []string{"ghost"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/debates/"+d.ID+"/start", bytes.NewBuffer(body))
	req.SetPathValue("debateID", d.ID)
	w := httptest.NewRecorder()

	h.StartDebate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDebateLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	docID := createDocument(t, h)

	d, err := h.Machine.Create(context.Background(), "d", docID, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	body, _ := json.Marshal(StartDebateRequest{Participants: []string{"skeptic", "optimist"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/debates/"+d.ID+"/start", bytes.NewBuffer(body))
	req.SetPathValue("debateID", d.ID)
	w := httptest.NewRecorder()

	h.StartDebate(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	select {
	case <-h.Machine.Done(d.ID):
	case <-time.After(10 * time.Second):
		t.Fatal("debate did not finish")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/debates/"+d.ID, nil)
	getReq.SetPathValue("debateID", d.ID)
	getW := httptest.NewRecorder()

	h.GetDebate(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", getW.Code, getW.Body.String())
	}

	var detail DebateDetail
	json.NewDecoder(getW.Body).Decode(&detail)
	if detail.Debate.Status != domain.DebateCompleted {
		t.Errorf("Status = %q, want completed", detail.Debate.Status)
	}
	if len(detail.Rounds) != 1 || len(detail.Rounds[0].Statements) != 2 {
		t.Errorf("transcript shape = %d rounds, want 1 round of 2 statements", len(detail.Rounds))
	}
}

func TestVoteStatement(t *testing.T) {
	h := newTestHandler(t)
	docID := createDocument(t, h)

	d, err := h.Machine.Create(context.Background(), "d", docID, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Machine.Start(context.Background(), d.ID, []string{"skeptic"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-h.Machine.Done(d.ID)

	rounds, err := h.Machine.Transcript(context.Background(), d.ID)
	if err != nil || len(rounds) == 0 {
		t.Fatalf("Transcript: %v", err)
	}
	stID := rounds[0].Statements[0].ID

	req := httptest.NewRequest(http.MethodPost, "/api/v1/statements/"+stID+"/vote", bytes.NewBufferString(`{"direction":"up"}`))
	req.SetPathValue("statementID", stID)
	w := httptest.NewRecorder()

	h.VoteStatement(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var s domain.Statement
	json.NewDecoder(w.Body).Decode(&s)
	if s.UpVotes != 1 {
		t.Errorf("UpVotes = %d, want 1", s.UpVotes)
	}
}

func TestVoteStatement_BadDirection(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/statements/x/vote", bytes.NewBufferString(`{"direction":"sideways"}`))
	req.SetPathValue("statementID", "x")
	w := httptest.NewRecorder()

	h.VoteStatement(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCancelDebate_NotFound(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/debates/nope/cancel", nil)
	req.SetPathValue("debateID", "nope")
	w := httptest.NewRecorder()

	h.CancelDebate(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStreamEvents_UnknownDebate(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/debates/nope/events/stream", nil)
	req.SetPathValue("debateID", "nope")
	w := httptest.NewRecorder()

	h.StreamEvents(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestFormatListenURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{":9820", "http://localhost:9820"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000"},
	}
	for _, c := range cases {
		if got := FormatListenURL(c.in); got != c.want {
			t.Errorf("FormatListenURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
