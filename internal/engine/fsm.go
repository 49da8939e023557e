// Package engine drives debates: the state machine that sequences rounds and
// the coordinator that fans each round out across the agent panel.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/prompt"
	"github.com/anthropics/debate-arena/internal/store"
)

// AgentSource resolves agent personalities by ID.
type AgentSource interface {
	Get(ctx context.Context, agentID string) (*domain.AgentPersonality, error)
}

// DocumentSource provides budget-capped document excerpts.
type DocumentSource interface {
	Exists(ctx context.Context, documentID string) error
	GetExcerpt(ctx context.Context, documentID string, tokenBudget int) (string, error)
}

// Machine owns debate lifecycles. One running debate is driven by exactly
// one goroutine; debates never share mutable state with each other.
type Machine struct {
	DB          *sql.DB
	Debates     *store.DebateRepo
	Statements  *store.StatementRepo
	Agents      AgentSource
	Documents   DocumentSource
	Window      *prompt.Manager
	Coordinator *RoundCoordinator
	Events      EventPublisher

	// ExcerptTokens is the token budget handed to the document store.
	ExcerptTokens int
	// MaxPanel caps the number of participants in one debate; 0 means no cap.
	MaxPanel int

	mu      sync.Mutex
	active  map[string]*runHandle
	baseCtx context.Context
	cancel  context.CancelFunc
}

type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMachine creates a Machine wired to the given collaborators.
func NewMachine(db *sql.DB, agents AgentSource, documents DocumentSource, window *prompt.Manager, coordinator *RoundCoordinator, events EventPublisher, excerptTokens int) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		DB:            db,
		Debates:       &store.DebateRepo{},
		Statements:    &store.StatementRepo{},
		Agents:        agents,
		Documents:     documents,
		Window:        window,
		Coordinator:   coordinator,
		Events:        events,
		ExcerptTokens: excerptTokens,
		active:        make(map[string]*runHandle),
		baseCtx:       ctx,
		cancel:        cancel,
	}
}

// Create registers a new debate in the created state.
func (m *Machine) Create(ctx context.Context, title, documentID string, totalRounds int) (*domain.Debate, error) {
	if totalRounds <= 0 {
		return nil, domain.ErrInvalidRounds
	}
	if err := m.Documents.Exists(ctx, documentID); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	d := domain.Debate{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		Title:         title,
		TotalRounds:   totalRounds,
		Status:        domain.DebateCreated,
		Participants:  []string{},
		StateVersion:  1,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	if err := m.Debates.Create(ctx, m.DB, d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Start fixes the participant panel and moves the debate to running; rounds
// then execute on a background goroutine until a terminal state is reached.
// The participant list is validated and the document excerpt resolved before
// any state changes, so a failed Start leaves the debate in created.
func (m *Machine) Start(ctx context.Context, debateID string, participantIDs []string) error {
	d, err := m.Debates.GetByID(ctx, m.DB, debateID)
	if err != nil {
		return err
	}
	if d.Status != domain.DebateCreated {
		return domain.WrapArenaError(domain.ErrInvalidTransition.Code,
			fmt.Sprintf("cannot start debate in status %q", d.Status), domain.ErrInvalidTransition)
	}

	panel, err := m.resolvePanel(ctx, participantIDs)
	if err != nil {
		return err
	}

	excerpt, err := m.Documents.GetExcerpt(ctx, d.DocumentID, m.ExcerptTokens)
	if err != nil {
		return err
	}

	d.Status = domain.DebateRunning
	d.Participants = participantIDs
	d.UpdatedAtUnix = time.Now().Unix()
	if err := m.Debates.Update(ctx, m.DB, *d); err != nil {
		return err
	}
	d.StateVersion++

	runCtx, cancel := context.WithCancel(m.baseCtx)
	handle := &runHandle{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.active[debateID] = handle
	m.mu.Unlock()

	go m.run(runCtx, handle, *d, excerpt, panel)
	return nil
}

// resolvePanel validates the participant list and loads its personalities.
func (m *Machine) resolvePanel(ctx context.Context, ids []string) ([]domain.AgentPersonality, error) {
	if len(ids) == 0 {
		return nil, domain.NewArenaError(domain.ErrInvalidParticipants.Code, "participant list is empty")
	}
	if m.MaxPanel > 0 && len(ids) > m.MaxPanel {
		return nil, domain.NewArenaError(domain.ErrInvalidParticipants.Code,
			fmt.Sprintf("panel of %d exceeds the %d-agent limit", len(ids), m.MaxPanel))
	}

	seen := make(map[string]bool, len(ids))
	panel := make([]domain.AgentPersonality, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, domain.NewArenaError(domain.ErrInvalidParticipants.Code,
				fmt.Sprintf("duplicate participant %q", id))
		}
		seen[id] = true

		p, err := m.Agents.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownAgent) {
				return nil, domain.NewArenaError(domain.ErrInvalidParticipants.Code,
					fmt.Sprintf("unknown participant %q", id))
			}
			return nil, err
		}
		panel = append(panel, *p)
	}
	return panel, nil
}

// run executes all rounds of one debate sequentially. It is the only writer
// of the debate's state for the duration of the run.
func (m *Machine) run(ctx context.Context, handle *runHandle, d domain.Debate, excerpt string, panel []domain.AgentPersonality) {
	defer close(handle.done)
	defer m.forget(d.ID)
	defer handle.cancel()

	frame := domain.ContextFrame{DocumentExcerpt: excerpt}

	for i := 0; i < d.TotalRounds; i++ {
		// Cancellation is honored between rounds; completed rounds stay
		// intact in the transcript.
		if ctx.Err() != nil {
			m.finish(&d, domain.DebateCancelled, "cancelled before round completion")
			return
		}

		round, err := m.Coordinator.RunRound(ctx, &d, i, frame, panel)
		if err != nil {
			if ctx.Err() != nil {
				m.finish(&d, domain.DebateCancelled, "cancelled before round completion")
			} else {
				m.finish(&d, domain.DebateFailed, err.Error())
			}
			return
		}

		frame = m.Window.Fold(ctx, frame, round)
	}

	m.finish(&d, domain.DebateCompleted, "")
}

// finish records the terminal status and emits the DebateDone event.
func (m *Machine) finish(d *domain.Debate, status domain.DebateStatus, cause string) {
	d.Status = status
	d.FailureCause = cause
	d.UpdatedAtUnix = time.Now().Unix()

	// The terminal write must not be lost to the cancelled run context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Debates.Update(ctx, m.DB, *d); err != nil {
		cause = fmt.Sprintf("%s (terminal status write failed: %v)", cause, err)
	}

	m.Events.Publish(domain.DebateEvent{
		DebateID:   d.ID,
		RoundIndex: -1,
		Kind:       domain.EventDebateDone,
		Payload:    mustJSON(DebateDonePayload{Status: string(status), Cause: cause}),
	})
}

// Cancel requests cooperative cancellation of a debate. A running debate
// stops at the next round boundary (in-flight generation calls are cancelled
// through their context); a created debate moves straight to cancelled.
func (m *Machine) Cancel(ctx context.Context, debateID string) error {
	m.mu.Lock()
	handle, running := m.active[debateID]
	m.mu.Unlock()

	if running {
		handle.cancel()
		return nil
	}

	d, err := m.Debates.GetByID(ctx, m.DB, debateID)
	if err != nil {
		return err
	}
	if d.Status.IsTerminal() {
		return domain.ErrDebateAlreadyDone
	}
	if d.Status != domain.DebateCreated {
		return domain.ErrDebateNotRunning
	}

	m.finish(d, domain.DebateCancelled, "cancelled before start")
	return nil
}

// Done returns a channel that closes when the debate's run goroutine exits.
// For debates that are not running, the returned channel is already closed.
func (m *Machine) Done(debateID string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if handle, ok := m.active[debateID]; ok {
		return handle.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Close cancels all running debates and waits for their goroutines to exit.
func (m *Machine) Close() {
	m.cancel()

	m.mu.Lock()
	handles := make([]*runHandle, 0, len(m.active))
	for _, h := range m.active {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		<-h.done
	}
}

func (m *Machine) forget(debateID string) {
	m.mu.Lock()
	delete(m.active, debateID)
	m.mu.Unlock()
}

// Get returns a debate by ID.
func (m *Machine) Get(ctx context.Context, debateID string) (*domain.Debate, error) {
	return m.Debates.GetByID(ctx, m.DB, debateID)
}

// List returns all debates, newest first.
func (m *Machine) List(ctx context.Context) ([]domain.Debate, error) {
	return m.Debates.List(ctx, m.DB)
}

// Transcript returns the ordered rounds of ordered statements for a debate.
// The transcript is readable at any time, including for running and failed
// debates; failed statements appear with their failure outcome rather than
// being silently absent. Statements within a round follow the participant
// order fixed at start.
func (m *Machine) Transcript(ctx context.Context, debateID string) ([]domain.Round, error) {
	d, err := m.Debates.GetByID(ctx, m.DB, debateID)
	if err != nil {
		return nil, err
	}

	statements, err := m.Statements.ListByDebate(ctx, m.DB, debateID)
	if err != nil {
		return nil, err
	}

	pos := make(map[string]int, len(d.Participants))
	for i, id := range d.Participants {
		pos[id] = i
	}

	byRound := make(map[int][]domain.Statement)
	for _, s := range statements {
		byRound[s.RoundIndex] = append(byRound[s.RoundIndex], s)
	}

	indices := make([]int, 0, len(byRound))
	for idx := range byRound {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	rounds := make([]domain.Round, 0, len(indices))
	for _, idx := range indices {
		group := byRound[idx]
		sort.SliceStable(group, func(a, b int) bool {
			return pos[group[a].AgentID] < pos[group[b].AgentID]
		})
		rounds = append(rounds, domain.Round{DebateID: debateID, Index: idx, Statements: group})
	}
	return rounds, nil
}
