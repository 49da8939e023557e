// Package domain defines the core types for the Debate Arena engine.
package domain

// DebateStatus represents the lifecycle state of a debate.
type DebateStatus string

const (
	DebateCreated   DebateStatus = "created"
	DebateRunning   DebateStatus = "running"
	DebateCompleted DebateStatus = "completed"
	DebateFailed    DebateStatus = "failed"
	DebateCancelled DebateStatus = "cancelled"
)

// IsTerminal reports whether the status is absorbing. A debate in a
// terminal status never transitions again; rerunning requires a new debate.
func (s DebateStatus) IsTerminal() bool {
	return s == DebateCompleted || s == DebateFailed || s == DebateCancelled
}

// StatementOutcome marks how a statement generation ended.
type StatementOutcome string

const (
	StatementOK     StatementOutcome = "ok"
	StatementFailed StatementOutcome = "failed"
)

// EventKind classifies debate events.
type EventKind string

const (
	EventFragment      EventKind = "fragment"
	EventStatementDone EventKind = "statement_done"
	EventAgentFailed   EventKind = "agent_failed"
	EventRoundDone     EventKind = "round_done"
	EventDebateDone    EventKind = "debate_done"
)

// AgentPersonality is the immutable identity of a debate agent. Behavior
// differs only by prompt content and sampling parameters, never by code path.
type AgentPersonality struct {
	ID           string
	Name         string
	Description  string
	StancePrompt string
	Temperature  float64
	MaxTokens    int
}

// Debate holds the persistent state of one debate.
type Debate struct {
	ID            string
	DocumentID    string
	Title         string
	TotalRounds   int
	Status        DebateStatus
	Participants  []string
	FailureCause  string
	StateVersion  int64
	CreatedAtUnix int64
	UpdatedAtUnix int64
}

// Statement is one agent's contribution in one round. Exactly one statement
// exists per (debate, round, agent) and it is immutable once Outcome is set;
// only the vote tallies may change afterwards.
type Statement struct {
	ID              string
	DebateID        string
	AgentID         string
	RoundIndex      int
	Text            string
	TokenCount      int
	Outcome         StatementOutcome
	UpVotes         int
	DownVotes       int
	StartedAtUnix   int64
	CompletedAtUnix int64
}

// Round groups the statements of one synchronized turn.
type Round struct {
	DebateID   string
	Index      int
	Statements []Statement
}

// ContextFrame is the runtime-only bounded history for one debate. The
// verbatim tail holds at most the window-size most recent rounds; everything
// older is represented solely by the rolling summary.
type ContextFrame struct {
	DocumentExcerpt string
	RollingSummary  string
	VerbatimTail    []Round
}

// PromptContext is the assembled prompt for a single generation call.
type PromptContext struct {
	System          string
	User            string
	EstimatedTokens int
}

// GenerationResult is the final metadata of a completed generation stream.
type GenerationResult struct {
	Text       string
	TokenCount int
}

// DebateEvent is an ephemeral observation event. Statements are the durable
// record; events exist only to feed live subscribers.
type DebateEvent struct {
	DebateID      string
	Seq           int64
	RoundIndex    int
	AgentID       string
	Kind          EventKind
	Payload       string
	Gapped        bool
	CreatedAtUnix int64
}
