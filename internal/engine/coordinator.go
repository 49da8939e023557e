package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/prompt"
	"github.com/anthropics/debate-arena/internal/store"
)

// Generator produces one streamed statement per call. The inference gateway
// is the production implementation.
type Generator interface {
	Generate(ctx context.Context, pctx domain.PromptContext, p domain.AgentPersonality, emit func(fragment string)) (domain.GenerationResult, error)
}

// EventPublisher receives the ephemeral observation events of a running debate.
type EventPublisher interface {
	Publish(ev domain.DebateEvent)
}

// RoundCoordinator executes one debate round: a concurrent fan-out of
// generation calls over the participant panel, joined at a barrier before
// the round is persisted and the next may start.
type RoundCoordinator struct {
	DB         *sql.DB
	Statements *store.StatementRepo
	Gateway    Generator
	Window     *prompt.Manager
	Events     EventPublisher

	// AbortFailureRatio is the fraction of failed participants above which
	// the round reports DebateFailed. 0.5 means a strict majority aborts.
	AbortFailureRatio float64
	// AgentTimeout bounds each individual generation call.
	AgentTimeout time.Duration
}

// RunRound generates one statement per panel member concurrently. Every
// member works from the same frame snapshot; nobody sees another's output
// until the round completes. The call returns only after every participant
// reached a terminal outcome and the full round is persisted.
//
// A single agent failing yields a failed statement, not an error. RunRound
// errors only when the failure threshold is exceeded (ErrDebateFailed), the
// transcript write fails (ErrPersistenceFailure), or the round is abandoned
// by cancellation before the barrier (ErrRoundAborted).
func (c *RoundCoordinator) RunRound(ctx context.Context, debate *domain.Debate, roundIndex int, frame domain.ContextFrame, panel []domain.AgentPersonality) (domain.Round, error) {
	results := make([]domain.Statement, len(panel))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range panel {
		i, p := i, p
		g.Go(func() error {
			results[i] = c.generateStatement(gctx, debate.ID, roundIndex, frame, p)
			return nil
		})
	}
	// Workers never return errors; Wait is purely the round barrier.
	_ = g.Wait()

	if ctx.Err() != nil {
		return domain.Round{}, domain.WrapArenaError(domain.ErrRoundAborted.Code,
			fmt.Sprintf("round %d abandoned", roundIndex), ctx.Err())
	}

	round := domain.Round{DebateID: debate.ID, Index: roundIndex, Statements: results}
	if err := c.persistRound(ctx, round); err != nil {
		return domain.Round{}, err
	}

	failed := 0
	for _, s := range results {
		if s.Outcome == domain.StatementFailed {
			failed++
		}
	}

	c.Events.Publish(domain.DebateEvent{
		DebateID:   debate.ID,
		RoundIndex: roundIndex,
		Kind:       domain.EventRoundDone,
		Payload:    mustJSON(roundDonePayload{RoundIndex: roundIndex, Failed: failed}),
	})

	if failed > 0 && float64(failed) > c.AbortFailureRatio*float64(len(panel)) {
		return round, domain.WrapArenaError(domain.ErrDebateFailed.Code,
			fmt.Sprintf("round %d: %d of %d agents failed", roundIndex, failed, len(panel)),
			domain.ErrDebateFailed)
	}
	return round, nil
}

// generateStatement runs one agent's generation call to a terminal outcome.
// Failures are folded into a FAILED statement, never propagated.
func (c *RoundCoordinator) generateStatement(ctx context.Context, debateID string, roundIndex int, frame domain.ContextFrame, p domain.AgentPersonality) domain.Statement {
	if c.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.AgentTimeout)
		defer cancel()
	}

	pctx := c.Window.Assemble(frame, p, roundIndex)

	st := domain.Statement{
		ID:            uuid.NewString(),
		DebateID:      debateID,
		AgentID:       p.ID,
		RoundIndex:    roundIndex,
		StartedAtUnix: time.Now().Unix(),
	}

	res, err := c.Gateway.Generate(ctx, pctx, p, func(fragment string) {
		c.Events.Publish(domain.DebateEvent{
			DebateID:   debateID,
			RoundIndex: roundIndex,
			AgentID:    p.ID,
			Kind:       domain.EventFragment,
			Payload:    fragment,
		})
	})
	st.CompletedAtUnix = time.Now().Unix()

	if err != nil {
		st.Outcome = domain.StatementFailed
		c.Events.Publish(domain.DebateEvent{
			DebateID:   debateID,
			RoundIndex: roundIndex,
			AgentID:    p.ID,
			Kind:       domain.EventAgentFailed,
			Payload:    mustJSON(statementPayload(st, err.Error())),
		})
		return st
	}

	st.Text = res.Text
	st.TokenCount = res.TokenCount
	st.Outcome = domain.StatementOK
	c.Events.Publish(domain.DebateEvent{
		DebateID:   debateID,
		RoundIndex: roundIndex,
		AgentID:    p.ID,
		Kind:       domain.EventStatementDone,
		Payload:    mustJSON(statementPayload(st, "")),
	})
	return st
}

func (c *RoundCoordinator) persistRound(ctx context.Context, round domain.Round) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapArenaError(domain.ErrPersistenceFailure.Code, "begin transcript tx", err)
	}
	defer tx.Rollback()

	for _, s := range round.Statements {
		if err := c.Statements.AppendTx(ctx, tx, s); err != nil {
			return domain.WrapArenaError(domain.ErrPersistenceFailure.Code, "append statement", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapArenaError(domain.ErrPersistenceFailure.Code, "commit transcript tx", err)
	}
	return nil
}
