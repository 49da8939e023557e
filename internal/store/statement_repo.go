package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/debate-arena/internal/domain"
)

// StatementRepo handles persistence for the append-only statement transcript.
type StatementRepo struct{}

// AppendTx inserts a finalized statement within an existing transaction.
// Statements are never updated after insertion except for vote tallies.
func (r *StatementRepo) AppendTx(ctx context.Context, tx *sql.Tx, s domain.Statement) error {
	const q = `INSERT INTO statements (statement_id, debate_id, agent_id, round_index, text, token_count, outcome, up_votes, down_votes, started_at_unix, completed_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		s.ID,
		s.DebateID,
		s.AgentID,
		s.RoundIndex,
		s.Text,
		s.TokenCount,
		string(s.Outcome),
		s.UpVotes,
		s.DownVotes,
		s.StartedAtUnix,
		s.CompletedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("append statement: %w", err)
	}
	return nil
}

// GetByID retrieves a single statement.
func (r *StatementRepo) GetByID(ctx context.Context, db *sql.DB, statementID string) (*domain.Statement, error) {
	const q = `SELECT statement_id, debate_id, agent_id, round_index, text, token_count, outcome, up_votes, down_votes, started_at_unix, completed_at_unix
FROM statements WHERE statement_id = ?`

	row := db.QueryRowContext(ctx, q, statementID)
	s, err := scanStatement(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrStatementNotFound
		}
		return nil, fmt.Errorf("get statement: %w", err)
	}
	return s, nil
}

// ListByDebate returns every statement of a debate ordered by round index.
// Ordering within a round follows insertion order; callers that need the
// participant order regroup by the debate's participant list.
func (r *StatementRepo) ListByDebate(ctx context.Context, db *sql.DB, debateID string) ([]domain.Statement, error) {
	const q = `SELECT statement_id, debate_id, agent_id, round_index, text, token_count, outcome, up_votes, down_votes, started_at_unix, completed_at_unix
FROM statements WHERE debate_id = ? ORDER BY round_index ASC, rowid ASC`

	rows, err := db.QueryContext(ctx, q, debateID)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var statements []domain.Statement
	for rows.Next() {
		s, err := scanStatement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		statements = append(statements, *s)
	}
	return statements, rows.Err()
}

// Vote increments one of a statement's vote tallies.
func (r *StatementRepo) Vote(ctx context.Context, db *sql.DB, statementID string, up bool) error {
	q := `UPDATE statements SET down_votes = down_votes + 1 WHERE statement_id = ?`
	if up {
		q = `UPDATE statements SET up_votes = up_votes + 1 WHERE statement_id = ?`
	}

	res, err := db.ExecContext(ctx, q, statementID)
	if err != nil {
		return fmt.Errorf("vote statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrStatementNotFound
	}
	return nil
}

func scanStatement(scan func(...any) error) (*domain.Statement, error) {
	var s domain.Statement
	var outcome string
	err := scan(&s.ID, &s.DebateID, &s.AgentID, &s.RoundIndex, &s.Text, &s.TokenCount,
		&outcome, &s.UpVotes, &s.DownVotes, &s.StartedAtUnix, &s.CompletedAtUnix)
	if err != nil {
		return nil, err
	}
	s.Outcome = domain.StatementOutcome(outcome)
	return &s, nil
}
