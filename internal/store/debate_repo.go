package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/debate-arena/internal/domain"
)

// DebateRepo handles persistence for Debate records.
type DebateRepo struct{}

// Create inserts a new debate.
func (r *DebateRepo) Create(ctx context.Context, db *sql.DB, d domain.Debate) error {
	const q = `INSERT INTO debates (debate_id, document_id, title, total_rounds, status, participants_json, failure_cause, state_version, created_at_unix, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		d.ID,
		d.DocumentID,
		d.Title,
		d.TotalRounds,
		string(d.Status),
		marshalParticipants(d.Participants),
		d.FailureCause,
		d.StateVersion,
		d.CreatedAtUnix,
		d.UpdatedAtUnix,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateDebate
		}
		return fmt.Errorf("create debate: %w", err)
	}
	return nil
}

// Update writes a debate's mutable fields using optimistic locking. The
// update only succeeds if the current state_version matches the expected
// version carried by d.
func (r *DebateRepo) Update(ctx context.Context, db *sql.DB, d domain.Debate) error {
	const q = `UPDATE debates SET
		status = ?,
		participants_json = ?,
		failure_cause = ?,
		state_version = state_version + 1,
		updated_at_unix = ?
	WHERE debate_id = ? AND state_version = ?`

	res, err := db.ExecContext(ctx, q,
		string(d.Status),
		marshalParticipants(d.Participants),
		d.FailureCause,
		d.UpdatedAtUnix,
		d.ID,
		d.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update debate: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// GetByID retrieves a debate by its ID.
func (r *DebateRepo) GetByID(ctx context.Context, db *sql.DB, debateID string) (*domain.Debate, error) {
	const q = `SELECT debate_id, document_id, title, total_rounds, status, participants_json, failure_cause, state_version, created_at_unix, updated_at_unix
FROM debates WHERE debate_id = ?`

	row := db.QueryRowContext(ctx, q, debateID)
	d, err := scanDebate(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDebateNotFound
		}
		return nil, fmt.Errorf("get debate: %w", err)
	}
	return d, nil
}

// List returns all debates ordered by creation time descending.
func (r *DebateRepo) List(ctx context.Context, db *sql.DB) ([]domain.Debate, error) {
	const q = `SELECT debate_id, document_id, title, total_rounds, status, participants_json, failure_cause, state_version, created_at_unix, updated_at_unix
FROM debates ORDER BY created_at_unix DESC, debate_id`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list debates: %w", err)
	}
	defer rows.Close()

	var debates []domain.Debate
	for rows.Next() {
		d, err := scanDebate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan debate: %w", err)
		}
		debates = append(debates, *d)
	}
	return debates, rows.Err()
}

func scanDebate(scan func(...any) error) (*domain.Debate, error) {
	var d domain.Debate
	var status, participants string
	err := scan(&d.ID, &d.DocumentID, &d.Title, &d.TotalRounds, &status, &participants,
		&d.FailureCause, &d.StateVersion, &d.CreatedAtUnix, &d.UpdatedAtUnix)
	if err != nil {
		return nil, err
	}
	d.Status = domain.DebateStatus(status)
	if err := json.Unmarshal([]byte(participants), &d.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return &d, nil
}

func marshalParticipants(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}
