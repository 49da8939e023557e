package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/anthropics/debate-arena/internal/domain"
)

// AgentRepo handles persistence for AgentPersonality records.
type AgentRepo struct{}

// Create inserts a new agent personality.
func (r *AgentRepo) Create(ctx context.Context, db *sql.DB, a domain.AgentPersonality, nowUnix int64) error {
	const q = `INSERT INTO agents (agent_id, name, description, stance_prompt, temperature, max_tokens, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q, a.ID, a.Name, a.Description, a.StancePrompt, a.Temperature, a.MaxTokens, nowUnix)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateAgent
		}
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// Ensure inserts an agent personality if it does not already exist.
func (r *AgentRepo) Ensure(ctx context.Context, db *sql.DB, a domain.AgentPersonality, nowUnix int64) error {
	const q = `INSERT OR IGNORE INTO agents (agent_id, name, description, stance_prompt, temperature, max_tokens, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q, a.ID, a.Name, a.Description, a.StancePrompt, a.Temperature, a.MaxTokens, nowUnix)
	if err != nil {
		return fmt.Errorf("ensure agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent personality by ID.
func (r *AgentRepo) GetByID(ctx context.Context, db *sql.DB, agentID string) (*domain.AgentPersonality, error) {
	const q = `SELECT agent_id, name, description, stance_prompt, temperature, max_tokens
FROM agents WHERE agent_id = ?`

	row := db.QueryRowContext(ctx, q, agentID)

	var a domain.AgentPersonality
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.StancePrompt, &a.Temperature, &a.MaxTokens)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUnknownAgent
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}

// List returns all agent personalities ordered by ID.
func (r *AgentRepo) List(ctx context.Context, db *sql.DB) ([]domain.AgentPersonality, error) {
	const q = `SELECT agent_id, name, description, stance_prompt, temperature, max_tokens
FROM agents ORDER BY agent_id`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.AgentPersonality
	for rows.Next() {
		var a domain.AgentPersonality
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.StancePrompt, &a.Temperature, &a.MaxTokens); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
