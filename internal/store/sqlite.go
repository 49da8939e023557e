// Package store provides SQLite-backed persistence for the Debate Arena engine.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS debates (
	debate_id         TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL,
	title             TEXT NOT NULL,
	total_rounds      INTEGER NOT NULL,
	status            TEXT NOT NULL DEFAULT 'created',
	participants_json TEXT NOT NULL DEFAULT '[]',
	failure_cause     TEXT NOT NULL DEFAULT '',
	state_version     INTEGER NOT NULL DEFAULT 1,
	created_at_unix   INTEGER NOT NULL DEFAULT 0,
	updated_at_unix   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS statements (
	statement_id      TEXT PRIMARY KEY,
	debate_id         TEXT NOT NULL,
	agent_id          TEXT NOT NULL,
	round_index       INTEGER NOT NULL,
	text              TEXT NOT NULL DEFAULT '',
	token_count       INTEGER NOT NULL DEFAULT 0,
	outcome           TEXT NOT NULL,
	up_votes          INTEGER NOT NULL DEFAULT 0,
	down_votes        INTEGER NOT NULL DEFAULT 0,
	started_at_unix   INTEGER NOT NULL DEFAULT 0,
	completed_at_unix INTEGER NOT NULL DEFAULT 0,
	UNIQUE(debate_id, round_index, agent_id)
);
CREATE INDEX IF NOT EXISTS idx_statements_debate_round ON statements(debate_id, round_index);

CREATE TABLE IF NOT EXISTS agents (
	agent_id        TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	stance_prompt   TEXT NOT NULL,
	temperature     REAL NOT NULL DEFAULT 0.7,
	max_tokens      INTEGER NOT NULL DEFAULT 1000,
	created_at_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
	document_id     TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at_unix INTEGER NOT NULL DEFAULT 0
);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
