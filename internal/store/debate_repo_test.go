package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/anthropics/debate-arena/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDebateRepo_CreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := &DebateRepo{}

	d := domain.Debate{
		ID:            "deb-001",
		DocumentID:    "doc-001",
		Title:         "Proposal review",
		TotalRounds:   3,
		Status:        domain.DebateCreated,
		Participants:  []string{"skeptic", "optimist"},
		StateVersion:  1,
		CreatedAtUnix: 100,
		UpdatedAtUnix: 100,
	}
	if err := repo.Create(ctx, db, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, db, "deb-001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Proposal review" {
		t.Errorf("Title = %q, want %q", got.Title, "Proposal review")
	}
	if got.Status != domain.DebateCreated {
		t.Errorf("Status = %q, want %q", got.Status, domain.DebateCreated)
	}
	if got.TotalRounds != 3 {
		t.Errorf("TotalRounds = %d, want 3", got.TotalRounds)
	}
	if len(got.Participants) != 2 || got.Participants[0] != "skeptic" {
		t.Errorf("Participants = %v, want [skeptic optimist]", got.Participants)
	}
	if got.StateVersion != 1 {
		t.Errorf("StateVersion = %d, want 1", got.StateVersion)
	}
}

func TestDebateRepo_GetByID_NotFound(t *testing.T) {
	db := testDB(t)
	repo := &DebateRepo{}

	_, err := repo.GetByID(context.Background(), db, "nonexistent")
	if !errors.Is(err, domain.ErrDebateNotFound) {
		t.Errorf("expected ErrDebateNotFound, got %v", err)
	}
}

func TestDebateRepo_DuplicateCreate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := &DebateRepo{}

	d := domain.Debate{ID: "deb-dup", DocumentID: "doc", Status: domain.DebateCreated, StateVersion: 1}
	if err := repo.Create(ctx, db, d); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := repo.Create(ctx, db, d); !errors.Is(err, domain.ErrDuplicateDebate) {
		t.Errorf("expected ErrDuplicateDebate, got %v", err)
	}
}

func TestDebateRepo_Update_OptimisticLock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := &DebateRepo{}

	d := domain.Debate{
		ID:           "deb-002",
		DocumentID:   "doc",
		Status:       domain.DebateCreated,
		StateVersion: 1,
	}
	if err := repo.Create(ctx, db, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Update with correct version succeeds and bumps state_version.
	d.Status = domain.DebateRunning
	if err := repo.Update(ctx, db, d); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, db, "deb-002")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.DebateRunning {
		t.Errorf("Status = %q, want %q", got.Status, domain.DebateRunning)
	}
	if got.StateVersion != 2 {
		t.Errorf("StateVersion = %d, want 2", got.StateVersion)
	}

	// Update with stale version fails.
	d.Status = domain.DebateCompleted
	// d.StateVersion is still 1 but DB is now 2.
	if err := repo.Update(ctx, db, d); !errors.Is(err, domain.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}
}

func TestDebateRepo_List(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := &DebateRepo{}

	for i, id := range []string{"deb-a", "deb-b", "deb-c"} {
		d := domain.Debate{
			ID:            id,
			DocumentID:    "doc",
			Status:        domain.DebateCreated,
			StateVersion:  1,
			CreatedAtUnix: int64(100 + i),
		}
		if err := repo.Create(ctx, db, d); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	list, err := repo.List(ctx, db)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	// Most recent first.
	if list[0].ID != "deb-c" {
		t.Errorf("list[0].ID = %q, want deb-c", list[0].ID)
	}
}
