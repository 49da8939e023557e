// Package agents provides the registry of debate agent personalities.
package agents

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/store"
)

// Registry looks up immutable agent personalities by identifier.
// Personalities are flat configuration records; behavior differs only by
// prompt content and sampling parameters.
type Registry struct {
	DB   *sql.DB
	Repo *store.AgentRepo
}

// NewRegistry creates a Registry backed by the given database.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{DB: db, Repo: &store.AgentRepo{}}
}

// Get returns the personality for an agent ID, or ErrUnknownAgent.
func (r *Registry) Get(ctx context.Context, agentID string) (*domain.AgentPersonality, error) {
	return r.Repo.GetByID(ctx, r.DB, agentID)
}

// List returns all registered personalities.
func (r *Registry) List(ctx context.Context) ([]domain.AgentPersonality, error) {
	return r.Repo.List(ctx, r.DB)
}

// Create registers a new personality.
func (r *Registry) Create(ctx context.Context, a domain.AgentPersonality) error {
	if a.ID == "" || a.Name == "" || a.StancePrompt == "" {
		return domain.NewArenaError(domain.ErrConfigInvalid.Code, "agent requires id, name, and stance prompt")
	}
	return r.Repo.Create(ctx, r.DB, a, time.Now().Unix())
}

// EnsureDefaults seeds the panel of default personalities. Existing rows are
// left untouched, so operator-tuned prompts survive restarts.
func (r *Registry) EnsureDefaults(ctx context.Context) error {
	for _, a := range DefaultPersonalities() {
		if err := r.Repo.Ensure(ctx, r.DB, a, time.Now().Unix()); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.ID, err)
		}
	}
	return nil
}

// DefaultPersonalities returns the built-in five-agent panel.
func DefaultPersonalities() []domain.AgentPersonality {
	return []domain.AgentPersonality{
		{
			ID:          "skeptic",
			Name:        "The Skeptic",
			Description: "Questions every claim and demands evidence.",
			StancePrompt: "You are a rigorous skeptic. Challenge the document's claims and the " +
				"other debaters' arguments. Point out missing evidence, logical gaps, and " +
				"unstated assumptions. Concede only when the evidence is explicit.",
			Temperature: 0.6,
			MaxTokens:   1000,
		},
		{
			ID:          "optimist",
			Name:        "The Optimist",
			Description: "Finds the strongest favorable reading.",
			StancePrompt: "You are a principled optimist. Argue for the most constructive " +
				"interpretation of the document and highlight opportunities the other " +
				"debaters overlook. Stay grounded in the text; do not invent facts.",
			Temperature: 0.8,
			MaxTokens:   1000,
		},
		{
			ID:          "technical",
			Name:        "The Technologist",
			Description: "Focuses on mechanisms, feasibility, and detail.",
			StancePrompt: "You are a technical analyst. Evaluate the document's claims on " +
				"feasibility and mechanism. Be precise, cite specifics from the excerpt, " +
				"and correct technical errors made by other debaters.",
			Temperature: 0.5,
			MaxTokens:   1200,
		},
		{
			ID:          "creative",
			Name:        "The Contrarian",
			Description: "Offers unexpected angles and analogies.",
			StancePrompt: "You are a creative contrarian. Reframe the discussion with " +
				"unexpected angles, analogies, and counterfactuals. Push the debate out of " +
				"local minima, but keep every argument tied to the document.",
			Temperature: 1.0,
			MaxTokens:   1000,
		},
		{
			ID:          "pragmatist",
			Name:        "The Pragmatist",
			Description: "Weighs costs, trade-offs, and what ships.",
			StancePrompt: "You are a pragmatist. Judge every argument by practical " +
				"consequences: cost, risk, and what can actually be executed. Cut through " +
				"abstract disputes with concrete trade-offs.",
			Temperature: 0.7,
			MaxTokens:   900,
		},
	}
}
