// Package prompt implements the bounded context window for debate prompts.
// It is a pure data-transform layer: the only I/O it performs is the
// summarization call delegated to its Summarizer when the verbatim window
// slides.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/debate-arena/internal/domain"
)

// BytesPerToken is the estimation ratio between UTF-8 bytes and tokens.
const BytesPerToken = 4

// EstimateTokens estimates the token cost of a text in token units.
func EstimateTokens(s string) int {
	return (len(s) + BytesPerToken - 1) / BytesPerToken
}

// Summarizer compacts debate history into a shorter text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Manager assembles prompt contexts and folds completed rounds into a
// bounded history frame.
type Manager struct {
	// WindowRounds is the number of most recent rounds kept verbatim.
	WindowRounds int
	// TokenBudget caps the estimated size of an assembled prompt.
	TokenBudget int
	// FallbackChars is the per-statement character budget used by the
	// deterministic compaction when the summarizer is unavailable.
	FallbackChars int
	Summarizer    Summarizer
}

// NewManager creates a Manager with the given window size and token budget.
func NewManager(windowRounds, tokenBudget int, s Summarizer) *Manager {
	return &Manager{
		WindowRounds:  windowRounds,
		TokenBudget:   tokenBudget,
		FallbackChars: 200,
		Summarizer:    s,
	}
}

// Assemble builds the prompt context for one agent's generation call in the
// given round. Sections are concatenated in fixed order: persona, document
// excerpt, rolling summary, verbatim tail, turn marker. If the estimate
// exceeds the budget the document excerpt is truncated first, then the
// rolling summary, then tail rounds from oldest to newest. The most recent
// round is never cut.
func (m *Manager) Assemble(frame domain.ContextFrame, p domain.AgentPersonality, roundIndex int) domain.PromptContext {
	system := p.StancePrompt + "\n\n" +
		"You are one voice in a multi-agent debate about a document. " +
		"Respond with a single statement for the current round. " +
		"React to the most recent exchange; do not repeat yourself."

	excerpt := frame.DocumentExcerpt
	summary := frame.RollingSummary
	tail := renderTail(frame.VerbatimTail)

	marker := fmt.Sprintf("--- Round %d ---\nIt is your turn, %s. Your statement:", roundIndex+1, p.Name)

	fixed := EstimateTokens(system) + EstimateTokens(marker) + sectionOverheadTokens
	budget := m.TokenBudget - fixed

	// Most recent round is untouchable; size the rest around it.
	last := ""
	if len(tail) > 0 {
		last = tail[len(tail)-1]
	}
	budget -= EstimateTokens(last)

	older := tail[:max(len(tail)-1, 0)]
	olderText := strings.Join(older, "\n")

	need := EstimateTokens(excerpt) + EstimateTokens(summary) + EstimateTokens(olderText)
	if need > budget {
		keep := budget - EstimateTokens(summary) - EstimateTokens(olderText)
		excerpt = truncateTokens(excerpt, keep)
		need = EstimateTokens(excerpt) + EstimateTokens(summary) + EstimateTokens(olderText)
	}
	if need > budget {
		keep := budget - EstimateTokens(olderText)
		summary = truncateTokens(summary, keep)
		need = EstimateTokens(summary) + EstimateTokens(olderText)
	}
	if need > budget {
		olderText = truncateTokens(olderText, budget)
	}

	var b strings.Builder
	if excerpt != "" {
		b.WriteString("== Document under debate ==\n")
		b.WriteString(excerpt)
		b.WriteString("\n\n")
	}
	if summary != "" {
		b.WriteString("== Summary of earlier rounds ==\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if olderText != "" || last != "" {
		b.WriteString("== Recent rounds ==\n")
		if olderText != "" {
			b.WriteString(olderText)
			b.WriteString("\n")
		}
		if last != "" {
			b.WriteString(last)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(marker)

	user := b.String()
	return domain.PromptContext{
		System:          system,
		User:            user,
		EstimatedTokens: EstimateTokens(system) + EstimateTokens(user),
	}
}

// Fold appends a completed round to the frame's verbatim tail. When the tail
// grows past the window size, the oldest round is removed and merged into the
// rolling summary. The summarizer failure path falls back to a deterministic
// compaction so window maintenance never blocks the debate.
func (m *Manager) Fold(ctx context.Context, frame domain.ContextFrame, completed domain.Round) domain.ContextFrame {
	tail := make([]domain.Round, len(frame.VerbatimTail), len(frame.VerbatimTail)+1)
	copy(tail, frame.VerbatimTail)
	tail = append(tail, completed)

	next := domain.ContextFrame{
		DocumentExcerpt: frame.DocumentExcerpt,
		RollingSummary:  frame.RollingSummary,
		VerbatimTail:    tail,
	}

	for len(next.VerbatimTail) > m.WindowRounds {
		oldest := next.VerbatimTail[0]
		next.VerbatimTail = next.VerbatimTail[1:]
		next.RollingSummary = m.merge(ctx, next.RollingSummary, oldest)
	}
	return next
}

// merge folds a dropped round into the rolling summary.
func (m *Manager) merge(ctx context.Context, summary string, dropped domain.Round) string {
	input := renderRound(dropped)
	if summary != "" {
		input = summary + "\n" + input
	}

	if m.Summarizer != nil {
		out, err := m.Summarizer.Summarize(ctx, input)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
	}
	return m.compact(summary, dropped)
}

// compact is the non-LLM fallback: the head of every dropped statement is
// kept verbatim and appended to the existing summary.
func (m *Manager) compact(summary string, dropped domain.Round) string {
	var b strings.Builder
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Round %d:", dropped.Index+1))
	for _, s := range dropped.Statements {
		if s.Outcome != domain.StatementOK {
			continue
		}
		b.WriteString(fmt.Sprintf(" [%s] %s", s.AgentID, headChars(s.Text, m.FallbackChars)))
	}
	return b.String()
}

func renderTail(rounds []domain.Round) []string {
	out := make([]string, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, renderRound(r))
	}
	return out
}

func renderRound(r domain.Round) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d:\n", r.Index+1)
	for _, s := range r.Statements {
		if s.Outcome == domain.StatementOK {
			fmt.Fprintf(&b, "[%s] %s\n", s.AgentID, s.Text)
		} else {
			fmt.Fprintf(&b, "[%s] (no statement this round)\n", s.AgentID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncateTokens cuts s down to the given token budget on a rune boundary.
func truncateTokens(s string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	limit := tokens * BytesPerToken
	if limit >= len(s) {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func headChars(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// sectionOverheadTokens accounts for the section headers added by Assemble.
const sectionOverheadTokens = 32
