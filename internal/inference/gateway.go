// Package inference adapts agent generation requests to an OpenAI-compatible
// chat completion service. It is the only component in the engine that
// performs network I/O.
package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/prompt"
)

const summarizeSystemPrompt = "You compress debate history. Rewrite the " +
	"given transcript as a dense third-person summary that preserves each " +
	"speaker's position and the strongest points of contention. Output only " +
	"the summary."

// Gateway issues generation and summarization calls with retry, backoff,
// and transient/permanent error classification.
type Gateway struct {
	backend completer
	retry   RetryPolicy
}

// NewGateway creates a Gateway for the given OpenAI-compatible client and model.
func NewGateway(client *openai.Client, model string, retry RetryPolicy) *Gateway {
	return &Gateway{
		backend: &openaiCompleter{client: client, model: model},
		retry:   retry,
	}
}

// newGatewayWith wires an arbitrary backend; used by tests.
func newGatewayWith(backend completer, retry RetryPolicy) *Gateway {
	return &Gateway{backend: backend, retry: retry}
}

// Generate streams one statement for the given prompt and personality.
// Each received fragment is passed to emit in arrival order; the final text
// and token count are returned once the stream completes. Transient failures
// are retried with exponential backoff until the attempt ceiling — but only
// while no fragment has been emitted yet, since a partially observed stream
// cannot be restarted. Permanent failures surface immediately.
func (g *Gateway) Generate(ctx context.Context, pctx domain.PromptContext, p domain.AgentPersonality, emit func(fragment string)) (domain.GenerationResult, error) {
	req := request{
		System:      pctx.System,
		User:        pctx.User,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		res, emitted, err := g.attempt(ctx, req, emit)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if emitted {
			return domain.GenerationResult{}, domain.WrapArenaError(
				domain.ErrInferenceUnavailable.Code, "stream interrupted mid-statement", err)
		}
		if !isTransient(err) {
			return domain.GenerationResult{}, domain.WrapArenaError(
				domain.ErrInferenceRejected.Code, "generation rejected", err)
		}
		if attempt < g.retry.MaxAttempts {
			if serr := g.retry.sleep(ctx, attempt); serr != nil {
				return domain.GenerationResult{}, domain.WrapArenaError(
					domain.ErrInferenceUnavailable.Code, "generation cancelled during backoff", serr)
			}
		}
	}

	return domain.GenerationResult{}, domain.WrapArenaError(
		domain.ErrInferenceUnavailable.Code,
		fmt.Sprintf("generation failed after %d attempts", g.retry.MaxAttempts), lastErr)
}

// attempt runs a single streaming call. It reports whether any fragment was
// emitted so the caller can decide if a retry is safe.
func (g *Gateway) attempt(ctx context.Context, req request, emit func(string)) (domain.GenerationResult, bool, error) {
	stream := g.backend.stream(ctx, req)
	defer stream.Close()

	var text strings.Builder
	var usage openai.CompletionUsage
	emitted := false

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if s := chunk.Choices[0].Delta.Content; s != "" {
			text.WriteString(s)
			emitted = true
			if emit != nil {
				emit(s)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return domain.GenerationResult{}, emitted, err
	}

	out := text.String()
	if strings.TrimSpace(out) == "" {
		return domain.GenerationResult{}, emitted, domain.ErrEmptyCompletion
	}

	tokens := int(usage.CompletionTokens)
	if tokens == 0 {
		tokens = prompt.EstimateTokens(out)
	}
	return domain.GenerationResult{Text: out, TokenCount: tokens}, emitted, nil
}

// Summarize compacts a debate history text through a non-streaming call,
// subject to the same retry policy as Generate.
func (g *Gateway) Summarize(ctx context.Context, text string) (string, error) {
	req := request{
		System:      summarizeSystemPrompt,
		User:        text,
		Temperature: 0.3,
	}

	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		resp, err := g.backend.complete(ctx, req)
		if err == nil {
			if len(resp.Choices) > 0 {
				if out := strings.TrimSpace(resp.Choices[0].Message.Content); out != "" {
					return out, nil
				}
			}
			// An empty summary is retried like any other transient fault.
			err = domain.ErrEmptyCompletion
		}
		lastErr = err

		if !isTransient(err) {
			return "", domain.WrapArenaError(domain.ErrInferenceRejected.Code, "summarization rejected", err)
		}
		if attempt < g.retry.MaxAttempts {
			if serr := g.retry.sleep(ctx, attempt); serr != nil {
				return "", domain.WrapArenaError(
					domain.ErrInferenceUnavailable.Code, "summarization cancelled during backoff", serr)
			}
		}
	}

	return "", domain.WrapArenaError(
		domain.ErrInferenceUnavailable.Code,
		fmt.Sprintf("summarization failed after %d attempts", g.retry.MaxAttempts), lastErr)
}
