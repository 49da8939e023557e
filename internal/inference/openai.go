package inference

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

// request is a provider-neutral generation request.
type request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// fragmentStream is the subset of the SSE chunk stream the gateway consumes.
// *ssestream.Stream[openai.ChatCompletionChunk] satisfies it.
type fragmentStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// completer adapts a chat completion backend. The production implementation
// wraps the OpenAI client; tests substitute fakes.
type completer interface {
	stream(ctx context.Context, req request) fragmentStream
	complete(ctx context.Context, req request) (openai.ChatCompletion, error)
}

// openaiCompleter is the openai-go backed completer.
type openaiCompleter struct {
	client *openai.Client
	model  string
}

var _ completer = (*openaiCompleter)(nil)

func (c *openaiCompleter) params(req request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}

func (c *openaiCompleter) stream(ctx context.Context, req request) fragmentStream {
	params := c.params(req)
	// Usage arrives on the final chunk so the gateway can report an exact
	// completion token count without buffering the response itself.
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}
	return streamAdapter{c.client.Chat.Completions.NewStreaming(ctx, params)}
}

func (c *openaiCompleter) complete(ctx context.Context, req request) (openai.ChatCompletion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// streamAdapter lifts the concrete ssestream type to the fragmentStream
// interface.
type streamAdapter struct {
	*ssestream.Stream[openai.ChatCompletionChunk]
}
