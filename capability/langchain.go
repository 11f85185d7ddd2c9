package capability

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangchainLLM adapts a langchaingo llms.Model to the LLM capability
// interface, generalized from the teacher's adapter.OpenAIAdapter.
type LangchainLLM struct {
	model llms.Model
}

// NewLangchainLLM wraps an existing langchaingo model (OpenAI, Qwen, Ernie,
// Doubao, ...).
func NewLangchainLLM(model llms.Model) *LangchainLLM {
	return &LangchainLLM{model: model}
}

func toLangchainMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// Complete implements LLM.
func (a *LangchainLLM) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (CompletionResult, error) {
	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	resp, err := a.model.GenerateContent(ctx, toLangchainMessages(messages), opts...)
	if err != nil {
		return CompletionResult{}, &BackendUnavailable{Backend: "llm", Err: err}
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, &BackendUnavailable{Backend: "llm", Err: fmt.Errorf("empty response")}
	}

	choice := resp.Choices[0]
	usage := TokenUsage{}
	if choice.GenerationInfo != nil {
		if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
			usage.PromptTokens = v
		}
		if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
			usage.CompletionTokens = v
		}
		if v, ok := choice.GenerationInfo["TotalTokens"].(int); ok {
			usage.TotalTokens = v
		}
	}

	if acc := AccountingFromContext(ctx); acc != nil {
		acc.AddUsage(usage.PromptTokens, usage.CompletionTokens)
	}

	return CompletionResult{Content: choice.Content, Usage: usage}, nil
}

// Stream implements LLM. It adapts langchaingo's callback-based streaming
// (llms.WithStreamingFunc) into a channel of StreamChunk, per the
// "callback-heavy streaming" re-architecture in spec §9.
func (a *LangchainLLM) Stream(ctx context.Context, messages []Message, maxTokens int, temperature float64) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 16)

	opts := []llms.CallOption{
		llms.WithTemperature(temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			select {
			case out <- StreamChunk{Content: string(chunk)}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}),
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	go func() {
		defer close(out)
		resp, err := a.model.GenerateContent(ctx, toLangchainMessages(messages), opts...)
		if err != nil {
			return
		}
		usage := TokenUsage{}
		if len(resp.Choices) > 0 && resp.Choices[0].GenerationInfo != nil {
			info := resp.Choices[0].GenerationInfo
			if v, ok := info["PromptTokens"].(int); ok {
				usage.PromptTokens = v
			}
			if v, ok := info["CompletionTokens"].(int); ok {
				usage.CompletionTokens = v
			}
			if v, ok := info["TotalTokens"].(int); ok {
				usage.TotalTokens = v
			}
		}
		if acc := AccountingFromContext(ctx); acc != nil {
			acc.AddUsage(usage.PromptTokens, usage.CompletionTokens)
		}
		out <- StreamChunk{Done: true, Usage: usage}
	}()

	return out, nil
}

var _ LLM = (*LangchainLLM)(nil)
