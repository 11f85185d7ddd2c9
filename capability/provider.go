package capability

import (
	"fmt"

	langchainopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/hanbit-ai/advisor-rag/llms/ernie"
)

// ProviderConfig selects and authenticates one of the LLM backends the
// teacher carries as langchaingo llms.Model implementations. Every
// provider ends up behind the same LLM capability interface via
// NewLangchainLLM, so callers never branch on which one is active past
// construction time.
type ProviderConfig struct {
	Provider string // "openai" | "ernie"

	APIKey  string
	BaseURL string // openai-compatible base URL override
	Model   string
}

// NewLLMFromProvider constructs the LLM capability adapter for the named
// provider, defaulting to OpenAI when Provider is empty.
func NewLLMFromProvider(pc ProviderConfig) (LLM, error) {
	switch pc.Provider {
	case "", "openai":
		opts := []langchainopenai.Option{}
		if pc.APIKey != "" {
			opts = append(opts, langchainopenai.WithToken(pc.APIKey))
		}
		if pc.BaseURL != "" {
			opts = append(opts, langchainopenai.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, langchainopenai.WithModel(pc.Model))
		}
		model, err := langchainopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		return NewLangchainLLM(model), nil

	case "ernie":
		opts := []ernie.Option{}
		if pc.APIKey != "" {
			opts = append(opts, ernie.WithAPIKey(pc.APIKey))
		}
		if pc.BaseURL != "" {
			opts = append(opts, ernie.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, ernie.WithModel(ernie.ModelName(pc.Model)))
		}
		model, err := ernie.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("ernie provider: %w", err)
		}
		return NewLangchainLLM(model), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider %q", pc.Provider)
	}
}
