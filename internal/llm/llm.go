// Package llm runs the evaluation's structured completion against a chat
// provider when no hosted evaluation endpoint is configured. Providers
// are addressed as "provider/model_name".
package llm

import (
	"context"
	"fmt"
	"strings"
)

// maxResponseTokens bounds one feedback payload. The evaluation result is
// a few short lists and scores, far below this.
const maxResponseTokens = 4096

// Client produces one structured completion per call: a grading
// instruction plus one transcript in, a JSON object out. Providers with a
// native JSON output mode enable it; the reply is still parsed
// defensively downstream. No internal retry.
type Client interface {
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}
