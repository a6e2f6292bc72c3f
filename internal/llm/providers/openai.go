package providers

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"philoagent/internal/config"
	"philoagent/internal/llm"
)

// OpenAIBackend invokes chat models through openai-go/v2. Tool calls are
// never attached to the request; the core has no use for them.
type OpenAIBackend struct {
	sdk       openaisdk.Client
	model     string
	maxTokens int
}

func NewOpenAIBackend(cfg config.LLMConfig) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	model := cfg.Model
	if model == "" {
		model = string(openaisdk.ChatModelGPT4oMini)
	}
	return &OpenAIBackend{
		sdk:       openaisdk.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

func (b *OpenAIBackend) Invoke(ctx context.Context, msgs []llm.Message, opts llm.InvokeOptions) (string, error) {
	converted := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			converted = append(converted, openaisdk.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, openaisdk.AssistantMessage(m.Content))
		default:
			converted = append(converted, openaisdk.UserMessage(m.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(b.model),
		Messages: converted,
	}
	maxTokens := b.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(maxTokens))
	}

	comp, err := b.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai invoke: %w", err)
	}
	if len(comp.Choices) == 0 {
		return "", fmt.Errorf("openai invoke: no choices returned")
	}
	return comp.Choices[0].Message.Content, nil
}
