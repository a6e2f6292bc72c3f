// Package providers adapts the philoagent llm.Provider contract onto
// concrete SDKs. Both backends here are single-shot, non-streaming, and
// always reject tool calls: the orchestration core never issues them.
package providers

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"philoagent/internal/config"
	"philoagent/internal/llm"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicBackend invokes Claude models through anthropic-sdk-go.
type AnthropicBackend struct {
	sdk       anthropicsdk.Client
	model     string
	maxTokens int64
}

func NewAnthropicBackend(cfg config.LLMConfig) *AnthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropicsdk.ModelClaude3_7SonnetLatest)
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicBackend{
		sdk:       anthropicsdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Invoke never configures tools on the underlying request: opts.DisableTools
// is the only mode this backend supports, so the flag is accepted for
// interface symmetry with other backends rather than branched on.
func (b *AnthropicBackend) Invoke(ctx context.Context, msgs []llm.Message, opts llm.InvokeOptions) (string, error) {
	var system string
	converted := make([]anthropicsdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case "assistant":
			converted = append(converted, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	maxTokens := b.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(b.model),
		Messages:  converted,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	resp, err := b.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic invoke: %w", err)
	}

	// Collapse content blocks to plain text. Anything that is not a text
	// block (a tool-use attempt, a thinking block) contributes nothing,
	// so a reply that is all tool-use collapses to the empty string and
	// the caller's retry/fallback path fires.
	var sb strings.Builder
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			sb.WriteString(v.Text)
		}
	}
	return sb.String(), nil
}
