package providers

import (
	"fmt"

	"philoagent/internal/config"
	"philoagent/internal/llm"
)

// Build selects a Provider backend by config.LLM.Backend. The core picks
// one per process; both SDKs stay wired so either is available at
// deploy time without a code change.
func Build(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Backend {
	case "", "openai":
		return NewOpenAIBackend(cfg), nil
	case "anthropic":
		return NewAnthropicBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
