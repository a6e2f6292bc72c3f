// Package llm defines the LLM invocation surface the orchestration core
// depends on: a single text-in, text-out call with tool calls always
// disabled, plus the deterministic tokenizer used for budget checks.
package llm

import "context"

// Message is a role-tagged text record. Conversations are ordered
// sequences of Messages and are treated as immutable by callers.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ReasoningEffort is an optional hint passed through to providers that
// support it; it is not related to TurnState.research_effort.
type ReasoningEffort string

const (
	ReasoningEffortNone   ReasoningEffort = ""
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

// InvokeOptions configures one LLM call. DisableTools must be honored by
// every backend: the orchestration core never permits tool calls.
type InvokeOptions struct {
	DisableTools bool
	Effort       ReasoningEffort
	MaxTokens    int
}

// Provider is the external collaborator contract: a function from
// messages to a single text reply. If the underlying model returns
// structured content blocks (tool-use blocks, thinking blocks), the
// implementation collapses them to plain text before returning.
type Provider interface {
	Invoke(ctx context.Context, msgs []Message, opts InvokeOptions) (string, error)
}
