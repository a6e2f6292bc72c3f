package turn

import (
	"context"
	"fmt"

	"philoagent/internal/config"
	"philoagent/internal/llm"
	"philoagent/internal/observability"
)

const summarizerSystemPrompt = `You summarize a philosophical conversation's history so it can be` +
	` compacted. Summarize every message EXCEPT the most recent user message.` +
	` Be concise but preserve the philosophical questions, positions, and any` +
	` sources already discussed.`

// PrepareConversation brings the incoming conversation into a
// bounded-size shape and returns the State with every other field at
// its default.
func PrepareConversation(ctx context.Context, provider llm.Provider, cfg config.ResearchConfig, conversation []llm.Message) *State {
	log := observability.LoggerWithTrace(ctx)

	compacted := conversation
	if len(conversation) >= 2 {
		total := llm.CountConversationTokens(ctx, conversation)
		if total > cfg.HistoryTokenLimit {
			summarized, err := summarizeHistory(ctx, provider, conversation)
			if err != nil {
				log.Warn().Err(err).Msg("history summarization failed, passing conversation through")
			} else {
				compacted = summarized
			}
		}
	}

	return NewState(compacted)
}

// summarizeHistory asks the LLM for a summary of every message except
// the last, and replaces history with [system(summary), last user msg].
// The last message's role is preserved exactly, never re-wrapped.
func summarizeHistory(ctx context.Context, provider llm.Provider, conversation []llm.Message) ([]llm.Message, error) {
	log := observability.LoggerWithTrace(ctx)

	last := conversation[len(conversation)-1]
	toSummarize := conversation[:len(conversation)-1]

	prompt := []llm.Message{
		{Role: "system", Content: summarizerSystemPrompt},
	}
	for _, m := range toSummarize {
		prompt = append(prompt, m)
	}

	observability.DebugPayload(log, "prompt", prompt)
	summary, err := provider.Invoke(ctx, prompt, llm.InvokeOptions{DisableTools: true})
	if err != nil {
		return nil, fmt.Errorf("summarize history: %w", err)
	}
	observability.DebugPayload(log, "reply", summary)

	return []llm.Message{
		{Role: "system", Content: "summary: " + summary},
		last,
	}, nil
}
