package llm

import (
	"context"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Tokenizer provides token counting for budget checks. PrepareConversation
// and PlanResearch both require a fixed, deterministic tokenizer so the
// same conversation always counts the same across process restarts; a
// heuristic char-based estimate is not acceptable as the primary path.
type Tokenizer interface {
	CountTokens(ctx context.Context, text string) (int, error)
	CountMessagesTokens(ctx context.Context, msgs []Message) (int, error)
}

// cl100kTokenizer wraps tiktoken-go/tokenizer's cl100k_base encoding,
// the same fixed vocabulary regardless of which LLM backend is
// configured — token budgeting must stay stable independent of model.
type cl100kTokenizer struct {
	mu  sync.Mutex
	enc tokenizer.Codec
}

var (
	defaultTokenizerOnce sync.Once
	defaultTokenizer     *cl100kTokenizer
	defaultTokenizerErr  error
)

// NewDeterministicTokenizer returns the process-wide cl100k_base tokenizer.
func NewDeterministicTokenizer() (Tokenizer, error) {
	defaultTokenizerOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			defaultTokenizerErr = err
			return
		}
		defaultTokenizer = &cl100kTokenizer{enc: enc}
	})
	if defaultTokenizerErr != nil {
		return nil, defaultTokenizerErr
	}
	return defaultTokenizer, nil
}

func (t *cl100kTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, _, err := t.enc.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (t *cl100kTokenizer) CountMessagesTokens(ctx context.Context, msgs []Message) (int, error) {
	total := 0
	for _, m := range msgs {
		n, err := t.CountTokens(ctx, m.Content)
		if err != nil {
			return 0, err
		}
		// small per-message overhead for role framing, matching the
		// fixed per-message accounting the cl100k chat formats use.
		total += n + 4
	}
	return total, nil
}

// EstimateTokens is a heuristic fallback (chars/4) used only if the
// deterministic tokenizer fails to load (e.g. embedded vocab missing) or
// fails to encode the conversation.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len([]rune(s))/4 + 1
}

// EstimateTokensForMessages is the corresponding fallback for a
// conversation.
func EstimateTokensForMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}

// CountConversationTokens counts msgs with the deterministic tokenizer,
// falling back to the heuristic estimate if it cannot be constructed.
func CountConversationTokens(ctx context.Context, msgs []Message) int {
	tok, err := NewDeterministicTokenizer()
	if err != nil {
		return EstimateTokensForMessages(msgs)
	}
	n, err := tok.CountMessagesTokens(ctx, msgs)
	if err != nil {
		return EstimateTokensForMessages(msgs)
	}
	return n
}
