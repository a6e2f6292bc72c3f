package turn

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"philoagent/internal/llm"
)

func TestPrepareConversation_SummarizesWhenOverTokenLimit(t *testing.T) {
	cfg := researchCfg()
	cfg.HistoryTokenLimit = 10

	long := strings.Repeat("hobbes leviathan covenant sovereign state of nature ", 50)
	conversation := []llm.Message{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: "so what is a covenant, concretely?"},
	}
	p := &fakeProvider{replies: []string{"a summary of the prior exchange"}}

	state := PrepareConversation(context.Background(), p, cfg, conversation)

	require.Len(t, state.Conversation, 2)
	assert.Equal(t, llm.Message{Role: "system", Content: "summary: a summary of the prior exchange"}, state.Conversation[0])
	assert.Equal(t, conversation[len(conversation)-1], state.Conversation[1])
	assert.Equal(t, 1, p.calls)
}

func TestPrepareConversation_SkipsSummaryUnderTokenLimit(t *testing.T) {
	cfg := researchCfg()
	conversation := []llm.Message{{Role: "user", Content: "what is a covenant?"}}
	p := &fakeProvider{replies: []string{"should never be called"}}

	state := PrepareConversation(context.Background(), p, cfg, conversation)

	assert.Equal(t, conversation, state.Conversation)
	assert.Equal(t, 0, p.calls)
}

func TestPrepareConversation_SkipsSummaryForFewerThanTwoMessages(t *testing.T) {
	cfg := researchCfg()
	cfg.HistoryTokenLimit = 1 // would trigger summarization if the guard didn't short-circuit first
	conversation := []llm.Message{{Role: "user", Content: strings.Repeat("word ", 500)}}
	p := &fakeProvider{replies: []string{"should never be called"}}

	state := PrepareConversation(context.Background(), p, cfg, conversation)

	assert.Equal(t, conversation, state.Conversation)
	assert.Equal(t, 0, p.calls)
}

func TestPrepareConversation_FallsBackToOriginalOnSummarizerFailure(t *testing.T) {
	cfg := researchCfg()
	cfg.HistoryTokenLimit = 10

	long := strings.Repeat("hobbes leviathan covenant sovereign state of nature ", 50)
	conversation := []llm.Message{
		{Role: "user", Content: long},
		{Role: "user", Content: "so what is a covenant, concretely?"},
	}
	p := &fakeProvider{failNext: true}

	state := PrepareConversation(context.Background(), p, cfg, conversation)

	assert.Equal(t, conversation, state.Conversation)
}

func TestPrepareConversation_SetsStateDefaults(t *testing.T) {
	cfg := researchCfg()
	conversation := []llm.Message{{Role: "user", Content: "hi"}}
	p := &fakeProvider{}

	state := PrepareConversation(context.Background(), p, cfg, conversation)

	assert.Equal(t, EffortNone, state.ResearchEffort)
	assert.Equal(t, 1, state.ResearchIterations)
	assert.False(t, state.Completed)
	assert.Empty(t, state.QueryResults)
	assert.NotNil(t, state.AllRawResults)
	assert.Empty(t, state.AllRawResults)
	assert.Empty(t, state.Response)
	assert.Nil(t, state.VectorQueries)
	assert.Nil(t, state.EncyclopediaQueries)
}
