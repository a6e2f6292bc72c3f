package turn

import (
	"context"
	"encoding/json"
	"fmt"

	"philoagent/internal/llm"
	"philoagent/internal/observability"
)

const noResearchSystemPrompt = `Answer the user's question conversationally. Do not include citations` +
	` or references. Do not claim to have consulted any tools or sources; you have` +
	` not performed any research for this reply.`

const researchSystemPromptTemplate = `Answer the user's question using ONLY the supplied evidence below.` +
	` Do not fabricate facts or citations. Cite every claim drawn from the evidence` +
	` in the form (Source, Author, Title, Section X-Y), and end your reply with a` +
	" References section listing every citation used.\n\nEvidence:\n%s"

// Compose produces the final assistant message and writes it to
// state.Response. Tool calls are disabled for this call.
func Compose(ctx context.Context, provider llm.Provider, state *State) {
	log := observability.LoggerWithTrace(ctx)

	var systemPrompt string
	if len(state.QueryResults) == 0 {
		systemPrompt = noResearchSystemPrompt
	} else {
		evidence, _ := json.Marshal(renderEvidence(state.QueryResults))
		systemPrompt = fmt.Sprintf(researchSystemPromptTemplate, string(evidence))
	}

	msgs := append([]llm.Message{{Role: "system", Content: systemPrompt}}, state.Conversation...)

	observability.DebugPayload(log, "prompt", msgs)
	reply, err := provider.Invoke(ctx, msgs, llm.InvokeOptions{DisableTools: true})
	if err != nil {
		log.Error().Err(err).Msg("compose invoke failed, returning best-effort empty reply")
		state.Response = ""
		return
	}
	observability.DebugPayload(log, "reply", reply)
	state.Response = reply
}
