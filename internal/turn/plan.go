package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"philoagent/internal/config"
	"philoagent/internal/encyclopedia"
	"philoagent/internal/llm"
	"philoagent/internal/observability"
)

// plannerOutput mirrors the five documented keys the planner's JSON
// object may carry; all are nullable and accepted loosely rather than
// validated against a strict schema.
type plannerOutput struct {
	LongTermPlan                string            `json:"long_term_plan"`
	ShortTermPlan               string            `json:"short_term_plan"`
	VectorDBQueries             []QueryAndFilters `json:"vector_db_queries"`
	StanfordEncyclopediaQueries []string          `json:"stanford_encyclopedia_queries"`
	IDsToRemove                 []string          `json:"ids_to_remove"`
}

func (p plannerOutput) allEmpty() bool {
	return p.LongTermPlan == "" && p.ShortTermPlan == "" &&
		len(p.VectorDBQueries) == 0 && len(p.StanfordEncyclopediaQueries) == 0
}

const plannerSystemPromptTemplate = `You are planning research for a philosophy question. You may issue up` +
	` to 3 vector-database queries and 1 encyclopedia query per iteration (a` +
	` soft limit only).` +
	"\n\nRespond with a single JSON object with exactly these keys:" +
	"\n  long_term_plan: string" +
	"\n  short_term_plan: string" +
	"\n  vector_db_queries: array of {query, filters:{author?, source_title?}} or null" +
	"\n  stanford_encyclopedia_queries: array of strings or null" +
	"\n  ids_to_remove: array of result id strings or null" +
	"\nSet every field to null when research is complete. Respond with" +
	" JSON only, no prose, no markdown fences."

// PlanResearch decides whether to stop, what to query next, and what to
// prune, per iteration. It mutates state in place and returns nothing:
// the caller inspects state.Completed to decide whether to loop.
func PlanResearch(ctx context.Context, provider llm.Provider, cfg config.ResearchConfig, state *State) {
	log := observability.LoggerWithTrace(ctx)

	iterCap := iterationCap(cfg, state.ResearchEffort)
	if state.ResearchIterations > iterCap {
		log.Info().Int("iterations", state.ResearchIterations).Int("cap", iterCap).Msg("iteration cap reached")
		state.Completed = true
		return
	}

	contextTokens := llm.CountConversationTokens(ctx, state.Conversation)
	if contextTokens > cfg.ContextTokenCap {
		log.Info().Int("tokens", contextTokens).Int("cap", cfg.ContextTokenCap).Msg("context token cap exceeded")
		state.Completed = true
		return
	}

	prompt := buildPlannerPrompt(state, iterCap)

	attempts := cfg.PlannerMaxParseAttempts
	if attempts <= 0 {
		attempts = 5
	}
	observability.DebugPayload(log, "prompt", prompt)
	var parsed plannerOutput
	ok := false
	for i := 0; i < attempts; i++ {
		reply, err := provider.Invoke(ctx, prompt, llm.InvokeOptions{DisableTools: true})
		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("planner invoke failed")
			continue
		}
		observability.DebugPayload(log, "reply", reply)
		p, perr := parsePlannerOutput(reply)
		if perr != nil {
			log.Warn().Err(perr).Int("attempt", i+1).Msg("planner JSON parse failed")
			continue
		}
		parsed = p
		ok = true
		break
	}

	if !ok {
		// Exhaustion discards any ids_to_remove a failed attempt may have
		// carried; this is intentional, not a bug.
		log.Warn().Msg("planner exhausted parse attempts, ending research")
		state.Completed = true
		return
	}

	state.prune(parsed.IDsToRemove)

	if parsed.allEmpty() {
		state.Completed = true
		return
	}

	if len(parsed.VectorDBQueries) > 3 {
		log.Warn().Int("count", len(parsed.VectorDBQueries)).Msg("planner exceeded vector query soft cap")
	}
	if len(parsed.StanfordEncyclopediaQueries) > 1 {
		log.Warn().Int("count", len(parsed.StanfordEncyclopediaQueries)).Msg("planner exceeded encyclopedia query soft cap")
	}

	state.LongTermPlan = parsed.LongTermPlan
	state.ShortTermPlan = parsed.ShortTermPlan
	state.VectorQueries = parsed.VectorDBQueries
	state.EncyclopediaQueries = parsed.StanfordEncyclopediaQueries
	state.ResearchIterations++
}

func iterationCap(cfg config.ResearchConfig, effort EffortTier) int {
	if effort == EffortDeep {
		if cfg.MaxIterDeep > 0 {
			return cfg.MaxIterDeep
		}
		return 8
	}
	if cfg.MaxIterSimple > 0 {
		return cfg.MaxIterSimple
	}
	return 4
}

func buildPlannerPrompt(state *State, iterCap int) []llm.Message {
	var lastMsg llm.Message
	if len(state.Conversation) > 0 {
		lastMsg = state.Conversation[len(state.Conversation)-1]
	}

	evidence, _ := json.Marshal(renderEvidence(state.QueryResults))

	body := fmt.Sprintf(
		"Last message (%s): %s\n\nPrior results:\n%s\n\nLong term plan: %s\nPrevious short term plan: %s\nIteration %d of %d.",
		lastMsg.Role, lastMsg.Content, string(evidence), state.LongTermPlan, state.ShortTermPlan,
		state.ResearchIterations, iterCap,
	)

	return []llm.Message{
		{Role: "system", Content: plannerSystemPromptTemplate},
		{Role: "user", Content: body},
	}
}

// renderedResult is the stable JSON shape shown to the planner for one
// QueryResult: same input state always renders to the same JSON, so
// planner behavior stays reproducible under fixed seeds.
type renderedResult struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Query    string `json:"query"`
	Result   string `json:"result,omitempty"`
	Citation string `json:"citation,omitempty"`
}

func renderEvidence(results []QueryResult) []renderedResult {
	out := make([]renderedResult, 0, len(results))
	for _, qr := range results {
		r := renderedResult{ID: qr.ID, Source: string(qr.Source)}
		if qr.VectorQuery != nil {
			r.Query = qr.VectorQuery.Query
		} else {
			r.Query = qr.EncyclopediaQuery
		}
		switch qr.Result.Kind {
		case ResultEvidence:
			r.Result = qr.Result.Text
			r.Citation = renderCitation(qr.Result.Citation)
		case ResultSentinel:
			r.Result = qr.Result.Sentinel
		}
		out = append(out, r)
	}
	return out
}

// renderCitation formats a Citation for display to the planner/Compose
// LLM, always using encyclopedia.RenderCitation's "Source; Author.
// \"Title\" ... (date). url" shape; empty fields (such as the publication
// date and URL of a vector hit) are left out, and the section is
// appended when known.
func renderCitation(c Citation) string {
	rendered := encyclopedia.RenderCitation(c.Source, encyclopedia.Citation{
		Title:           c.Title,
		Authors:         c.Authors,
		PublicationDate: c.PublicationDate,
		URL:             c.URL,
	})
	if c.Section != "" {
		rendered += "; " + c.Section
	}
	return rendered
}

// parsePlannerOutput strips ```/```json fences and parses the JSON
// object, tolerating leading/trailing whitespace and trailing prose
// after the closing brace.
func parsePlannerOutput(reply string) (plannerOutput, error) {
	body := stripCodeFences(reply)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start == -1 || end == -1 || end < start {
		return plannerOutput{}, fmt.Errorf("no JSON object found in planner reply")
	}
	var out plannerOutput
	if err := json.Unmarshal([]byte(body[start:end+1]), &out); err != nil {
		return plannerOutput{}, fmt.Errorf("unmarshal planner JSON: %w", err)
	}
	return out, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
