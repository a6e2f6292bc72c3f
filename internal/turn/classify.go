package turn

import (
	"context"

	"philoagent/internal/config"
	"philoagent/internal/llm"
	"philoagent/internal/observability"
)

const classifierSystemPrompt = `Decide how much research this question needs. Reply with exactly one` +
	` digit and nothing else:` +
	"\n0 = no research needed, answer conversationally" +
	"\n1 = a quick, narrow lookup is enough (SIMPLE)" +
	"\n2 = this needs deep, multi-source research (DEEP)"

// ClassifyEffort assigns an effort tier by asking the LLM to emit a
// single digit, retrying on unparseable replies and defaulting to
// SIMPLE if every attempt fails. Tool calls are disabled.
func ClassifyEffort(ctx context.Context, provider llm.Provider, cfg config.ResearchConfig, conversation []llm.Message) EffortTier {
	log := observability.LoggerWithTrace(ctx)

	msgs := append([]llm.Message{{Role: "system", Content: classifierSystemPrompt}}, conversation...)

	attempts := cfg.ClassifierMaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	observability.DebugPayload(log, "prompt", msgs)
	for i := 0; i < attempts; i++ {
		reply, err := provider.Invoke(ctx, msgs, llm.InvokeOptions{DisableTools: true})
		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("classifier invoke failed")
			continue
		}
		observability.DebugPayload(log, "reply", reply)
		if tier, ok := parseEffortDigit(reply); ok {
			return tier
		}
		log.Warn().Int("attempt", i+1).Str("reply", reply).Msg("classifier reply had no valid digit")
	}
	log.Warn().Msg("classifier exhausted retries, defaulting to SIMPLE")
	return EffortSimple
}

// parseEffortDigit scans for the first character in {0,1,2}.
func parseEffortDigit(reply string) (EffortTier, bool) {
	for _, r := range reply {
		switch r {
		case '0':
			return EffortNone, true
		case '1':
			return EffortSimple, true
		case '2':
			return EffortDeep, true
		}
	}
	return EffortNone, false
}
