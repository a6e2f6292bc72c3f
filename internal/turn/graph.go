package turn

import (
	"context"

	"philoagent/internal/config"
	"philoagent/internal/llm"
	"philoagent/internal/observability"
)

// Deps bundles the external collaborators one turn needs. Both the LLM
// provider and the source adapters must be safe for concurrent use: a
// single turn's ExecuteQueries fan-out exercises that.
type Deps struct {
	Provider     llm.Provider
	Vector       VectorSource
	Encyclopedia EncyclopediaSource
	Config       config.ResearchConfig
}

// Outcome is what one turn returns to its caller: a new assistant
// message, the evidence used to produce it, and the effort tier chosen.
type Outcome struct {
	Response       string
	QueryResults   []QueryResult
	ResearchEffort EffortTier
}

// Run walks the fixed graph for one turn:
//
//	start -> PrepareConversation -> ClassifyEffort -> (NONE) -> Compose -> end
//	                                      \-> PlanResearch <-> ExecuteQueries
//	                                           \-> (completed) -> Compose -> end
//
// No dynamic dispatch: this is a small interpreter loop reading
// state.Completed and state.ResearchEffort to route. If ctx is
// cancelled before Compose runs, Run returns a zero Outcome and the
// context's error — partial query_results are discarded, not returned.
func Run(ctx context.Context, deps Deps, conversation []llm.Message) (Outcome, error) {
	log := observability.LoggerWithTrace(ctx)

	state := PrepareConversation(ctx, deps.Provider, deps.Config, conversation)

	state.ResearchEffort = ClassifyEffort(ctx, deps.Provider, deps.Config, state.Conversation)
	log.Info().Str("effort", state.ResearchEffort.String()).Msg("classified turn effort")

	if state.ResearchEffort != EffortNone {
		for {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}

			PlanResearch(ctx, deps.Provider, deps.Config, state)
			if state.Completed {
				break
			}

			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}

			log.Info().
				Int("iteration", state.ResearchIterations).
				Int("vector_queries", len(state.VectorQueries)).
				Int("encyclopedia_queries", len(state.EncyclopediaQueries)).
				Msg("executing planned queries")

			ExecuteQueries(ctx, deps.Config, deps.Vector, deps.Encyclopedia, state)
		}
	}

	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	Compose(ctx, deps.Provider, state)

	return Outcome{
		Response:       state.Response,
		QueryResults:   state.QueryResults,
		ResearchEffort: state.ResearchEffort,
	}, nil
}
