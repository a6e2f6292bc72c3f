package turn

import (
	"context"

	"golang.org/x/sync/errgroup"

	"philoagent/internal/config"
	"philoagent/internal/observability"
)

// ExecuteQueries runs the planned queries against both source adapters
// concurrently (fan-out cap = FAN_OUT_WORKERS, one task per source),
// and once both tasks have finished appends the vector results, then the
// encyclopedia results, deduplicating as it goes. An adapter
// failure never aborts the other task — it surfaces as no results from
// that source this iteration, per the error-handling design.
func ExecuteQueries(ctx context.Context, cfg config.ResearchConfig, vector VectorSource, encyclopedia EncyclopediaSource, state *State) {
	log := observability.LoggerWithTrace(ctx)

	vectorQueries, vectorPlaceholders := dedupVectorQueries(state, state.VectorQueries)
	encyclopediaQueries, encyclopediaPlaceholders := dedupEncyclopediaQueries(state, state.EncyclopediaQueries)

	for _, ph := range vectorPlaceholders {
		state.appendResult(ph)
	}
	for _, ph := range encyclopediaPlaceholders {
		state.appendResult(ph)
	}

	var g errgroup.Group
	workers := cfg.FanOutWorkers
	if workers <= 0 {
		workers = 2
	}
	g.SetLimit(workers)
	var vectorResults, encyclopediaResults []QueryResult

	if len(vectorQueries) > 0 {
		g.Go(func() error {
			results, err := vector.Query(ctx, vectorQueries)
			if err != nil {
				log.Warn().Err(err).Msg("vector adapter failed this iteration")
				return nil
			}
			vectorResults = results
			return nil
		})
	}
	if len(encyclopediaQueries) > 0 {
		g.Go(func() error {
			results, err := encyclopedia.Query(ctx, encyclopediaQueries, state.Conversation)
			if err != nil {
				log.Warn().Err(err).Msg("encyclopedia adapter failed this iteration")
				return nil
			}
			encyclopediaResults = results
			return nil
		})
	}
	_ = g.Wait() // both tasks swallow their own errors; nothing to propagate

	for _, qr := range vectorResults {
		state.appendResult(qr)
	}
	for _, qr := range encyclopediaResults {
		state.appendResult(qr)
	}

	state.VectorQueries = nil
	state.EncyclopediaQueries = nil
}

// dedupVectorQueries removes queries already answered by an identical
// (source, query) pair and returns a placeholder QueryResult for each
// one removed.
func dedupVectorQueries(state *State, queries []QueryAndFilters) ([]QueryAndFilters, []QueryResult) {
	kept := make([]QueryAndFilters, 0, len(queries))
	placeholders := make([]QueryResult, 0)
	for _, q := range queries {
		if state.hasVectorQueryAlready(q) {
			qCopy := q
			placeholders = append(placeholders, QueryResult{
				Source:      SourceVector,
				VectorQuery: &qCopy,
				Result:      SentinelResult(SentinelDuplicateQuery),
			})
			continue
		}
		kept = append(kept, q)
	}
	return kept, placeholders
}

func dedupEncyclopediaQueries(state *State, queries []string) ([]string, []QueryResult) {
	kept := make([]string, 0, len(queries))
	placeholders := make([]QueryResult, 0)
	for _, q := range queries {
		if state.hasEncyclopediaQueryAlready(q) {
			placeholders = append(placeholders, QueryResult{
				Source:            SourceEncyclopedia,
				EncyclopediaQuery: q,
				Result:            SentinelResult(SentinelDuplicateQuery),
			})
			continue
		}
		kept = append(kept, q)
	}
	return kept, placeholders
}
