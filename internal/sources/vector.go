// Package sources wires the lower-level vectorstore, metadata,
// embedding, and encyclopedia clients into the turn.VectorSource and
// turn.EncyclopediaSource contracts the orchestration core depends on.
package sources

import (
	"context"
	"fmt"

	"philoagent/internal/config"
	"philoagent/internal/embedding"
	"philoagent/internal/fuzzy"
	"philoagent/internal/metadata"
	"philoagent/internal/turn"
	"philoagent/internal/vectorstore"
)

// VectorAdapter implements turn.VectorSource.
type VectorAdapter struct {
	store     vectorstore.Store
	meta      *metadata.Store
	embedCfg  config.EmbeddingConfig
	threshold int
	limit     int
}

func NewVectorAdapter(store vectorstore.Store, meta *metadata.Store, embedCfg config.EmbeddingConfig, cfg config.ResearchConfig) *VectorAdapter {
	return &VectorAdapter{store: store, meta: meta, embedCfg: embedCfg, threshold: cfg.FuzzyMatchThreshold, limit: cfg.VectorLimit}
}

type resolvedQuery struct {
	index  int
	query  turn.QueryAndFilters
	filter vectorstore.Filter
}

// Query resolves each query's author/source_title filters via fuzzy
// match, batch-embeds the surviving query texts, and issues one
// batched nearest-neighbor search.
func (a *VectorAdapter) Query(ctx context.Context, queries []turn.QueryAndFilters) ([]turn.QueryResult, error) {
	results := make([]turn.QueryResult, len(queries))
	resolved := make([]resolvedQuery, 0, len(queries))
	snapshot := a.meta.Current()

	for i, q := range queries {
		qCopy := q
		filter := vectorstore.Filter{}
		var resolvedAuthor string
		candidateSources := snapshot.AllSources()

		if q.Filters.Author != "" {
			match, ok := fuzzy.BestMatch(q.Filters.Author, snapshot.Authors())
			if !ok || match.Score <= a.threshold {
				closest := ""
				if ok {
					closest = match.Candidate
				}
				results[i] = turn.QueryResult{
					Source:      turn.SourceVector,
					VectorQuery: &qCopy,
					Result:      turn.SentinelResult(fmt.Sprintf("[Author %q not found; closest match: %q]", q.Filters.Author, closest)),
				}
				continue
			}
			resolvedAuthor = match.Candidate
			filter["author"] = resolvedAuthor
			candidateSources = snapshot.SourcesFor(resolvedAuthor)
		}

		if q.Filters.SourceTitle != "" {
			match, ok := fuzzy.BestMatch(q.Filters.SourceTitle, candidateSources)
			if !ok || match.Score <= a.threshold {
				closest := ""
				if ok {
					closest = match.Candidate
				}
				results[i] = turn.QueryResult{
					Source:      turn.SourceVector,
					VectorQuery: &qCopy,
					Result:      turn.SentinelResult(fmt.Sprintf("[Source %q not found; closest match: %q]", q.Filters.SourceTitle, closest)),
				}
				continue
			}
			filter["source_title"] = match.Candidate
		}

		resolved = append(resolved, resolvedQuery{index: i, query: q, filter: filter})
	}

	if len(resolved) == 0 {
		return results, nil
	}

	texts := make([]string, len(resolved))
	for i, r := range resolved {
		texts[i] = r.query.Query
	}
	vectors, err := embedding.EmbedText(ctx, a.embedCfg, texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	batchQueries := make([]vectorstore.Query, len(resolved))
	for i, r := range resolved {
		batchQueries[i] = vectorstore.Query{Vector: vectors[i], Limit: a.limit, Filter: r.filter}
	}
	batchHits, err := a.store.BatchQuery(ctx, batchQueries)
	if err != nil {
		return nil, fmt.Errorf("vector batch query: %w", err)
	}

	for i, r := range resolved {
		qCopy := r.query
		hits := batchHits[i]
		if len(hits) == 0 {
			results[r.index] = turn.QueryResult{
				Source:      turn.SourceVector,
				VectorQuery: &qCopy,
				Result:      turn.Result{Kind: turn.ResultNone},
			}
			continue
		}
		hit := hits[0]
		citation := turn.Citation{
			Source:  "Project Gutenberg",
			Title:   hit.Metadata["source_title"],
			Section: hit.Metadata["section"],
		}
		if author := hit.Metadata["author"]; author != "" {
			citation.Authors = []string{author}
		}
		results[r.index] = turn.QueryResult{
			Source:      turn.SourceVector,
			VectorQuery: &qCopy,
			Result:      turn.EvidenceResult(hit.Metadata["text"], citation),
		}
	}

	return results, nil
}
