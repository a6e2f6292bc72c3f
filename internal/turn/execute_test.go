package turn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"philoagent/internal/llm"
)

func TestExecuteQueries_DedupsPlannedQueriesBeforeFanOut(t *testing.T) {
	cfg := researchCfg()
	s := NewState(nil)
	existing := QueryAndFilters{Query: "covenant"}
	existingCopy := existing
	s.appendResult(QueryResult{Source: SourceVector, VectorQuery: &existingCopy, Result: EvidenceResult("old text", Citation{})})

	s.VectorQueries = []QueryAndFilters{existing}
	vec := &fakeVectorSource{}
	enc := &fakeEncyclopediaSource{}

	ExecuteQueries(context.Background(), cfg, vec, enc, s)

	require.Len(t, s.QueryResults, 2)
	assert.Equal(t, SentinelDuplicateQuery, s.QueryResults[1].Result.Sentinel)
	assert.Equal(t, 0, vec.calls, "a fully-deduplicated query list must not reach the adapter")
}

func TestExecuteQueries_PartialAdapterFailureDoesNotAbortTheOther(t *testing.T) {
	cfg := researchCfg()
	s := NewState(nil)
	s.VectorQueries = []QueryAndFilters{{Query: "q1"}}
	s.EncyclopediaQueries = []string{"q2"}

	vec := &fakeVectorSource{batches: [][]QueryResult{{{Source: SourceVector, Result: EvidenceResult("vector hit", Citation{})}}}}
	enc := &fakeEncyclopediaSource{err: errors.New("timeout")}

	ExecuteQueries(context.Background(), cfg, vec, enc, s)

	require.Len(t, s.QueryResults, 1)
	assert.Equal(t, ResultEvidence, s.QueryResults[0].Result.Kind)
	assert.Equal(t, "vector hit", s.QueryResults[0].Result.Text)
}

type slowVectorSource struct {
	delay   time.Duration
	results []QueryResult
}

func (s *slowVectorSource) Query(ctx context.Context, queries []QueryAndFilters) ([]QueryResult, error) {
	time.Sleep(s.delay)
	return s.results, nil
}

type slowEncyclopediaSource struct {
	delay   time.Duration
	results []QueryResult
}

func (s *slowEncyclopediaSource) Query(ctx context.Context, queries []string, conversation []llm.Message) ([]QueryResult, error) {
	time.Sleep(s.delay)
	return s.results, nil
}

func TestExecuteQueries_ResultSetIndependentOfAdapterCompletionOrder(t *testing.T) {
	cfg := researchCfg()
	vectorHits := []QueryResult{{Source: SourceVector, Result: EvidenceResult("vector text", Citation{})}}
	encyclopediaHits := []QueryResult{{Source: SourceEncyclopedia, Result: EvidenceResult("encyclopedia text", Citation{})}}

	run := func(vectorDelay, encyclopediaDelay time.Duration) map[string]struct{} {
		s := NewState(nil)
		s.VectorQueries = []QueryAndFilters{{Query: "q1"}}
		s.EncyclopediaQueries = []string{"q2"}
		vec := &slowVectorSource{delay: vectorDelay, results: vectorHits}
		enc := &slowEncyclopediaSource{delay: encyclopediaDelay, results: encyclopediaHits}
		ExecuteQueries(context.Background(), cfg, vec, enc, s)

		texts := map[string]struct{}{}
		for _, qr := range s.QueryResults {
			if qr.Result.Kind == ResultEvidence {
				texts[qr.Result.Text] = struct{}{}
			}
		}
		return texts
	}

	vectorFirst := run(0, 20*time.Millisecond)
	encyclopediaFirst := run(20*time.Millisecond, 0)

	assert.Equal(t, vectorFirst, encyclopediaFirst)
	assert.Len(t, vectorFirst, 2)
}

func TestExecuteQueries_ClearsPlannedQueriesAfterRunning(t *testing.T) {
	cfg := researchCfg()
	s := NewState(nil)
	s.VectorQueries = []QueryAndFilters{{Query: "q1"}}
	vec := &fakeVectorSource{batches: [][]QueryResult{{{Source: SourceVector, Result: EvidenceResult("x", Citation{})}}}}
	enc := &fakeEncyclopediaSource{}

	ExecuteQueries(context.Background(), cfg, vec, enc, s)

	assert.Nil(t, s.VectorQueries)
	assert.Nil(t, s.EncyclopediaQueries)
}
