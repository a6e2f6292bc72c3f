// Package turn implements the orchestration core: the fixed directed
// graph of planning, retrieval, and synthesis nodes that drives one
// turn of the research agent, and the shared TurnState they read and
// write.
package turn

import (
	"context"

	"github.com/google/uuid"

	"philoagent/internal/llm"
)

// EffortTier is one of {NONE, SIMPLE, DEEP}, controlling the iteration
// budget and which Compose prompt is used.
type EffortTier int

const (
	EffortNone EffortTier = iota
	EffortSimple
	EffortDeep
)

func (e EffortTier) String() string {
	switch e {
	case EffortNone:
		return "NONE"
	case EffortSimple:
		return "SIMPLE"
	case EffortDeep:
		return "DEEP"
	default:
		return "UNKNOWN"
	}
}

// Filters narrows a vector-store query to an exact-match author and/or
// source title. Either, both, or neither may be set.
type Filters struct {
	Author      string `json:"author,omitempty"`
	SourceTitle string `json:"source_title,omitempty"`
}

// QueryAndFilters is one planned vector-store query.
type QueryAndFilters struct {
	Query   string  `json:"query"`
	Filters Filters `json:"filters,omitempty"`
}

// Citation describes the provenance of one retrieved chunk.
// PublicationDate and URL are populated by the encyclopedia adapter
// (the vector adapter has no equivalent metadata) and feed
// encyclopedia.RenderCitation's fallback rendering.
type Citation struct {
	Source          string   `json:"source"`
	Authors         []string `json:"authors,omitempty"`
	Title           string   `json:"title"`
	Section         string   `json:"section,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	URL             string   `json:"url,omitempty"`
}

// ResultKind discriminates QueryResult.Result's three arms. Modeling it
// as a tagged variant (rather than an open `any` bag) is load-bearing:
// the dedup and pruning logic both switch on the arm.
type ResultKind int

const (
	// ResultNone means the query produced nothing (e.g. a failed adapter
	// sub-task whose failure was swallowed at the adapter boundary).
	ResultNone ResultKind = iota
	// ResultEvidence carries a (text, Citation) pair.
	ResultEvidence
	// ResultSentinel carries a fixed diagnostic/placeholder string:
	// duplicate query, duplicate result, pruned, or fuzzy-match miss.
	ResultSentinel
)

const (
	SentinelDuplicateQuery  = "[Duplicate Query Omitted, Already Retrieved In Previous Queries]"
	SentinelDuplicateResult = "[Duplicate Result Omitted, Already Retrieved In Previous Queries]"
	SentinelPruned          = "[Removed from future consideration by research planner]"
)

// Result is the tagged union QueryResult.result: exactly one of Kind's
// fields is meaningful at a time.
type Result struct {
	Kind     ResultKind
	Text     string   // meaningful when Kind == ResultEvidence
	Citation Citation // meaningful when Kind == ResultEvidence
	Sentinel string   // meaningful when Kind == ResultSentinel
}

func EvidenceResult(text string, c Citation) Result {
	return Result{Kind: ResultEvidence, Text: text, Citation: c}
}

func SentinelResult(s string) Result {
	return Result{Kind: ResultSentinel, Sentinel: s}
}

// rawKey returns the dedup key for this result, and ok=false if this
// result kind does not participate in raw-text dedup.
func (r Result) rawKey() (string, bool) {
	switch r.Kind {
	case ResultEvidence:
		return r.Text, true
	case ResultSentinel:
		return "", false
	default:
		return "", false
	}
}

// QuerySource identifies where a QueryResult came from.
type QuerySource string

const (
	SourceVector       QuerySource = "vector_db"
	SourceEncyclopedia QuerySource = "stanford_encyclopedia"
)

// QueryResult is one unit of evidence, process-wide unique by ID.
type QueryResult struct {
	ID     string
	Source QuerySource
	// VectorQuery is set when Source == SourceVector.
	VectorQuery *QueryAndFilters
	// EncyclopediaQuery is set when Source == SourceEncyclopedia.
	EncyclopediaQuery string
	Result            Result
}

func newResultID() string {
	return uuid.NewString()
}

// VectorSource is the vector-store adapter's contract: given planned
// queries, return one QueryResult per query (order preserved within
// this call; the query and source adapters are external collaborators,
// so failures are swallowed and surface as missing/diagnostic results).
type VectorSource interface {
	Query(ctx context.Context, queries []QueryAndFilters) ([]QueryResult, error)
}

// EncyclopediaSource is the encyclopedia adapter's contract.
type EncyclopediaSource interface {
	Query(ctx context.Context, queries []string, conversation []llm.Message) ([]QueryResult, error)
}

// State is the mutable record threaded through the graph. It is owned
// by whichever node is currently executing; no concurrent mutation.
type State struct {
	Conversation []llm.Message

	ResearchEffort EffortTier
	LongTermPlan   string
	ShortTermPlan  string

	VectorQueries       []QueryAndFilters
	EncyclopediaQueries []string

	ResearchIterations int
	Completed          bool

	QueryResults  []QueryResult
	AllRawResults map[string]struct{}

	Response string
}

// NewState returns a State with every field at its PrepareConversation
// default, for the given (already possibly-compacted) conversation.
func NewState(conversation []llm.Message) *State {
	return &State{
		Conversation:       conversation,
		ResearchEffort:     EffortNone,
		ResearchIterations: 1,
		Completed:          false,
		QueryResults:       []QueryResult{},
		AllRawResults:      make(map[string]struct{}),
	}
}

// appendResult records a result, applying result-level dedup by raw
// text key. It always appends (possibly after rewriting Result to the
// duplicate-result sentinel) and never returns an error: dedup bookkeeping
// cannot fail.
func (s *State) appendResult(qr QueryResult) {
	if qr.ID == "" {
		qr.ID = newResultID()
	}
	if key, ok := qr.Result.rawKey(); ok {
		if _, dup := s.AllRawResults[key]; dup {
			qr.Result = SentinelResult(SentinelDuplicateResult)
		} else {
			s.AllRawResults[key] = struct{}{}
		}
	}
	s.QueryResults = append(s.QueryResults, qr)
}

// hasVectorQueryAlready reports whether an equal (source, query) pair is
// already present in QueryResults, per ExecuteQueries's pre-execution
// dedup of planned queries.
func (s *State) hasVectorQueryAlready(q QueryAndFilters) bool {
	for _, qr := range s.QueryResults {
		if qr.Source == SourceVector && qr.VectorQuery != nil && *qr.VectorQuery == q {
			return true
		}
	}
	return false
}

func (s *State) hasEncyclopediaQueryAlready(q string) bool {
	for _, qr := range s.QueryResults {
		if qr.Source == SourceEncyclopedia && qr.EncyclopediaQuery == q {
			return true
		}
	}
	return false
}

// prune replaces the Result of every QueryResult whose ID is in ids
// with the pruned sentinel, in place. The dedup key is left untouched
// in AllRawResults: pruning must never re-admit a previously seen raw
// text, and must never forget one either.
func (s *State) prune(ids []string) {
	if len(ids) == 0 {
		return
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range s.QueryResults {
		if _, ok := want[s.QueryResults[i].ID]; ok {
			s.QueryResults[i].Result = SentinelResult(SentinelPruned)
		}
	}
}
