package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"philoagent/internal/config"
	"philoagent/internal/encyclopedia"
	"philoagent/internal/llm"
	"philoagent/internal/observability"
	"philoagent/internal/turn"
)

const sectionSelectorSystemPrompt = `Given the recent conversation and a list of article sections (by id` +
	` and header), reply with a JSON array of the section ids most relevant to` +
	` the user's intent. Reply with JSON only, e.g. [1,3].`

const encyclopediaSourceLabel = "Stanford Encyclopedia of Philosophy"

// EncyclopediaAdapter implements turn.EncyclopediaSource.
type EncyclopediaAdapter struct {
	client        *encyclopedia.Client
	provider      llm.Provider
	maxAttempts   int
	conversationN int
	fanOutWorkers int
}

func NewEncyclopediaAdapter(client *encyclopedia.Client, provider llm.Provider, cfg config.ResearchConfig) *EncyclopediaAdapter {
	workers := cfg.FanOutWorkers
	if workers <= 0 {
		workers = 2
	}
	return &EncyclopediaAdapter{client: client, provider: provider, maxAttempts: 3, conversationN: 6, fanOutWorkers: workers}
}

// Query launches one concurrent task per search string, bounded to
// fanOutWorkers in flight at once, all joined before returning. A
// failure in any sub-task is swallowed and surfaces as a missing
// result, never an exception.
func (a *EncyclopediaAdapter) Query(ctx context.Context, queries []string, conversation []llm.Message) ([]turn.QueryResult, error) {
	results := make([][]turn.QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanOutWorkers)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			rs, err := a.queryOne(gctx, q, conversation)
			if err != nil {
				results[i] = []turn.QueryResult{{
					Source:            turn.SourceEncyclopedia,
					EncyclopediaQuery: q,
					Result:            turn.Result{Kind: turn.ResultNone},
				}}
				return nil
			}
			results[i] = rs
			return nil
		})
	}
	_ = g.Wait()

	out := make([]turn.QueryResult, 0, len(queries))
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out, nil
}

func (a *EncyclopediaAdapter) queryOne(ctx context.Context, query string, conversation []llm.Message) ([]turn.QueryResult, error) {
	articleURL, err := a.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	article, err := a.client.FetchArticle(ctx, articleURL)
	if err != nil {
		return nil, fmt.Errorf("fetch article: %w", err)
	}
	if len(article.Sections) == 0 {
		return nil, fmt.Errorf("no sections found")
	}

	selected := a.selectSections(ctx, article.Sections, conversation)

	citation := turn.Citation{
		Source:          encyclopediaSourceLabel,
		Authors:         article.Citation.Authors,
		Title:           article.Citation.Title,
		PublicationDate: article.Citation.PublicationDate,
		URL:             article.Citation.URL,
	}
	out := make([]turn.QueryResult, 0, len(selected))
	for _, s := range selected {
		c := citation
		c.Section = s.Header
		out = append(out, turn.QueryResult{
			Source:            turn.SourceEncyclopedia,
			EncyclopediaQuery: query,
			Result:            turn.EvidenceResult(encyclopedia.FormatSection(s), c),
		})
	}
	return out, nil
}

// selectSections asks the LLM to pick relevant sections, retrying on
// parse failure up to maxAttempts times and falling back to the first
// three sections if every attempt fails.
func (a *EncyclopediaAdapter) selectSections(ctx context.Context, sections []encyclopedia.Section, conversation []llm.Message) []encyclopedia.Section {
	var listing strings.Builder
	for _, s := range sections {
		listing.WriteString(fmt.Sprintf("%d: %s\n", s.ID, s.Header))
	}

	recent := conversation
	if len(recent) > a.conversationN {
		recent = recent[len(recent)-a.conversationN:]
	}
	prompt := append([]llm.Message{{Role: "system", Content: sectionSelectorSystemPrompt}}, recent...)
	prompt = append(prompt, llm.Message{Role: "user", Content: "Sections:\n" + listing.String()})

	log := observability.LoggerWithTrace(ctx)
	observability.DebugPayload(log, "prompt", prompt)
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		reply, err := a.provider.Invoke(ctx, prompt, llm.InvokeOptions{DisableTools: true})
		if err != nil {
			continue
		}
		observability.DebugPayload(log, "reply", reply)
		ids, ok := parseSectionIDs(reply)
		if !ok {
			continue
		}
		picked := filterSections(sections, ids)
		if len(picked) > 0 {
			return picked
		}
	}

	if len(sections) <= 3 {
		return sections
	}
	return sections[:3]
}

func parseSectionIDs(reply string) ([]int, bool) {
	body := strings.TrimSpace(reply)
	start := strings.IndexByte(body, '[')
	end := strings.LastIndexByte(body, ']')
	if start == -1 || end == -1 || end < start {
		return nil, false
	}
	var ids []int
	if err := json.Unmarshal([]byte(body[start:end+1]), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func filterSections(sections []encyclopedia.Section, ids []int) []encyclopedia.Section {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]encyclopedia.Section, 0, len(ids))
	for _, s := range sections {
		if _, ok := want[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}
