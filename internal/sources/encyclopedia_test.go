package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"philoagent/internal/config"
	"philoagent/internal/encyclopedia"
	"philoagent/internal/llm"
)

// stubProvider is used instead of turn's test-only fakeProvider since
// sources is a separate package with its own concurrent callers
// (EncyclopediaAdapter.Query fans out one goroutine per search string).
type stubProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (p *stubProvider) Invoke(ctx context.Context, msgs []llm.Message, opts llm.InvokeOptions) (string, error) {
	if !opts.DisableTools {
		return "", errors.New("tool calls must be disabled")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.replies) {
		return "", errors.New("no more replies queued")
	}
	p.calls++
	return p.replies[idx], nil
}

const articleFixtureHTML = `<html><head>
<meta name="citation_title" content="Hobbes's Moral and Political Philosophy">
<meta name="citation_author" content="Sharon A. Lloyd">
</head><body>
<div id="main-text">
<h2>1. Hobbes's Project</h2>
<p>Hobbes applied the new science to politics.</p>
<h2>2. The State of Nature</h2>
<p>Life there is nasty, brutish, and short.</p>
<h2>3. The Social Contract</h2>
<p>Subjects covenant with one another, not with the sovereign.</p>
</div>
</body></html>`

func newEncyclopediaTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/entries/hobbes-moral/">Hobbes</a></body></html>`))
	})
	mux.HandleFunc("/entries/hobbes-moral/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleFixtureHTML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEncyclopediaAdapter_Query_SelectsAnnouncedSections(t *testing.T) {
	srv := newEncyclopediaTestServer(t)
	client := encyclopedia.New(config.EncyclopediaConfig{SearchURL: srv.URL + "/search", BaseURL: srv.URL}, srv.Client(), 0)
	provider := &stubProvider{replies: []string{"[2, 3]"}}
	adapter := NewEncyclopediaAdapter(client, provider, config.ResearchConfig{})

	results, err := adapter.Query(context.Background(), []string{"hobbes state of nature"}, []llm.Message{{Role: "user", Content: "what did hobbes say about the state of nature?"}})

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "Stanford Encyclopedia of Philosophy", r.Result.Citation.Source)
		assert.Equal(t, []string{"Sharon A. Lloyd"}, r.Result.Citation.Authors)
	}
}

func TestEncyclopediaAdapter_Query_FallsBackToFirstThreeSectionsOnSelectorFailure(t *testing.T) {
	srv := newEncyclopediaTestServer(t)
	client := encyclopedia.New(config.EncyclopediaConfig{SearchURL: srv.URL + "/search", BaseURL: srv.URL}, srv.Client(), 0)
	provider := &stubProvider{replies: []string{"garbage", "still garbage", "nope"}}
	adapter := NewEncyclopediaAdapter(client, provider, config.ResearchConfig{})

	results, err := adapter.Query(context.Background(), []string{"hobbes"}, nil)

	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestEncyclopediaAdapter_Query_FanOutAcrossMultipleQueries(t *testing.T) {
	srv := newEncyclopediaTestServer(t)
	client := encyclopedia.New(config.EncyclopediaConfig{SearchURL: srv.URL + "/search", BaseURL: srv.URL}, srv.Client(), 0)
	provider := &stubProvider{replies: []string{"[1]", "[1]"}}
	adapter := NewEncyclopediaAdapter(client, provider, config.ResearchConfig{})

	results, err := adapter.Query(context.Background(), []string{"q1", "q2"}, nil)

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestParseSectionIDs(t *testing.T) {
	ids, ok := parseSectionIDs("sure, here you go: [1, 2, 3]")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, ids)

	_, ok = parseSectionIDs("no brackets here")
	assert.False(t, ok)
}
