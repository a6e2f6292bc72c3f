// Package encyclopedia implements the external encyclopedia HTTP
// collaborator: search, article fetch, and header-hierarchy section
// splitting. It is a thin client that reports failures as errors; the
// encyclopedia adapter in internal/sources swallows them at its boundary,
// and the orchestration core treats it as an opaque search+fetch surface.
package encyclopedia

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"philoagent/internal/config"
)

// Section is one header-delimited chunk of an article's main content.
type Section struct {
	ID     int
	Header string
	Text   string
}

// Citation holds the article's <meta> citation fields.
type Citation struct {
	Title           string
	Authors         []string
	PublicationDate string
	URL             string
}

// Article is a fetched, section-split encyclopedia entry.
type Article struct {
	Citation Citation
	Sections []Section
}

// Client is the HTTP search+fetch client.
type Client struct {
	http    *http.Client
	cfg     config.EncyclopediaConfig
	timeout time.Duration
}

// New builds a Client. timeout bounds every individual search/fetch
// request made through it (design value: HTTP_TIMEOUT, 10s); a zero
// timeout disables the per-request deadline.
func New(cfg config.EncyclopediaConfig, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, cfg: cfg, timeout: timeout}
}

// Search issues the search request and returns the first result's
// article URL.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	u := c.cfg.SearchURL + "?" + url.Values{"query": {query}}.Encode()
	doc, err := c.fetchHTML(ctx, u)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	href, ok := firstResultLink(doc)
	if !ok {
		return "", fmt.Errorf("search %q: no results", query)
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href, nil
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(href, "/"), nil
}

// FetchArticle fetches an article and splits it by header hierarchy.
func (c *Client) FetchArticle(ctx context.Context, articleURL string) (Article, error) {
	doc, err := c.fetchHTML(ctx, articleURL)
	if err != nil {
		return Article{}, fmt.Errorf("fetch article %q: %w", articleURL, err)
	}
	citation := extractCitation(doc)
	citation.URL = articleURL
	sections := splitIntoSections(doc)
	return Article{Citation: citation, Sections: sections}, nil
}

func (c *Client) fetchHTML(ctx context.Context, target string) (*html.Node, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, string(body))
	}
	return html.Parse(resp.Body)
}
