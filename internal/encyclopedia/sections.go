package encyclopedia

import (
	"strings"

	markdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

var headerTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// firstResultLink returns the href of the first <a> inside the search
// results listing.
func firstResultLink(doc *html.Node) (string, bool) {
	var href string
	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if h, ok := attr(n, "href"); ok && h != "" {
				href = h
				found = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if found {
				return
			}
		}
	}
	walk(doc)
	return href, found
}

// extractCitation reads citation_title/citation_author/
// citation_publication_date <meta> tags.
func extractCitation(doc *html.Node) Citation {
	var c Citation
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			name, _ := attr(n, "name")
			content, _ := attr(n, "content")
			switch name {
			case "citation_title":
				c.Title = content
			case "citation_author":
				if content != "" {
					c.Authors = append(c.Authors, content)
				}
			case "citation_publication_date":
				c.PublicationDate = content
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return c
}

// splitIntoSections walks the main content element and splits it into
// sections wherever a header tag (h1-h6) is found: each section's text
// is everything up to (not including) the next header.
func splitIntoSections(doc *html.Node) []Section {
	main := findMainContent(doc)
	if main == nil {
		return nil
	}

	var sections []Section
	var current *Section
	id := 0

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(current.Text)
			sections = append(sections, *current)
		}
	}

	for c := main.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && headerTags[c.Data] {
			flush()
			id++
			current = &Section{ID: id, Header: nodeText(c)}
			continue
		}
		if current == nil {
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
				continue
			}
			id++
			current = &Section{ID: id, Header: ""}
		}
		current.Text += " " + renderMarkdown(c)
	}
	flush()
	return sections
}

func findMainContent(doc *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			if id, ok := attr(n, "id"); ok && (id == "main-text" || id == "content" || id == "main") {
				found = n
				return
			}
			if cls, ok := attr(n, "class"); ok && strings.Contains(cls, "article-content") {
				found = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if found != nil {
				return
			}
		}
	}
	walk(doc)
	if found == nil {
		// fall back to <body> when no recognizable content container exists
		var body func(*html.Node) *html.Node
		body = func(n *html.Node) *html.Node {
			if n.Type == html.ElementNode && n.Data == "body" {
				return n
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if b := body(c); b != nil {
					return b
				}
			}
			return nil
		}
		found = body(doc)
	}
	return found
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// renderMarkdown formats one content node as markdown prose; on
// conversion failure it falls back to the plain text content.
func renderMarkdown(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return nodeText(n)
	}
	out, err := markdown.ConvertString(sb.String())
	if err != nil {
		return nodeText(n)
	}
	return out
}

// FormatSection renders a selected section the way a QueryResult's
// evidence text is presented to the Compose node: header plus body.
func FormatSection(s Section) string {
	if s.Header == "" {
		return s.Text
	}
	return s.Header + "\n\n" + s.Text
}

// RenderCitation assembles a default citation string of the shape
// "Source; Author. \"Title\" ... (date). url" used when structured
// fields are partially absent.
func RenderCitation(source string, c Citation) string {
	var sb strings.Builder
	sb.WriteString(source)
	if len(c.Authors) > 0 {
		sb.WriteString("; ")
		sb.WriteString(strings.Join(c.Authors, ", "))
	}
	if c.Title != "" {
		sb.WriteString(". \"")
		sb.WriteString(c.Title)
		sb.WriteString("\"")
	}
	if c.PublicationDate != "" {
		sb.WriteString(" (")
		sb.WriteString(c.PublicationDate)
		sb.WriteString(")")
	}
	if c.URL != "" {
		sb.WriteString(". ")
		sb.WriteString(c.URL)
	}
	return sb.String()
}
