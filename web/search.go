package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// DefaultSearchMaxResults is the number of results returned when limit <= 0
const DefaultSearchMaxResults = 5

// SearchResult is a single search hit.
type SearchResult struct {
	Title    string `json:"title"`
	Link     string `json:"href"`
	Snippet  string `json:"body"`
	Position int    `json:"position"`
}

// Search queries DuckDuckGo Lite and returns up to limit results whose links pass
// URL validation.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = SanitizeQuery(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = DefaultSearchMaxResults
	}

	c.waitSearchSlot()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchEndpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxContentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// over-collect so filtering still leaves limit results when possible
	parsed, err := parseLiteSearchResults(string(body), limit*2)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, r := range parsed {
		if err := c.validate(r.Link); err != nil {
			log.Debug().Str("url", r.Link).Err(err).Msg("search result skipped")
			continue
		}
		r.Position = len(results) + 1
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// parseLiteSearchResults parses DuckDuckGo Lite HTML results
func parseLiteSearchResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult
	var current *SearchResult

	flush := func() {
		if current != nil && current.Link != "" && len(results) < maxResults {
			results = append(results, *current)
		}
		current = nil
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				flush()
				current = &SearchResult{Title: textContent(n), Link: cleanDuckDuckGoURL(attr(n, "href"))}
			case n.Data == "td" && hasClass(n, "result-snippet") && current != nil:
				current.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if len(results) >= maxResults {
				return
			}
			traverse(c)
		}
	}

	traverse(doc)
	flush()
	return results, nil
}

// cleanDuckDuckGoURL extracts the final URL from DuckDuckGo's redirect link
func cleanDuckDuckGoURL(rawURL string) string {
	idx := strings.Index(rawURL, "uddg=")
	if idx == -1 {
		return rawURL
	}
	encoded := rawURL[idx+5:]
	if amp := strings.Index(encoded, "&"); amp != -1 {
		encoded = encoded[:amp]
	}
	if decoded, err := url.QueryUnescape(encoded); err == nil {
		return decoded
	}
	return rawURL
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent recursively extracts the text of a node
func textContent(n *html.Node) string {
	var text strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			text.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.TrimSpace(text.String())
}
