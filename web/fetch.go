package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rs/zerolog/log"
)

// TruncationNotice is appended to page content cut at the size cap.
const TruncationNotice = "\n\n[注記: コンテンツが長すぎるため、最初の部分のみを取得しました]"

// FetchError reports a page that could not be fetched.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch downloads rawURL and returns its readable content. HTML is converted to
// markdown; other text types are returned as-is.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := c.validate(rawURL); err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("status code %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxContentBytes+1))
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	truncated := int64(len(body)) > c.maxContentBytes
	if truncated {
		body = body[:c.maxContentBytes]
		if start := lastRuneStart(body); !utf8.FullRune(body[start:]) {
			body = body[:start]
		}
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		markdown, err := convertHTMLToMarkdown(content)
		if err != nil {
			return "", &FetchError{URL: rawURL, Err: fmt.Errorf("convert html: %w", err)}
		}
		content = markdown
	}

	if truncated {
		content += TruncationNotice
	}

	log.Debug().Str("url", rawURL).Int("bytes", len(body)).Bool("truncated", truncated).Msg("fetched page")
	return content, nil
}

// lastRuneStart returns the index where the final, possibly partial, rune begins.
func lastRuneStart(b []byte) int {
	i := len(b) - 1
	for i > 0 && !utf8.RuneStart(b[i]) {
		i--
	}
	return i
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}

	lines := strings.Split(markdown, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return strings.Join(result, "\n"), nil
}
