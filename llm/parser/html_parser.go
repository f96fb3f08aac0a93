package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser extracts readable text from HTML pages. The web fetcher uses it for
// pages fetched by URL.
type HTMLParser struct{}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse reads and parses HTML from the reader
func (p *HTMLParser) Parse(ctx context.Context, r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.parse(doc, ""), nil
}

// ParseFile reads and parses an HTML file
func (p *HTMLParser) ParseFile(ctx context.Context, filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.parse(doc, filePath), nil
}

// FileType returns the file type this parser handles
func (p *HTMLParser) FileType() FileType {
	return FileTypeHTML
}

func (p *HTMLParser) parse(doc *goquery.Document, filePath string) *Document {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("li, td, blockquote").Length() > 0 && !s.Is("li, td") {
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})

	content := strings.Join(lines, "\n")
	if content == "" {
		content = collapseSpaces(root.Text())
	}
	if title == "" {
		title = ExtractTitle(content, filePath)
	}

	return &Document{
		Content:  content,
		Title:    title,
		Metadata: map[string]interface{}{"line_count": len(lines)},
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
