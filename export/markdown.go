// Package export renders a finished summary as Markdown, HTML or PDF.
package export

import (
	"fmt"
	"strings"
	"time"

	"lecturemate/llm"
)

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat maps user input to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Document is everything an export needs.
type Document struct {
	Category    string
	Summary     string
	Integration string
	Sources     []string
	Generated   time.Time
}

// NewDocument builds a Document from a summarization result.
func NewDocument(category string, res llm.SummaryResult, sources []string, at time.Time) Document {
	return Document{
		Category:    category,
		Summary:     res.Summary,
		Integration: res.Integration,
		Sources:     sources,
		Generated:   at,
	}
}

// Filename returns the download name, e.g. "physics_summary_20240501_1830.md".
func Filename(category string, f Format, at time.Time) string {
	return fmt.Sprintf("%s_summary_%s.%s", category, at.Format("20060102_1504"), f)
}

// Markdown renders doc in the fixed report layout.
func Markdown(doc Document) string {
	var b strings.Builder
	b.WriteString("# AI資料まとめ\n\n")
	b.WriteString("## 📋 全体まとめ\n\n")
	b.WriteString(doc.Integration)
	b.WriteString("\n\n---\n\n")
	b.WriteString("## 📝 統合要約\n\n")
	b.WriteString(doc.Summary)
	b.WriteString("\n\n---\n\n")
	b.WriteString("## 📚 使用されたソース\n\n")
	for _, src := range doc.Sources {
		fmt.Fprintf(&b, "- %s\n", src)
	}
	fmt.Fprintf(&b, "\n---\n生成日時: %s\n", doc.Generated.Format("2006-01-02 15:04:05"))
	return b.String()
}

var separator = strings.Repeat("=", 50)

// ExtractedText joins extracted items for copy and paste into an external chat
// tool. Items are numbered from 1.
func ExtractedText(items []llm.SourceItem) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "\n\n%s\n📄 ファイル %d: %s\n%s\n\n", separator, i+1, item.Source, separator)
		b.WriteString(item.Content)
	}
	return b.String()
}

// Highlight wraps every occurrence of each keyword in bold markers.
func Highlight(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		text = strings.ReplaceAll(text, kw, "**"+kw+"**")
	}
	return text
}
