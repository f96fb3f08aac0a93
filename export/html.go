package export

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
	),
)

const pageTemplate = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; line-height: 1.6; padding: 0 1rem; }
pre, code { background: #f4f4f4; }
hr { border: 0; border-top: 1px solid #ddd; }
</style>
</head>
<body>
%s</body>
</html>
`

// HTML renders the Markdown report as a standalone page.
func HTML(doc Document) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(doc)), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	title := "AI資料まとめ"
	if doc.Category != "" {
		title += " - " + doc.Category
	}
	return []byte(fmt.Sprintf(pageTemplate, html.EscapeString(title), body.String())), nil
}
