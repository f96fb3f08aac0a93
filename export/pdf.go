package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions configures PDF rendering.
type PDFOptions struct {
	// FontPath is a TrueType font with CJK coverage. Without it the core
	// Helvetica font is used and characters outside cp1252 are lost.
	FontPath string
}

const utf8Family = "lecture"

// PDF renders doc as an A4 document.
func PDF(doc Document, opts PDFOptions) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAuthor("lecturemate", true)

	family := "Helvetica"
	tr := func(s string) string { return s }
	if opts.FontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", opts.FontPath)
		family = utf8Family
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if pdf.Err() {
		return nil, fmt.Errorf("load pdf font: %w", pdf.Error())
	}

	w := &pdfWriter{pdf: pdf, family: family, tr: tr, utf8: opts.FontPath != ""}
	pdf.SetTitle(tr("AI資料まとめ "+doc.Category), w.utf8)
	pdf.AddPage()

	w.heading("AI資料まとめ", 18)
	if doc.Category != "" {
		w.line(doc.Category)
	}
	pdf.Ln(4)

	w.section("全体まとめ", doc.Integration, false)
	w.section("統合要約", doc.Summary, false)
	w.section("使用されたソース", strings.Join(doc.Sources, "\n"), true)

	pdf.Ln(4)
	w.line("生成日時: " + doc.Generated.Format("2006-01-02 15:04:05"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf    *gofpdf.Fpdf
	family string
	tr     func(string) string
	utf8   bool
}

func (w *pdfWriter) heading(text string, size float64) {
	// UTF-8 fonts are registered without a bold variant.
	style := ""
	if !w.utf8 {
		style = "B"
	}
	w.pdf.SetFont(w.family, style, size)
	w.pdf.MultiCell(0, size/2, w.tr(text), "", "L", false)
	w.pdf.Ln(2)
}

func (w *pdfWriter) line(text string) {
	w.pdf.SetFont(w.family, "", 11)
	w.pdf.MultiCell(0, 6, w.tr(text), "", "L", false)
}

func (w *pdfWriter) section(title, content string, bullet bool) {
	w.heading(title, 14)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	written := 0
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "#") {
			w.heading(strings.TrimSpace(strings.TrimLeft(l, "#")), 12)
			written++
			continue
		}
		if bullet {
			l = "- " + l
		}
		w.line(l)
		written++
	}
	if written == 0 {
		w.line("(なし)")
	}
	w.pdf.Ln(6)
}

// Render produces doc in the requested format.
func Render(doc Document, f Format, opts PDFOptions) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(doc)), nil
	case FormatHTML:
		return HTML(doc)
	case FormatPDF:
		return PDF(doc, opts)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}
