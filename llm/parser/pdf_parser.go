package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts plain text from PDF files, page by page, up to a page cap
type PDFParser struct {
	pageCap  int
	maxBytes int64
}

// NewPDFParser creates a new PDF parser
func NewPDFParser(pageCap int, maxBytes int64) *PDFParser {
	if pageCap <= 0 {
		pageCap = DefaultPDFPageCap
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &PDFParser{pageCap: pageCap, maxBytes: maxBytes}
}

// pageSource is the subset of a PDF reader the extractor needs.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

// maxPageTreeDepth bounds the /Pages walk so a self-referencing tree cannot loop.
const maxPageTreeDepth = 64

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int {
	n := p.r.NumPage()
	if n < 0 {
		return 0
	}
	return n
}

func (p pdfPages) PageText(num int) (text string, err error) {
	defer recoverMalformed(&err)
	page := p.page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// page finds page num (1-based) like Reader.Page, but returns a null page
// instead of spinning when a /Pages node has no usable /Kids array.
func (p pdfPages) page(num int) pdf.Page {
	num--
	node := p.r.Trailer().Key("Root").Key("Pages")
	for depth := 0; depth < maxPageTreeDepth && node.Key("Type").Name() == "Pages"; depth++ {
		if int(node.Key("Count").Int64()) < num {
			return pdf.Page{}
		}
		kids := node.Key("Kids")
		if kids.Kind() != pdf.Array {
			return pdf.Page{}
		}
		descended := false
		for i := 0; i < kids.Len() && !descended; i++ {
			kid := kids.Index(i)
			switch kid.Key("Type").Name() {
			case "Pages":
				c := int(kid.Key("Count").Int64())
				if num < c {
					node = kid
					descended = true
					continue
				}
				num -= c
			case "Page":
				if num == 0 {
					return pdf.Page{V: kid}
				}
				num--
			}
		}
		if !descended {
			return pdf.Page{}
		}
	}
	return pdf.Page{}
}

// recoverMalformed turns a panic from the PDF reader into an error.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed PDF: %v", r)
	}
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	reader, err := newPDFReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, reader, nil
}

func newPDFReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	defer recoverMalformed(&err)
	return pdf.NewReader(r, size)
}

// Parse reads and parses PDF from the reader
func (p *PDFParser) Parse(ctx context.Context, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return oversizedPDF(int64(len(data)), p.maxBytes), nil
	}

	reader, err := newPDFReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to load PDF: %w", err)
	}
	return p.extract(ctx, pdfPages{r: reader}, "")
}

// ParseFile reads and parses a PDF file
func (p *PDFParser) ParseFile(ctx context.Context, filePath string) (*Document, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > p.maxBytes {
		return oversizedPDF(info.Size(), p.maxBytes), nil
	}

	f, reader, err := openPDF(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load PDF: %w", err)
	}
	defer f.Close()

	doc, err := p.extract(ctx, pdfPages{r: reader}, filePath)
	if err != nil {
		return nil, err
	}
	doc.Metadata["file_size"] = info.Size()
	return doc, nil
}

// FileType returns the file type this parser handles
func (p *PDFParser) FileType() FileType {
	return FileTypePDF
}

func (p *PDFParser) extract(ctx context.Context, src pageSource, filePath string) (doc *Document, err error) {
	defer recoverMalformed(&err)

	total := src.NumPage()
	limit := total
	if limit > p.pageCap {
		limit = p.pageCap
	}

	var sb strings.Builder
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := src.PageText(i)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	truncated := total > p.pageCap
	if truncated {
		sb.WriteString(PageCapNotice(total, p.pageCap))
	}

	content := sb.String()
	return &Document{
		Content:   content,
		Title:     ExtractTitle(content, filePath),
		Truncated: truncated,
		Metadata: map[string]interface{}{
			"page_count":    total,
			"pages_read":    limit,
			"pages_skipped": total - limit,
		},
	}, nil
}

// PageCapNotice is appended when a PDF has more pages than the cap.
func PageCapNotice(total, pageCap int) string {
	return fmt.Sprintf("\n\n[注記: 全%dページ中、最初の%dページのみ処理しました。残り%dページは処理されていません。]",
		total, pageCap, total-pageCap)
}

func oversizedPDF(size, limit int64) *Document {
	return &Document{
		Content: fmt.Sprintf("⚠️ ファイルサイズが大きすぎます (%.1fMB > %dMB)。このPDFは処理されませんでした。",
			float64(size)/1024/1024, limit/1024/1024),
		Truncated: true,
		Metadata:  map[string]interface{}{"file_size": size},
	}
}
