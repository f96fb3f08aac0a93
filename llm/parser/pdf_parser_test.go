package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type fakePages struct {
	total int
	fail  int
	calls int
}

func (f *fakePages) NumPage() int { return f.total }

func (f *fakePages) PageText(num int) (string, error) {
	f.calls++
	if num == f.fail {
		return "", errors.New("broken page")
	}
	return fmt.Sprintf("page-%d", num), nil
}

func TestPDFExtractPageCap(t *testing.T) {
	src := &fakePages{total: 120}
	p := NewPDFParser(100, 0)

	doc, err := p.extract(context.Background(), src, "big.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if src.calls != 100 {
		t.Fatalf("read %d pages, want 100", src.calls)
	}
	if !strings.Contains(doc.Content, "page-100\n") || strings.Contains(doc.Content, "page-101") {
		t.Fatal("content does not stop at page 100")
	}
	if !strings.Contains(doc.Content, "残り20ページ") {
		t.Fatalf("notice does not mention 20 skipped pages: %q", doc.Content[len(doc.Content)-120:])
	}
	if !doc.Truncated {
		t.Fatal("expected truncated document")
	}
	if doc.Metadata["pages_skipped"] != 20 {
		t.Fatalf("pages_skipped = %v", doc.Metadata["pages_skipped"])
	}
}

func TestPDFExtractUnderCap(t *testing.T) {
	src := &fakePages{total: 3}
	doc, err := NewPDFParser(100, 0).extract(context.Background(), src, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Content != "page-1\npage-2\npage-3\n" {
		t.Fatalf("content = %q", doc.Content)
	}
	if doc.Truncated {
		t.Fatal("unexpected truncation")
	}
}

func TestPDFExtractPageError(t *testing.T) {
	src := &fakePages{total: 5, fail: 2}
	if _, err := NewPDFParser(100, 0).extract(context.Background(), src, ""); err == nil {
		t.Fatal("expected error from broken page")
	}
}

func TestPDFExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPDFParser(100, 0).extract(ctx, &fakePages{total: 5}, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPDFParseFileOversized(t *testing.T) {
	path := writeFile(t, "huge.pdf", make([]byte, 2048))

	doc, err := NewPDFParser(100, 1024).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !doc.Truncated || !strings.HasPrefix(doc.Content, "⚠️") {
		t.Fatalf("expected size notice, got %q", doc.Content)
	}
}

// buildPDF writes a minimal PDF with an xref table. objects are numbered from 1
// and object 1 is the catalog.
func buildPDF(objects ...string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func writeTextPDF(t *testing.T, name string, pages ...string) string {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	for _, text := range pages {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 14)
		doc.Cell(40, 10, text)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func parseFileWithin(t *testing.T, path string, limit time.Duration) (*Document, error) {
	t.Helper()
	type outcome struct {
		doc *Document
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		doc, err := NewPDFParser(100, 0).ParseFile(context.Background(), path)
		done <- outcome{doc: doc, err: err}
	}()
	select {
	case o := <-done:
		return o.doc, o.err
	case <-time.After(limit):
		t.Fatalf("ParseFile(%s) did not return within %s", filepath.Base(path), limit)
		return nil, nil
	}
}

func TestPDFParseFileRealDocument(t *testing.T) {
	path := writeTextPDF(t, "lecture.pdf", "Intro", "Advanced")

	doc, err := parseFileWithin(t, path, 5*time.Second)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	intro, advanced := strings.Index(doc.Content, "Intro"), strings.Index(doc.Content, "Advanced")
	if intro < 0 || advanced < intro {
		t.Fatalf("content = %q", doc.Content)
	}
	if doc.Metadata["page_count"] != 2 || doc.Truncated {
		t.Fatalf("metadata = %v, truncated = %v", doc.Metadata, doc.Truncated)
	}
}

func TestPDFParseFileMalformedObject(t *testing.T) {
	path := writeFile(t, "broken.pdf", buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R /Count 1 >> ] ) (",
		"<< /Type /Page /Parent 2 0 R >>",
	))

	if _, err := parseFileWithin(t, path, 5*time.Second); err == nil || !strings.Contains(err.Error(), "malformed PDF") {
		t.Fatalf("err = %v, want malformed PDF error", err)
	}

	text := NewExtractor(nil).Text(context.Background(), path)
	if !IsErrorText(text) {
		t.Fatalf("display text = %q", text)
	}
}

func TestPDFParseFileKidsNotArray(t *testing.T) {
	path := writeFile(t, "kids.pdf", buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids 7 /Count 3 >>",
	))

	doc, err := parseFileWithin(t, path, 5*time.Second)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if strings.TrimSpace(doc.Content) != "" {
		t.Fatalf("content = %q", doc.Content)
	}

	if _, err := NewExtractor(nil).Extract(context.Background(), path); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestPDFParseFileEmptyKids(t *testing.T) {
	path := writeFile(t, "empty-kids.pdf", buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 2 >>",
	))

	doc, err := parseFileWithin(t, path, 5*time.Second)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if strings.TrimSpace(doc.Content) != "" {
		t.Fatalf("content = %q", doc.Content)
	}
}
