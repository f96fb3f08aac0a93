package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTxtParserUTF8(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("第1回 講義ノート\nhello"))

	doc, err := NewTxtParser(0).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Content != "第1回 講義ノート\nhello" {
		t.Fatalf("content = %q", doc.Content)
	}
	if doc.Metadata["encoding"] != "utf-8" {
		t.Fatalf("encoding = %v, want utf-8", doc.Metadata["encoding"])
	}
	if doc.Truncated {
		t.Fatal("small file reported as truncated")
	}
}

func TestTxtParserShiftJIS(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("こんにちは、講義資料です"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFile(t, "sjis.txt", encoded)

	doc, err := NewTxtParser(0).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Content != "こんにちは、講義資料です" {
		t.Fatalf("content = %q", doc.Content)
	}
	if doc.Metadata["encoding"] != "shift_jis" {
		t.Fatalf("encoding = %v, want shift_jis", doc.Metadata["encoding"])
	}
}

func TestTxtParserLatin1(t *testing.T) {
	// 0xE9 alone is invalid UTF-8 and an invalid Shift_JIS/EUC-JP lead byte at EOF.
	path := writeFile(t, "latin1.txt", []byte("caf\xe9"))

	doc, err := NewTxtParser(0).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Content != "café" {
		t.Fatalf("content = %q, want café", doc.Content)
	}
}

func TestTxtParserSizeCap(t *testing.T) {
	path := writeFile(t, "big.txt", []byte(strings.Repeat("a", 64)))

	doc, err := NewTxtParser(16).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !doc.Truncated {
		t.Fatal("expected truncated document")
	}
	if !strings.HasPrefix(doc.Content, "⚠️") {
		t.Fatalf("notice not prepended: %q", doc.Content)
	}
	if !strings.HasSuffix(doc.Content, "\n\n"+strings.Repeat("a", 16)) {
		t.Fatalf("content not cut at cap: %q", doc.Content)
	}
}

func TestTxtParserIdempotent(t *testing.T) {
	encoded, _ := japanese.EUCJP.NewEncoder().Bytes([]byte("week 3"))
	path := writeFile(t, "w3.txt", encoded)

	p := NewTxtParser(0)
	first, err := p.ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := p.ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Content != second.Content {
		t.Fatalf("extraction not idempotent: %q vs %q", first.Content, second.Content)
	}
}

func TestDecodeTextPartialRune(t *testing.T) {
	data := []byte("講義")
	text, enc := DecodeText(data[:len(data)-1], true)
	if enc != "utf-8" || text != "講" {
		t.Fatalf("DecodeText = %q (%s), want 講 (utf-8)", text, enc)
	}
}
