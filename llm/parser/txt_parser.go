package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// candidateEncoding is one entry in the decoding fallback chain
type candidateEncoding struct {
	name string
	enc  encoding.Encoding // nil means UTF-8
}

var replacementChar = []byte("\uFFFD")

// candidates are tried in order. Shift_JIS in x/text is the Windows-31J (CP932)
// table, so it covers both names. ISO-8859-1 accepts every byte sequence and
// therefore ends the chain before the lossy fallback in practice.
var candidates = []candidateEncoding{
	{name: "utf-8"},
	{name: "shift_jis", enc: japanese.ShiftJIS},
	{name: "euc-jp", enc: japanese.EUCJP},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
}

// TxtParser handles plain text files in UTF-8 or common Japanese encodings
type TxtParser struct {
	maxBytes int64
}

// NewTxtParser creates a new plain text parser that reads at most maxBytes
func NewTxtParser(maxBytes int64) *TxtParser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &TxtParser{maxBytes: maxBytes}
}

// Parse reads and decodes plain text from the reader
func (p *TxtParser) Parse(ctx context.Context, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}

	truncated := int64(len(data)) > p.maxBytes
	if truncated {
		data = data[:p.maxBytes]
	}
	return p.build(data, int64(len(data)), truncated, ""), nil
}

// ParseFile reads and decodes a plain text file
func (p *TxtParser) ParseFile(ctx context.Context, filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(f, p.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return p.build(data, info.Size(), info.Size() > p.maxBytes, filePath), nil
}

// FileType returns the file type this parser handles
func (p *TxtParser) FileType() FileType {
	return FileTypeTXT
}

func (p *TxtParser) build(data []byte, size int64, truncated bool, filePath string) *Document {
	content, encName := DecodeText(data, truncated)
	if truncated {
		content = sizeNotice(size, p.maxBytes) + "\n\n" + content
	}

	return &Document{
		Content:   content,
		Title:     ExtractTitle(content, filePath),
		Truncated: truncated,
		Metadata: map[string]interface{}{
			"file_size":  size,
			"encoding":   encName,
			"line_count": strings.Count(content, "\n") + 1,
		},
	}
}

// DecodeText decodes data with the first candidate encoding that accepts it and
// returns the text together with the encoding name. When partial is set the data
// was cut at an arbitrary byte, so a broken trailing UTF-8 sequence is tolerated.
func DecodeText(data []byte, partial bool) (string, string) {
	for _, c := range candidates {
		if text, ok := decodeStrict(c, data, partial); ok {
			return text, c.name
		}
	}
	return strings.ToValidUTF8(string(data), ""), "utf-8 (lossy)"
}

func decodeStrict(c candidateEncoding, data []byte, partial bool) (string, bool) {
	if c.enc == nil {
		if utf8.Valid(data) {
			return string(data), true
		}
		if partial {
			trimmed := trimPartialRune(data)
			if utf8.Valid(trimmed) {
				return string(trimmed), true
			}
		}
		return "", false
	}

	out, _, err := transform.Bytes(c.enc.NewDecoder(), data)
	if err != nil {
		return "", false
	}
	// x/text decoders substitute U+FFFD for invalid input instead of failing.
	if bytes.Contains(out, replacementChar) && !bytes.Contains(data, replacementChar) {
		return "", false
	}
	return string(out), true
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of data.
func trimPartialRune(data []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		if utf8.RuneStart(data[len(data)-i]) {
			if !utf8.FullRune(data[len(data)-i:]) {
				return data[:len(data)-i]
			}
			break
		}
	}
	return data
}

func sizeNotice(size, limit int64) string {
	return fmt.Sprintf("⚠️ ファイルサイズが大きすぎます (%.1fMB)。最初の%dMBのみを処理します。",
		float64(size)/1024/1024, limit/1024/1024)
}
