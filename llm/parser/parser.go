package parser

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// FileType represents the type of a lecture material file
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeTXT     FileType = "txt"
	FileTypeHTML    FileType = "html"
	FileTypeUnknown FileType = "unknown"
)

const (
	// DefaultMaxFileBytes caps uploads and extraction input (100MB)
	DefaultMaxFileBytes = int64(100 * 1024 * 1024)
	// DefaultPDFPageCap is the number of PDF pages read before the rest is skipped
	DefaultPDFPageCap = 100
)

// Limits bounds how much of a file the parsers will read.
type Limits struct {
	MaxFileBytes int64
	PDFPageCap   int
}

// DefaultLimits returns the limits used when no configuration overrides them.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes: DefaultMaxFileBytes,
		PDFPageCap:   DefaultPDFPageCap,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = DefaultMaxFileBytes
	}
	if l.PDFPageCap <= 0 {
		l.PDFPageCap = DefaultPDFPageCap
	}
	return l
}

// Document represents extracted text with its metadata
type Document struct {
	Content string
	Title   string
	// Truncated is set when a size or page cap cut the content short.
	Truncated bool
	Metadata  map[string]interface{}
}

// Parser defines the interface for document parsers
type Parser interface {
	// Parse reads and parses a document from the reader
	Parse(ctx context.Context, r io.Reader) (*Document, error)

	// ParseFile reads and parses a document from a file path
	ParseFile(ctx context.Context, filePath string) (*Document, error)

	// FileType returns the file type this parser handles
	FileType() FileType
}

// Registry holds all registered parsers
type Registry struct {
	parsers map[FileType]Parser
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[FileType]Parser),
	}
}

// Register adds a parser to the registry
func (r *Registry) Register(p Parser) {
	r.parsers[p.FileType()] = p
}

// GetParser returns a parser for the given file type
func (r *Registry) GetParser(ft FileType) (Parser, bool) {
	p, ok := r.parsers[ft]
	return p, ok
}

// GetParserForPath returns a parser for the given file path
func (r *Registry) GetParserForPath(filePath string) (Parser, bool) {
	return r.GetParser(FileTypeFromExt(Ext(filePath)))
}

// ParseFile parses a file using the appropriate parser
func (r *Registry) ParseFile(ctx context.Context, filePath string) (*Document, error) {
	parser, ok := r.GetParserForPath(filePath)
	if !ok {
		return nil, fmt.Errorf("no parser found for file: %s", filePath)
	}

	return parser.ParseFile(ctx, filePath)
}

// Ext returns the lowercased extension of a path without the leading dot.
func Ext(filePath string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
}

// FileTypeFromExt converts a file extension to FileType
func FileTypeFromExt(ext string) FileType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return FileTypePDF
	case "txt":
		return FileTypeTXT
	case "html", "htm":
		return FileTypeHTML
	default:
		return FileTypeUnknown
	}
}

// String returns the string representation of the FileType
func (ft FileType) String() string {
	return string(ft)
}

// DefaultRegistry returns a registry with the lecture material parsers registered.
func DefaultRegistry(limits Limits) *Registry {
	limits = limits.withDefaults()

	reg := NewRegistry()
	reg.Register(NewTxtParser(limits.MaxFileBytes))
	reg.Register(NewPDFParser(limits.PDFPageCap, limits.MaxFileBytes))
	reg.Register(NewHTMLParser())
	return reg
}

// ExtractTitle extracts a title from content (first line or heading)
func ExtractTitle(content, filePath string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return filepath.Base(filePath)
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if line != "" && len(line) < 100 {
			return line
		}
		break
	}

	return filepath.Base(filePath)
}
