package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrorMarker starts every display string produced for a failed extraction.
const ErrorMarker = "Error"

// errorProbeLen is how many leading runes IsErrorText inspects.
const errorProbeLen = 50

// ErrEmptyContent is returned for files that decode to no text at all.
var ErrEmptyContent = errors.New("file is empty")

// ExtractionError reports a stored file whose text could not be extracted.
type ExtractionError struct {
	Path string
	Type FileType
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Display renders the error with the marker callers look for.
func (e *ExtractionError) Display() string {
	switch e.Type {
	case FileTypePDF:
		return fmt.Sprintf("%s reading PDF: %v", ErrorMarker, e.Err)
	case FileTypeTXT:
		return fmt.Sprintf("%s reading text file: %v", ErrorMarker, e.Err)
	default:
		return fmt.Sprintf("%s reading file: %v", ErrorMarker, e.Err)
	}
}

// Extractor turns stored lecture files into plain text.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor backed by the given registry.
func NewExtractor(reg *Registry) *Extractor {
	if reg == nil {
		reg = DefaultRegistry(DefaultLimits())
	}
	return &Extractor{registry: reg}
}

// Extract returns the document text, or an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, path string) (*Document, error) {
	ft := FileTypeFromExt(Ext(path))
	p, ok := e.registry.GetParser(ft)
	if !ok {
		return nil, &ExtractionError{Path: path, Type: ft, Err: fmt.Errorf("unsupported file type %q", Ext(path))}
	}

	doc, err := p.ParseFile(ctx, path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Type: ft, Err: err}
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, &ExtractionError{Path: path, Type: ft, Err: ErrEmptyContent}
	}
	return doc, nil
}

// Text extracts a file for display. Failures are returned as text starting with
// ErrorMarker rather than as an error.
func (e *Extractor) Text(ctx context.Context, path string) string {
	doc, err := e.Extract(ctx, path)
	if err != nil {
		return DisplayError(err)
	}
	return doc.Content
}

// DisplayError converts an extraction failure to its display string.
func DisplayError(err error) string {
	var xerr *ExtractionError
	if errors.As(err, &xerr) {
		return xerr.Display()
	}
	return fmt.Sprintf("%s: %v", ErrorMarker, err)
}

// IsErrorText reports whether a display string is a failed extraction.
func IsErrorText(s string) bool {
	return strings.Contains(runePrefix(s, errorProbeLen), ErrorMarker)
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
