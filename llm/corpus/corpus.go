// Package corpus orders ingested lecture sources and joins them into the single
// text blob handed to the model.
package corpus

import (
	"strings"
	"unicode/utf8"

	"lecturemate/llm"
)

// Header returns the delimiter block that precedes a source's content.
func Header(source string) string {
	return "\n\n--- Source: " + source + " ---\n"
}

// Build concatenates items in the given order. ok is false for an empty list, so
// callers can tell "no data" apart from a corpus built from one empty item.
func Build(items []llm.SourceItem) (corpus string, ok bool) {
	if len(items) == 0 {
		return "", false
	}

	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(Header(item.Source))
		sb.WriteString(item.Content)
	}
	return sb.String(), true
}

// BuildOrdered orders items by lecture number and builds the corpus.
func BuildOrdered(items []llm.SourceItem) (string, error) {
	c, ok := Build(Plain(Order(items)))
	if !ok {
		return "", llm.ErrEmptyCorpus
	}
	return c, nil
}

// Sources lists the source labels of items in order.
func Sources(items []llm.SourceItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Source)
	}
	return out
}

// CharCount returns the number of characters across all item contents.
func CharCount(items []llm.SourceItem) int {
	n := 0
	for _, item := range items {
		n += utf8.RuneCountInString(item.Content)
	}
	return n
}
