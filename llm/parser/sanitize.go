package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest name SanitizeName returns, in bytes.
const MaxNameLength = 255

// SanitizeName turns an arbitrary filename or category into a single safe path
// segment. Only the final path component survives; every rune other than letters,
// digits, underscore, whitespace, '-' and '.' is dropped. An empty result means the
// input held no usable name.
func SanitizeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var sb strings.Builder
	for _, r := range name {
		if isNameRune(r) {
			sb.WriteRune(r)
		}
	}
	out := truncateBytes(sb.String(), MaxNameLength)

	if strings.Trim(out, ".") == "" {
		return ""
	}
	return out
}

func isNameRune(r rune) bool {
	switch {
	case r == '_', r == '-', r == '.':
		return true
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
		return true
	case unicode.IsSpace(r):
		return true
	}
	return false
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
