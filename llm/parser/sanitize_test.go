package parser

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "lecture 01.pdf", want: "lecture 01.pdf"},
		{in: "第3回_資料.txt", want: "第3回_資料.txt"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `..\..\windows\system32`, want: "system32"},
		{in: "a<b>c:d|e?.pdf", want: "abcde.pdf"},
		{in: "report (final)!.txt", want: "report final.txt"},
		{in: "..", want: ""},
		{in: "../..", want: ""},
		{in: "???", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeNameTraversal(t *testing.T) {
	got := SanitizeName("../../etc/passwd")
	if strings.ContainsAny(got, `/\`) {
		t.Fatalf("result %q still contains a path separator", got)
	}
	if strings.HasPrefix(got, "..") {
		t.Fatalf("result %q starts with ..", got)
	}
}

func TestSanitizeNameTruncates(t *testing.T) {
	long := strings.Repeat("あ", 200) // 600 bytes
	got := SanitizeName(long)
	if len(got) > MaxNameLength {
		t.Fatalf("len = %d, want <= %d", len(got), MaxNameLength)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}

	ascii := SanitizeName(strings.Repeat("a", 300))
	if len(ascii) != MaxNameLength {
		t.Fatalf("len = %d, want %d", len(ascii), MaxNameLength)
	}
}

func TestSanitizeNameDeterministic(t *testing.T) {
	in := "週次/week 2 <draft>.txt"
	if SanitizeName(in) != SanitizeName(in) {
		t.Fatal("SanitizeName is not deterministic")
	}
}
