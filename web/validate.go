package web

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength caps a sanitized search query, in characters.
const MaxQueryLength = 500

// ErrURLNotAllowed is returned for URLs rejected by ValidateURL.
var ErrURLNotAllowed = errors.New("url not allowed")

var blockedHosts = []*regexp.Regexp{
	regexp.MustCompile(`^localhost$`),
	regexp.MustCompile(`^127\.`),
	regexp.MustCompile(`^192\.168\.`),
	regexp.MustCompile(`^10\.`),
	regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[01])\.`),
	regexp.MustCompile(`^169\.254\.`),
	regexp.MustCompile(`^0\.0\.0\.0$`),
}

// free TLDs with a history of phishing
var blockedSuffixes = []string{".tk", ".ml", ".ga", ".cf", ".gq"}

var blockedKeywords = []string{
	"phishing", "malware", "virus", "hack", "crack",
	"download-free", "prize", "winner", "claim",
}

// ValidateURL accepts only http(s) URLs that do not point at loopback, private or
// link-local hosts, free phishing-prone TLDs, or paths with suspicious keywords.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrURLNotAllowed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrURLNotAllowed, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrURLNotAllowed)
	}
	for _, re := range blockedHosts {
		if re.MatchString(host) {
			return fmt.Errorf("%w: internal host %s", ErrURLNotAllowed, host)
		}
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return fmt.Errorf("%w: blocked domain %s", ErrURLNotAllowed, host)
		}
	}

	lower := strings.ToLower(raw)
	for _, kw := range blockedKeywords {
		if strings.Contains(lower, kw) {
			return fmt.Errorf("%w: keyword %q", ErrURLNotAllowed, kw)
		}
	}
	return nil
}

var queryStrip = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")

// SanitizeQuery truncates q to MaxQueryLength characters, removes <>"' and trims
// surrounding space.
func SanitizeQuery(q string) string {
	if utf8.RuneCountInString(q) > MaxQueryLength {
		q = string([]rune(q)[:MaxQueryLength])
	}
	return strings.TrimSpace(queryStrip.Replace(q))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
