package qa

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"lecturemate/llm/providers"
	"lecturemate/llm/retry"
	"lecturemate/web"
)

const (
	// FallbackKeywords are searched when keyword extraction fails.
	FallbackKeywords = "General Science"
	// MaxRecommendations caps the search results returned.
	MaxRecommendations = 5

	keywordInputLen = 1000
	keywordPrompt   = "Extract 3 main technical topics or keywords from this text for searching academic or documentation resources. Return only the keywords separated by spaces. Text: "
	querySuffix     = " tutorial documentation OR site:.ac.jp OR site:.edu"
)

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]web.SearchResult, error)
}

// Recommender suggests external resources for a summary.
type Recommender struct {
	gen    providers.Generator
	search Searcher
	policy retry.Policy
}

// NewRecommender returns a Recommender that extracts keywords with gen and looks
// them up with search.
func NewRecommender(gen providers.Generator, search Searcher, policy retry.Policy) *Recommender {
	return &Recommender{gen: gen, search: search, policy: policy}
}

// Keywords asks the model for search keywords, falling back to FallbackKeywords.
func (r *Recommender) Keywords(ctx context.Context, summary string) string {
	prompt := keywordPrompt + head(summary, keywordInputLen)
	kw, err := retry.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.gen.Generate(ctx, prompt)
	})
	kw = strings.Join(strings.Fields(kw), " ")
	if err != nil || kw == "" {
		log.Warn().Err(err).Msg("keyword extraction failed, using fallback")
		return FallbackKeywords
	}
	return kw
}

// Query builds the search query for keywords.
func Query(keywords string) string {
	return keywords + querySuffix
}

// Recommend returns up to MaxRecommendations resources. Failures yield an empty list.
func (r *Recommender) Recommend(ctx context.Context, summary string) []web.SearchResult {
	results, err := r.search.Search(ctx, Query(r.Keywords(ctx, summary)), MaxRecommendations)
	if err != nil {
		log.Warn().Err(err).Msg("recommendation search failed")
		return []web.SearchResult{}
	}
	if results == nil {
		results = []web.SearchResult{}
	}
	return results
}

func head(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
