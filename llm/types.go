package llm

import "errors"

// UnorderedLecture is the lecture number given to items whose order could not be inferred.
// Such items sort after every numbered lecture.
const UnorderedLecture = 999

// ErrEmptyCorpus reports that no source survived ingestion.
var ErrEmptyCorpus = errors.New("no content available")

// SourceItem is one unit of ingested text paired with the label it came from
// (a filename or a URL).
type SourceItem struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// OrderedSourceItem is a SourceItem annotated with its inferred lecture number and
// its position in the raw listing.
type OrderedSourceItem struct {
	SourceItem
	Order         int `json:"order"`
	OriginalIndex int `json:"original_index"`
}

// SummaryResult holds the two summarization passes. Both fields are always readable:
// when a pass fails its field holds a user-facing message and the matching error
// field records why.
type SummaryResult struct {
	Summary     string `json:"summary"`
	Integration string `json:"integration"`

	SummaryErr     error `json:"-"`
	IntegrationErr error `json:"-"`
}

// Failed reports whether either pass ended in an error.
func (r SummaryResult) Failed() bool {
	return r.SummaryErr != nil || r.IntegrationErr != nil
}

// Provider selects the model backend.
type Provider string

const (
	ProviderExtractOnly Provider = "extract_only"
	ProviderGemini      Provider = "gemini"
	ProviderOpenAI      Provider = "openai"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderExtractOnly, ProviderGemini, ProviderOpenAI:
		return true
	}
	return false
}

// Language selects the language of generated text.
type Language string

const (
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"
)

// ParseLanguage maps free-form input to a Language, defaulting to Japanese.
func ParseLanguage(s string) Language {
	switch s {
	case "en", "EN", "english", "English":
		return LanguageEnglish
	default:
		return LanguageJapanese
	}
}
