package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"lecturemate/llm"
)

// Category names the class of a failed call for user-facing messages.
type Category string

const (
	CategoryRateLimit Category = "rate_limit"
	CategoryAuth      Category = "authentication"
	CategoryTimeout   Category = "timeout"
	CategoryCanceled  Category = "canceled"
	CategoryServer    Category = "server"
	CategoryProvider  Category = "provider"
)

// Classify maps an error returned by Do to a Category.
func Classify(err error) Category {
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return CategoryRateLimit
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	}

	switch code := statusOf(err); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CategoryAuth
	case code >= 500:
		return CategoryServer
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "api key"), strings.Contains(text, "api_key"),
		strings.Contains(text, "unauthorized"), strings.Contains(text, "permission denied"):
		return CategoryAuth
	case strings.Contains(text, "timeout"), strings.Contains(text, "deadline"):
		return CategoryTimeout
	}
	return CategoryProvider
}

func statusOf(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

var categoryText = map[llm.Language]map[Category]string{
	llm.LanguageJapanese: {
		CategoryRateLimit: "API のレート制限に達しました。30秒ほど待ってからお試しください。",
		CategoryAuth:      "APIキーが無効か、権限がありません。",
		CategoryTimeout:   "応答がタイムアウトしました。",
		CategoryCanceled:  "キャンセルされました。",
		CategoryServer:    "AIサービス側でエラーが発生しました。",
		CategoryProvider:  "AIサービスの呼び出しに失敗しました。",
	},
	llm.LanguageEnglish: {
		CategoryRateLimit: "the API rate limit was reached. Please wait about 30 seconds and try again.",
		CategoryAuth:      "the API key is invalid or lacks permission.",
		CategoryTimeout:   "the request timed out.",
		CategoryCanceled:  "the request was canceled.",
		CategoryServer:    "the AI service returned a server error.",
		CategoryProvider:  "the AI service call failed.",
	},
}

// Message renders err as the user-facing string shown in place of a model
// response. label names the failed step, e.g. "要約生成".
func Message(lang llm.Language, label string, err error) string {
	texts, ok := categoryText[lang]
	if !ok {
		texts = categoryText[llm.LanguageJapanese]
	}
	reason := texts[Classify(err)]

	if lang == llm.LanguageEnglish {
		return fmt.Sprintf("⚠️ %s error: %s", label, reason)
	}
	return fmt.Sprintf("⚠️ %sエラー: %s", label, reason)
}

// Text runs fn under the policy and returns either its output or the matching
// user-facing message. The typed error is returned alongside for callers that
// need it.
func Text(ctx context.Context, p Policy, lang llm.Language, label string, fn func(context.Context) (string, error)) (string, error) {
	out, err := Do(ctx, p, fn)
	if err != nil {
		return Message(lang, label, err), err
	}
	return out, nil
}
