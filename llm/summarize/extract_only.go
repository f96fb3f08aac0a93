package summarize

import "lecturemate/llm"

// Messages shown in place of model output when no provider is selected.
const (
	ExtractOnlySummary     = "⚠️ テキスト抽出モード: AI連携を選択すると、このアプリ内で自動的に要約を生成できます。"
	ExtractOnlyIntegration = "⚠️ テキスト抽出モード: 抽出されたテキストは「抽出テキスト」タブで確認できます。"
)

// ExtractOnlyResult is the result of a run that only extracted text.
func ExtractOnlyResult() llm.SummaryResult {
	return llm.SummaryResult{
		Summary:     ExtractOnlySummary,
		Integration: ExtractOnlyIntegration,
	}
}
