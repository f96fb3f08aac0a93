package summarize

import (
	"fmt"

	"lecturemate/llm"
)

const summaryPromptJA = `あなたは「講義資料の統合マスター」です。
提供された複数の資料（レジュメ、Web記事など）の内容を完全に統合し、
「重複を整理」して「体系的」にまとめた学習ノートを作成してください。

【重要事項】
1. **情報の統合**: 複数の資料が同じトピックを扱っている場合は、一つの項目に統合すること。資料ごとにバラバラに要約してはいけません。
2. **構造化**: 大見出し・小見出しを使い、論理的な構成にすること。
3. **網羅性**: どの資料に載っていた重要な定義や例も漏らさないこと。
4. **出典**: 各セクションの末尾に、根拠となった資料のソース名を（出典: ...）の形で記すこと。
5. **数式**: 数式・記号・変数名は原文の表記のまま一字一句変えずに残すこと。
6. **自己完結**: 元の資料を見なくても、このノートだけで学習が完結するように詳しく書くこと。

【出力フォーマット】
# [統合タイトル]
## 1. [トピック名]
- [詳細解説]
- [詳細解説]
（出典: [ソース名]）
...

【統合する入力資料】
%s
`

const integrationPromptJA = `あなたは優秀なまとめの専門家です。
以下の複数の資料から、最も重要なポイントと全体の流れをまとめてください。

【ルール】
1. **要点抽出**: 全体を通じて最も大切な3~5つのポイントを明確にすること。
2. **全体像**: 各資料の関係性や流れを示すこと。
3. **実践的**: 学んだ内容をどう活かすかまで言及すること。
4. **簡潔性**: 長くなりすぎず、5~10分で読める長さにすること。

【出力フォーマット】
# 📌 全体まとめ

## 【最重要ポイント】
- ポイント1
- ポイント2
- ...

## 【全体の流れ】
[ストーリー形式で資料全体の流れを説明]

## 【実践的応用】
[学んだことをどう使うか]

【統合する入力資料】
%s
`

const summaryPromptEN = `You are a master at consolidating lecture materials.
Merge the provided materials (handouts, web articles, feeds) into one systematic
study note with duplicates removed.

RULES
1. **Merge**: when several sources cover the same topic, combine them into a single section. Never summarize source by source.
2. **Structure**: use headings and subheadings in a logical order.
3. **Coverage**: keep every important definition and example from every source.
4. **Sources**: end each section with the source names it draws on, as (Sources: ...).
5. **Math**: keep formulas, symbols and variable names exactly as written.
6. **Self-contained**: a reader must be able to study from this note alone.

OUTPUT FORMAT
# [Unified title]
## 1. [Topic]
- [Detailed explanation]
- [Detailed explanation]
(Sources: [source names])
...

MATERIALS
%s
`

const integrationPromptEN = `You are an expert at writing overviews.
From the materials below, write the most important points and the overall flow.

RULES
1. **Key points**: identify the 3-5 most important points across all materials.
2. **Big picture**: show how the sources relate and the order they build on each other.
3. **Practical**: explain how the material can be applied.
4. **Brevity**: it must be readable in 5-10 minutes.

OUTPUT FORMAT
# 📌 Overview

## Key points
- Point 1
- Point 2
- ...

## Overall flow
[The story of the materials from start to finish]

## Practical application
[How to use what was learned]

MATERIALS
%s
`

type promptSet struct {
	summary          string
	integration      string
	summaryLabel     string
	integrationLabel string
}

var prompts = map[llm.Language]promptSet{
	llm.LanguageJapanese: {
		summary:          summaryPromptJA,
		integration:      integrationPromptJA,
		summaryLabel:     "要約生成",
		integrationLabel: "まとめ生成",
	},
	llm.LanguageEnglish: {
		summary:          summaryPromptEN,
		integration:      integrationPromptEN,
		summaryLabel:     "Summary",
		integrationLabel: "Overview",
	},
}

func promptsFor(lang llm.Language) promptSet {
	if p, ok := prompts[lang]; ok {
		return p
	}
	return prompts[llm.LanguageJapanese]
}

// SummaryPrompt renders the detailed summary prompt for corpus.
func SummaryPrompt(lang llm.Language, corpus string) string {
	return fmt.Sprintf(promptsFor(lang).summary, corpus)
}

// IntegrationPrompt renders the overview prompt for an already truncated corpus.
func IntegrationPrompt(lang llm.Language, corpusPrefix string) string {
	return fmt.Sprintf(promptsFor(lang).integration, corpusPrefix)
}
