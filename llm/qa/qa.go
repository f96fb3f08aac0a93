// Package qa answers questions against a lecture corpus and recommends external
// resources for a summary.
package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"lecturemate/llm"
	"lecturemate/llm/providers"
	"lecturemate/llm/retry"
)

const (
	// NoMaterials is the answer given when no corpus is loaded.
	NoMaterials = "資料が読み込まれていません。"
	// NoMaterialsEN is the English variant of NoMaterials.
	NoMaterialsEN = "No materials are loaded."

	// AnswerTemperature keeps tutor answers close to the materials.
	AnswerTemperature = float32(0.1)
)

const tutorPromptJA = `あなたは優秀なAIチューターです。
以下の【講義資料・参考情報】の全てを前提知識として、ユーザーの質問に答えてください。

【ルール】
1. 資料に書かれている内容に基づいて回答すること。
2. 資料にないことは「資料には記載がありません」と正直に伝えること。
3. 必要に応じて、参照した資料のソース名（Source: ...）を引用して根拠を示すこと。

【講義資料・参考情報】
%s

【ユーザーの質問】
%s
`

const tutorPromptEN = `You are an excellent AI tutor.
Answer the user's question using everything in the MATERIALS below as background knowledge.

RULES
1. Base the answer on what the materials say.
2. If the materials do not cover it, say honestly that the materials do not mention it.
3. Where useful, cite the source names (Source: ...) you relied on.

MATERIALS
%s

QUESTION
%s
`

// Tutor answers questions about a corpus.
type Tutor struct {
	gen    providers.Generator
	policy retry.Policy
	lang   llm.Language
}

// NewTutor returns a Tutor that asks gen at a low temperature.
func NewTutor(gen providers.Generator, policy retry.Policy, lang llm.Language) *Tutor {
	return &Tutor{
		gen:    providers.WithTemperature(gen, AnswerTemperature),
		policy: policy,
		lang:   lang,
	}
}

// Prompt renders the tutor prompt.
func (t *Tutor) Prompt(question, corpus string) string {
	if t.lang == llm.LanguageEnglish {
		return fmt.Sprintf(tutorPromptEN, corpus, question)
	}
	return fmt.Sprintf(tutorPromptJA, corpus, question)
}

// Ask answers question from corpus. hasCorpus distinguishes an empty corpus from
// no corpus at all; without one the model is not called. The source list is
// always empty: citations are left in the answer text.
func (t *Tutor) Ask(ctx context.Context, question, corpus string, hasCorpus bool) (string, []string) {
	sources := []string{}
	if !hasCorpus || corpus == "" {
		if t.lang == llm.LanguageEnglish {
			return NoMaterialsEN, sources
		}
		return NoMaterials, sources
	}

	label := "回答生成"
	if t.lang == llm.LanguageEnglish {
		label = "Answer"
	}
	prompt := t.Prompt(strings.TrimSpace(question), corpus)
	answer, err := retry.Text(ctx, t.policy, t.lang, label, func(ctx context.Context) (string, error) {
		return t.gen.Generate(ctx, prompt)
	})
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
	}
	return answer, sources
}
