// Package summarize runs the two model passes over a lecture corpus: a detailed
// merged summary followed by a short overview.
package summarize

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"lecturemate/llm"
	"lecturemate/llm/corpus"
	"lecturemate/llm/providers"
	"lecturemate/llm/retry"
)

const (
	// DefaultPassGap is the pause between the summary and integration passes
	DefaultPassGap = 5 * time.Second
	// DefaultIntegrationPrefix is how many characters of the corpus the
	// integration pass sees
	DefaultIntegrationPrefix = 3000

	// NoContentSummary and NoContentIntegration are returned for an empty source list.
	NoContentSummary     = "No content to summarize."
	NoContentIntegration = "No content available."
)

// Stage identifies a step of a summarization run.
type Stage string

const (
	StageSummary     Stage = "summary"
	StageWaiting     Stage = "waiting"
	StageIntegration Stage = "integration"
	StageDone        Stage = "done"
)

// Options tunes an Orchestrator. Zero values use the defaults.
type Options struct {
	Policy            retry.Policy
	PassGap           time.Duration
	IntegrationPrefix int
	// Sleep waits out the pass gap; defaults to retry.ContextSleep.
	Sleep retry.SleepFunc
	// Progress is called as each stage begins.
	Progress func(Stage)
}

// Orchestrator produces a SummaryResult from ordered sources.
type Orchestrator struct {
	gen  providers.Generator
	opts Options
}

// New returns an Orchestrator that sends prompts to gen.
func New(gen providers.Generator, opts Options) *Orchestrator {
	if opts.Policy.MaxAttempts == 0 && opts.Policy.BaseDelay == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.PassGap < 0 {
		opts.PassGap = 0
	}
	if opts.IntegrationPrefix <= 0 {
		opts.IntegrationPrefix = DefaultIntegrationPrefix
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.ContextSleep
	}
	return &Orchestrator{gen: gen, opts: opts}
}

// WithProgress returns a copy of o that reports stages to fn.
func (o *Orchestrator) WithProgress(fn func(Stage)) *Orchestrator {
	opts := o.opts
	opts.Progress = fn
	return &Orchestrator{gen: o.gen, opts: opts}
}

// Summarize runs both passes over items, which must already be in lecture order.
// It never fails: a pass that errors leaves a user-facing message in its field and
// the typed error alongside it.
func (o *Orchestrator) Summarize(ctx context.Context, items []llm.SourceItem, lang llm.Language) llm.SummaryResult {
	text, ok := corpus.Build(items)
	if !ok {
		return llm.SummaryResult{
			Summary:        NoContentSummary,
			Integration:    NoContentIntegration,
			SummaryErr:     llm.ErrEmptyCorpus,
			IntegrationErr: llm.ErrEmptyCorpus,
		}
	}

	p := promptsFor(lang)
	var res llm.SummaryResult

	log.Info().
		Int("sources", len(items)).
		Int("chars", utf8.RuneCountInString(text)).
		Str("language", string(lang)).
		Msg("generating summary")
	o.report(StageSummary)
	res.Summary, res.SummaryErr = retry.Text(ctx, o.opts.Policy, lang, p.summaryLabel, o.call(SummaryPrompt(lang, text)))
	if res.SummaryErr != nil {
		log.Error().Err(res.SummaryErr).Msg("summary pass failed")
	}

	if o.opts.PassGap > 0 {
		o.report(StageWaiting)
		// a cancelled wait surfaces as a cancelled integration call below
		_ = o.opts.Sleep(ctx, o.opts.PassGap)
	}

	o.report(StageIntegration)
	prefix := truncate(text, o.opts.IntegrationPrefix)
	res.Integration, res.IntegrationErr = retry.Text(ctx, o.opts.Policy, lang, p.integrationLabel, o.call(IntegrationPrompt(lang, prefix)))
	if res.IntegrationErr != nil {
		log.Error().Err(res.IntegrationErr).Msg("integration pass failed")
	}

	o.report(StageDone)
	log.Info().Bool("failed", res.Failed()).Msg("summary finished")
	return res
}

func (o *Orchestrator) call(prompt string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return o.gen.Generate(ctx, prompt)
	}
}

func (o *Orchestrator) report(s Stage) {
	if o.opts.Progress != nil {
		o.opts.Progress(s)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
