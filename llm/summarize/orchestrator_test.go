package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lecturemate/llm"
	"lecturemate/llm/retry"
)

type scriptedGen struct {
	mu      sync.Mutex
	prompts []string
	reply   func(n int, prompt string) (string, error)
}

func (g *scriptedGen) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	n := len(g.prompts)
	g.mu.Unlock()
	return g.reply(n, prompt)
}

type sleeps struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func newTestOrchestrator(gen *scriptedGen, s *sleeps) *Orchestrator {
	return New(gen, Options{
		Policy:  retry.Policy{MaxAttempts: 3, BaseDelay: 30 * time.Second, Sleep: s.sleep},
		PassGap: 5 * time.Second,
		Sleep:   s.sleep,
	})
}

func TestSummarizeEmpty(t *testing.T) {
	gen := &scriptedGen{reply: func(int, string) (string, error) { return "unused", nil }}
	res := newTestOrchestrator(gen, &sleeps{}).Summarize(context.Background(), nil, llm.LanguageJapanese)

	if res.Summary != NoContentSummary || res.Integration != NoContentIntegration {
		t.Fatalf("unexpected result %+v", res)
	}
	if !errors.Is(res.SummaryErr, llm.ErrEmptyCorpus) {
		t.Fatalf("SummaryErr = %v", res.SummaryErr)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("model called %d times for empty input", len(gen.prompts))
	}
}

func TestSummarizeTwoPasses(t *testing.T) {
	gen := &scriptedGen{reply: func(n int, _ string) (string, error) {
		if n == 1 {
			return "detailed", nil
		}
		return "overview", nil
	}}
	s := &sleeps{}
	var stages []Stage
	o := newTestOrchestrator(gen, s).WithProgress(func(st Stage) { stages = append(stages, st) })

	long := strings.Repeat("式", 5000)
	items := []llm.SourceItem{{Content: "Intro $E=mc^2$", Source: "第1回.pdf"}, {Content: long, Source: "第2回.txt"}}
	res := o.Summarize(context.Background(), items, llm.LanguageJapanese)

	if res.Summary != "detailed" || res.Integration != "overview" || res.Failed() {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("model called %d times, want 2", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], long) || !strings.Contains(gen.prompts[0], "--- Source: 第2回.txt ---") {
		t.Fatal("summary prompt does not carry the full corpus")
	}
	if strings.Contains(gen.prompts[1], long) {
		t.Fatal("integration prompt carries the full corpus")
	}
	if !strings.Contains(gen.prompts[1], "Intro $E=mc^2$") {
		t.Fatal("integration prompt lost the corpus opening")
	}
	if len(s.waits) != 1 || s.waits[0] != 5*time.Second {
		t.Fatalf("waits = %v, want one 5s pass gap", s.waits)
	}
	want := []Stage{StageSummary, StageWaiting, StageIntegration, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v", stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}
}

func TestSummarizePassesFailIndependently(t *testing.T) {
	gen := &scriptedGen{reply: func(_ int, prompt string) (string, error) {
		if strings.Contains(prompt, "統合マスター") {
			return "", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
		}
		return "overview", nil
	}}
	s := &sleeps{}
	res := newTestOrchestrator(gen, s).Summarize(context.Background(),
		[]llm.SourceItem{{Content: "X", Source: "a.txt"}}, llm.LanguageJapanese)

	var rl *retry.RateLimitError
	if !errors.As(res.SummaryErr, &rl) {
		t.Fatalf("SummaryErr = %v, want RateLimitError", res.SummaryErr)
	}
	if !strings.HasPrefix(res.Summary, "⚠️ 要約生成エラー") {
		t.Fatalf("Summary = %q", res.Summary)
	}
	if res.Integration != "overview" || res.IntegrationErr != nil {
		t.Fatalf("integration pass did not run independently: %+v", res)
	}
	// 3 attempts on the summary pass, 1 on integration
	if len(gen.prompts) != 4 {
		t.Fatalf("model called %d times, want 4", len(gen.prompts))
	}
	// 2 backoff waits plus the pass gap
	if len(s.waits) != 3 {
		t.Fatalf("waits = %v", s.waits)
	}
}

func TestSummarizeEnglishPrompts(t *testing.T) {
	gen := &scriptedGen{reply: func(int, string) (string, error) { return "", errors.New("invalid argument") }}
	res := newTestOrchestrator(gen, &sleeps{}).Summarize(context.Background(),
		[]llm.SourceItem{{Content: "X", Source: "a.txt"}}, llm.LanguageEnglish)

	if !strings.Contains(gen.prompts[0], "MATERIALS") {
		t.Fatalf("expected English prompt, got %q", gen.prompts[0])
	}
	if !strings.HasPrefix(res.Summary, "⚠️ Summary error:") || !strings.HasPrefix(res.Integration, "⚠️ Overview error:") {
		t.Fatalf("unexpected messages %+v", res)
	}
}

func TestSummarizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGen{reply: func(int, string) (string, error) {
		cancel()
		return "detailed", nil
	}}
	res := newTestOrchestrator(gen, &sleeps{}).Summarize(ctx,
		[]llm.SourceItem{{Content: "X", Source: "a.txt"}}, llm.LanguageJapanese)

	if res.Summary != "detailed" {
		t.Fatalf("Summary = %q", res.Summary)
	}
	if !errors.Is(res.IntegrationErr, context.Canceled) {
		t.Fatalf("IntegrationErr = %v, want context.Canceled", res.IntegrationErr)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("model called %d times after cancel", len(gen.prompts))
	}
}
