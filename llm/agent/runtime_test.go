package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"lecturemate/llm"
	"lecturemate/llm/qa"
	"lecturemate/llm/retry"
	"lecturemate/pubsub"
)

type recordingGen struct {
	mu      sync.Mutex
	prompts []string
	replies []string
}

func (g *recordingGen) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	reply := "answer"
	if len(g.replies) > 0 {
		reply, g.replies = g.replies[0], g.replies[1:]
	}
	return reply, nil
}

func policy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Sleep: func(context.Context, time.Duration) error { return nil }}
}

func TestRuntimeRun(t *testing.T) {
	gen := &recordingGen{replies: []string{"微分の定義です", "積分の定義です"}}
	items := []llm.SourceItem{{Source: "第1回.pdf", Content: "微分と積分"}}
	rt := NewRuntime(context.Background(), qa.NewTutor(gen, policy(), llm.LanguageJapanese), llm.LanguageJapanese, items)
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events := rt.Broker().Subscribe(ctx)

	if err := rt.Run("微分とは？"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := rt.Run("積分は？"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs, _ := rt.Store().List(ctx)
	if len(msgs) != 4 || msgs[1].Role != schema.Assistant || msgs[3].Content != "積分の定義です" {
		t.Fatalf("stored messages = %+v", msgs)
	}

	if strings.Contains(gen.prompts[0], "【これまでの会話】") {
		t.Fatal("first question should carry no history")
	}
	if !strings.Contains(gen.prompts[1], "回答: 微分の定義です") || !strings.Contains(gen.prompts[1], "【今回の質問】\n積分は？") {
		t.Fatalf("second prompt = %q", gen.prompts[1])
	}

	var got []pubsub.Event[*schema.Message]
	for len(got) < 4 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-ctx.Done():
			t.Fatalf("received %d events", len(got))
		}
	}
	if got[0].Payload.Role != schema.User || got[1].Payload.Role != schema.Assistant {
		t.Fatalf("events = %+v", got)
	}
}

func TestRuntimeWithoutCorpus(t *testing.T) {
	gen := &recordingGen{}
	rt := NewRuntime(context.Background(), qa.NewTutor(gen, policy(), llm.LanguageJapanese), llm.LanguageJapanese, nil)
	defer rt.Close()

	if rt.HasCorpus() {
		t.Fatal("HasCorpus = true")
	}
	if err := rt.Run("質問"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs, _ := rt.Store().List(context.Background())
	if msgs[len(msgs)-1].Content != qa.NoMaterials {
		t.Fatalf("answer = %q", msgs[len(msgs)-1].Content)
	}
	if len(gen.prompts) != 0 {
		t.Fatal("model called without a corpus")
	}
}

func TestRuntimeRejectsBlankAndClosed(t *testing.T) {
	rt := NewRuntime(context.Background(), qa.NewTutor(&recordingGen{}, policy(), llm.LanguageJapanese), llm.LanguageJapanese, nil)
	if err := rt.Run("  "); err != ErrEmptyQuestion {
		t.Fatalf("blank err = %v", err)
	}
	rt.Close()
	if err := rt.Run("q"); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestMemoryStoreWindowAndCompression(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_ = s.Add(ctx, schema.UserMessage("q"))
	}
	msgs, _ := s.List(ctx)
	if len(msgs) != 20 {
		t.Fatalf("window = %d", len(msgs))
	}

	long := strings.Repeat("あ", 1500) + "。" + strings.Repeat("い", 1500)
	_ = s.Add(ctx, schema.AssistantMessage(long, nil))
	msgs, _ = s.List(ctx)
	last := msgs[len(msgs)-1].Content
	if !strings.HasPrefix(last, strings.Repeat("あ", 1500)+"。\n\n[省略: 元の回答は3001文字]") {
		t.Fatalf("compressed answer tail = %q", last[len(last)-40:])
	}

	_ = s.Clear(ctx)
	if msgs, _ := s.List(ctx); len(msgs) != 0 {
		t.Fatal("Clear kept messages")
	}
}
