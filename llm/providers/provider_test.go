package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"lecturemate/llm"
)

type fakeChat struct {
	reply  string
	err    error
	prompt string
	opts   int
}

func (f *fakeChat) Generate(_ context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if len(in) > 0 {
		f.prompt = in[len(in)-1].Content
	}
	f.opts = len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChat) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatGenerator(t *testing.T) {
	chat := &fakeChat{reply: "まとめ"}
	g := NewChatGenerator(chat, "fake")

	out, err := g.Generate(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "まとめ" || chat.prompt != "summarize this" {
		t.Fatalf("out = %q, prompt = %q", out, chat.prompt)
	}

	tuned := WithTemperature(g, 0.1)
	if _, err := tuned.Generate(context.Background(), "q"); err != nil {
		t.Fatalf("tuned Generate: %v", err)
	}
	if chat.opts != 1 {
		t.Fatalf("tuned generator passed %d options, want 1", chat.opts)
	}
	if len(g.opts) != 0 {
		t.Fatal("WithTemperature modified the original generator")
	}
}

func TestChatGeneratorWrapsError(t *testing.T) {
	cause := errors.New("status code: 429")
	g := NewChatGenerator(&fakeChat{err: cause}, "fake")
	_, err := g.Generate(context.Background(), "x")
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped cause", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{Provider: llm.ProviderExtractOnly}); !errors.Is(err, ErrExtractOnly) {
		t.Fatalf("extract_only err = %v", err)
	}
	if _, err := New(ctx, Config{Provider: llm.ProviderOpenAI}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("missing key err = %v", err)
	}
	if _, err := New(ctx, Config{Provider: "claude", APIKey: "k"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestMaskAPIKey(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"short":           "short",
		"123456789":       "123456789",
		"sk-abcdefgh1234": "sk-a*******1234",
	}
	for in, want := range cases {
		if got := MaskAPIKey(in); got != want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTracingDisabled(t *testing.T) {
	shutdown, err := InstallTracing(context.Background(), TracingConfig{APIToken: "tok"})
	if err != nil {
		t.Fatalf("InstallTracing: %v", err)
	}
	shutdown(context.Background())
}
