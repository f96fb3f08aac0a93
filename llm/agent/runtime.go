// Package agent runs a tutor chat over a loaded corpus. Questions and answers
// are kept in a ConversationStore and published on a pubsub.Broker so a UI can
// render them as they arrive.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"lecturemate/llm"
	"lecturemate/llm/corpus"
	"lecturemate/llm/qa"
	"lecturemate/pubsub"
)

// historyTurns is how many earlier messages are replayed with each question.
const historyTurns = 6

// ErrEmptyQuestion is returned by Run for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Runtime is one chat session.
type Runtime struct {
	tutor     *qa.Tutor
	lang      llm.Language
	corpus    string
	hasCorpus bool
	sources   []string

	store      ConversationStore
	broker     *pubsub.Broker[*schema.Message]
	ctx        context.Context
	cancelFunc context.CancelFunc

	mu sync.Mutex
}

// NewRuntime starts a session answering from items, which must already be in
// lecture order.
func NewRuntime(ctx context.Context, tutor *qa.Tutor, lang llm.Language, items []llm.SourceItem) *Runtime {
	c, ok := corpus.Build(items)
	childCtx, cancel := context.WithCancel(ctx)

	return &Runtime{
		tutor:      tutor,
		lang:       lang,
		corpus:     c,
		hasCorpus:  ok,
		sources:    corpus.Sources(items),
		store:      NewMemoryStore(),
		broker:     pubsub.NewBroker[*schema.Message](),
		ctx:        childCtx,
		cancelFunc: cancel,
	}
}

// Run answers one question. The question and the answer are stored and
// published; model failures arrive as answer text.
func (r *Runtime) Run(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ctx.Err(); err != nil {
		return err
	}

	history, err := r.store.List(r.ctx)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	userMsg := schema.UserMessage(question)
	if err := r.store.Add(r.ctx, userMsg); err != nil {
		return fmt.Errorf("store question: %w", err)
	}
	r.broker.Publish(pubsub.CreatedEvent, userMsg)

	answer, _ := r.tutor.Ask(r.ctx, withHistory(question, history, r.lang), r.corpus, r.hasCorpus)
	if err := r.ctx.Err(); err != nil {
		return err
	}

	reply := schema.AssistantMessage(answer, nil)
	if err := r.store.Add(r.ctx, reply); err != nil {
		log.Warn().Err(err).Msg("failed to store answer")
	}
	r.broker.Publish(pubsub.CreatedEvent, reply)
	return nil
}

// withHistory prefixes question with the most recent earlier turns.
func withHistory(question string, history []*schema.Message, lang llm.Language) string {
	if len(history) == 0 {
		return question
	}
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}

	heading, user, assistant, now := "【これまでの会話】", "質問", "回答", "【今回の質問】"
	if lang == llm.LanguageEnglish {
		heading, user, assistant, now = "CONVERSATION SO FAR", "Question", "Answer", "CURRENT QUESTION"
	}

	var sb strings.Builder
	sb.WriteString(heading + "\n")
	for _, m := range history {
		role := user
		if m.Role == schema.Assistant {
			role = assistant
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, m.Content)
	}
	sb.WriteString("\n" + now + "\n" + question)
	return sb.String()
}

// HasCorpus reports whether any material was loaded.
func (r *Runtime) HasCorpus() bool { return r.hasCorpus }

// Sources lists the loaded material in order.
func (r *Runtime) Sources() []string { return r.sources }

// Broker returns the broker messages are published on.
func (r *Runtime) Broker() *pubsub.Broker[*schema.Message] {
	return r.broker
}

// Store returns the conversation store.
func (r *Runtime) Store() ConversationStore {
	return r.store
}

// Close cancels any running question and stops publishing.
func (r *Runtime) Close() {
	r.cancelFunc()
	r.broker.Shutdown()
}
