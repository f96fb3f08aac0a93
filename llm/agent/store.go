package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ConversationStore keeps the messages of one tutor chat.
type ConversationStore interface {
	// Add appends a message.
	Add(ctx context.Context, msg *schema.Message) error
	// List returns the messages, oldest first.
	List(ctx context.Context) ([]*schema.Message, error)
	// Clear forgets every message.
	Clear(ctx context.Context) error
}

// MemoryStore is an in-memory ConversationStore with a sliding window.
type MemoryStore struct {
	mu          sync.RWMutex
	msgs        []*schema.Message
	maxMessages int // messages kept
	maxAnswer   int // runes kept per assistant message
}

// NewMemoryStore keeps the last 20 messages and caps stored answers at 2000 runes.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		msgs:        make([]*schema.Message, 0),
		maxMessages: 20,
		maxAnswer:   2000,
	}
}

// Add appends msg, compressing long answers and dropping the oldest messages
// beyond the window.
func (s *MemoryStore) Add(ctx context.Context, msg *schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Role == schema.Assistant {
		msg = s.compressAnswer(msg)
	}

	s.msgs = append(s.msgs, msg)

	if len(s.msgs) > s.maxMessages {
		s.msgs = s.msgs[len(s.msgs)-s.maxMessages:]
	}
	return nil
}

// compressAnswer shortens an answer that only needs to serve as context for
// follow-up questions. It cuts at a sentence or line break when one is found
// in the second half of the kept text.
func (s *MemoryStore) compressAnswer(msg *schema.Message) *schema.Message {
	runes := []rune(msg.Content)
	if len(runes) <= s.maxAnswer {
		return msg
	}

	kept := string(runes[:s.maxAnswer])
	cutoff := len(kept)
	for _, bp := range []string{"。\n", ".\n", "。", ". ", "\n\n", "\n"} {
		if idx := strings.LastIndex(kept, bp); idx > len(kept)/2 {
			cutoff = idx + len(bp)
			break
		}
	}

	return &schema.Message{
		Role:    msg.Role,
		Content: kept[:cutoff] + fmt.Sprintf("\n\n[省略: 元の回答は%d文字]", len(runes)),
	}
}

// List returns a copy of the stored messages.
func (s *MemoryStore) List(ctx context.Context) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*schema.Message, len(s.msgs))
	copy(result, s.msgs)
	return result, nil
}

// Clear removes every message.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	return nil
}
