// Package history remembers recent summarization runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lecturemate/llm"
)

const (
	// DefaultMaxEntries is how many runs are kept.
	DefaultMaxEntries = 50
	// DefaultShown is how many runs are listed by default.
	DefaultShown = 5

	previewSources = 3
)

var ErrNotFound = errors.New("history entry not found")

// Entry records one run.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Category    string    `json:"category"`
	Files       int       `json:"files"`
	Sources     []string  `json:"sources"`
	Provider    string    `json:"provider"`
	Language    string    `json:"language"`
	Summary     string    `json:"summary"`
	Integration string    `json:"integration"`
}

// NewEntry builds an Entry for a finished run.
func NewEntry(category string, provider llm.Provider, lang llm.Language, sources []string, res llm.SummaryResult) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Category:    category,
		Files:       len(sources),
		Sources:     append([]string(nil), sources...),
		Provider:    string(provider),
		Language:    string(lang),
		Summary:     res.Summary,
		Integration: res.Integration,
	}
}

// Preview returns the first three sources.
func (e Entry) Preview() []string {
	if len(e.Sources) > previewSources {
		return e.Sources[:previewSources]
	}
	return e.Sources
}

// Label renders the one-line heading shown in listings.
func (e Entry) Label() string {
	return fmt.Sprintf("%s - %s", e.Timestamp.Format("2006-01-02 15:04"), e.Category)
}

// Store persists entries, newest first.
type Store interface {
	Add(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Close() error
}

// Config selects and tunes the backend.
type Config struct {
	Backend    string
	MaxEntries int
	Redis      RedisConfig
}

// Open returns the configured Store. An empty backend means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxEntries), nil
	case "redis":
		rc := cfg.Redis
		if rc.MaxEntries == 0 {
			rc.MaxEntries = cfg.MaxEntries
		}
		s, err := NewRedisStore(ctx, rc)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// NewMemoryStore keeps up to limit entries; <= 0 means DefaultMaxEntries.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	return &MemoryStore{max: limit}
}

func (s *MemoryStore) Add(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > s.max {
		s.entries = s.entries[:s.max]
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, n int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	return append(make([]Entry, 0, n), s.entries[:n]...), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MemoryStore) Close() error { return nil }
