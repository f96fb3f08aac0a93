// Package jobs runs long summarization calls in the background. A Task can be
// cancelled, awaited through Done, and observed through events published on a
// pubsub.Broker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lecturemate/llm"
	"lecturemate/pubsub"
)

const (
	// DefaultTick is how often running tasks publish a progress update.
	DefaultTick = 10 * time.Second
	// DefaultRetention is how long a task stays listed after it ends.
	DefaultRetention = time.Hour
)

var (
	ErrNotFound = errors.New("job not found")
	ErrNotDone  = errors.New("job still running")
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Func is the work run by a Task. It reports stage names through progress and
// must return promptly once ctx is done.
type Func func(ctx context.Context, progress func(stage string)) (llm.SummaryResult, error)

// Event is the payload published for every task change.
type Event struct {
	Snapshot
}

// Snapshot is a point-in-time view of a Task.
type Snapshot struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Status    Status        `json:"status"`
	Stage     string        `json:"stage,omitempty"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
	Estimate  time.Duration `json:"estimate"`
	Remaining time.Duration `json:"remaining"`
	Percent   int           `json:"percent"`
	Error     string        `json:"error,omitempty"`
}

// Task is one background run.
type Task struct {
	ID      string
	Kind    string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time

	mu        sync.Mutex
	status    Status
	stage     string
	estimator *Estimator
	result    llm.SummaryResult
	err       error
	ended     time.Time
}

// Cancel stops the task. In-flight model calls observe the cancelled context.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.status == StatusRunning {
		t.status = StatusCancelled
	}
	t.mu.Unlock()
	t.cancel()
}

// Done is closed when the task's function has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Status returns the current state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the outcome, or ErrNotDone while the task runs.
func (t *Task) Result() (llm.SummaryResult, error) {
	select {
	case <-t.done:
	default:
		return llm.SummaryResult{}, ErrNotDone
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (llm.SummaryResult, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return llm.SummaryResult{}, ctx.Err()
	}
}

// Estimate returns the estimated total and remaining time.
func (t *Task) Estimate() (total, remaining time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimator.Update(t.now().Sub(t.Started))
}

// Snapshot returns a copy of the task state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.now().Sub(t.Started)
	total, remaining := t.estimator.Update(elapsed)
	s := Snapshot{
		ID:        t.ID,
		Kind:      t.Kind,
		Status:    t.status,
		Stage:     t.stage,
		Started:   t.Started,
		Elapsed:   elapsed,
		Estimate:  total,
		Remaining: remaining,
		Percent:   Percent(elapsed, total),
	}
	if t.status != StatusRunning {
		s.Remaining = 0
		s.Percent = 100
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// Manager starts and tracks tasks.
type Manager struct {
	broker    *pubsub.Broker[Event]
	tick      time.Duration
	retention time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewManager publishes task events on broker. tick <= 0 means DefaultTick.
func NewManager(broker *pubsub.Broker[Event], tick time.Duration) *Manager {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Manager{
		broker:    broker,
		tick:      tick,
		retention: DefaultRetention,
		now:       time.Now,
		tasks:     make(map[string]*Task),
	}
}

// Broker returns the broker events are published on.
func (m *Manager) Broker() *pubsub.Broker[Event] { return m.broker }

// Start runs fn in the background. chars sizes the initial time estimate.
func (m *Manager) Start(ctx context.Context, kind string, chars int, fn Func) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Started:   m.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		now:       m.now,
		status:    StatusRunning,
		estimator: NewEstimator(chars),
	}

	m.prune()
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	m.publish(pubsub.CreatedEvent, t)
	log.Info().Str("job", t.ID).Str("kind", kind).Int("chars", chars).Msg("job started")

	go m.ticker(ctx, t)
	go m.run(ctx, t, fn)
	return t
}

func (m *Manager) run(ctx context.Context, t *Task, fn Func) {
	defer t.cancel()

	res, err := fn(ctx, func(stage string) {
		t.mu.Lock()
		t.stage = stage
		t.mu.Unlock()
		m.publish(pubsub.UpdatedEvent, t)
	})

	t.mu.Lock()
	t.result, t.err = res, err
	switch {
	case t.status == StatusCancelled || errors.Is(err, context.Canceled):
		t.status = StatusCancelled
	case err != nil:
		t.status = StatusFailed
	default:
		t.status = StatusFinished
	}
	t.ended = m.now()
	status := t.status
	t.mu.Unlock()
	close(t.done)

	evt := pubsub.FinishedEvent
	if status == StatusCancelled {
		evt = pubsub.CancelledEvent
	}
	m.publish(evt, t)

	logEvt := log.Info()
	if err != nil && status != StatusCancelled {
		logEvt = log.Error().Err(err)
	}
	logEvt.Str("job", t.ID).Str("status", string(status)).Dur("elapsed", m.now().Sub(t.Started)).Msg("job ended")
}

func (m *Manager) ticker(ctx context.Context, t *Task) {
	tk := time.NewTicker(m.tick)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-tk.C:
			m.publish(pubsub.UpdatedEvent, t)
		}
	}
}

func (m *Manager) publish(evt pubsub.EventType, t *Task) {
	if m.broker != nil {
		m.broker.Publish(evt, Event{Snapshot: t.Snapshot()})
	}
}

// Get returns the task with id.
func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Cancel cancels the task with id.
func (m *Manager) Cancel(id string) error {
	t, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Cancel()
	return nil
}

// prune drops tasks that ended more than the retention period ago.
func (m *Manager) prune() {
	cutoff := m.now().Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		t.mu.Lock()
		expired := !t.ended.IsZero() && t.ended.Before(cutoff)
		t.mu.Unlock()
		if expired {
			delete(m.tasks, id)
		}
	}
}

// List returns snapshots of all tasks, newest first. Tasks that ended more
// than DefaultRetention ago are forgotten.
func (m *Manager) List() []Snapshot {
	m.prune()
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out
}

// Shutdown cancels every running task.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.Status() == StatusRunning {
			t.Cancel()
		}
	}
}
