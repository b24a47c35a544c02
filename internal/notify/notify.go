// Package notify delivers transient notices produced by the workflows.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind names the action a notice reports on
type Kind string

const (
	KindSearch     Kind = "search"
	KindCredential Kind = "credential"
	KindAccount    Kind = "account"
	KindDelete     Kind = "delete"
)

// Outcome is the severity of a notice
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "error"
	Info    Outcome = "info"
)

// Notice is a one-shot message for the view layer
type Notice struct {
	Kind    Kind      `json:"kind"`
	Outcome Outcome   `json:"outcome"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notices
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// DefaultQueueSize bounds a Queue created with a non-positive size
const DefaultQueueSize = 32

// Queue buffers notices until the view drains them. When full, the oldest
// notice is dropped.
type Queue struct {
	mu      sync.Mutex
	notices []Notice
	max     int
}

// NewQueue creates a queue holding at most max notices
func NewQueue(max int) *Queue {
	if max <= 0 {
		max = DefaultQueueSize
	}
	return &Queue{max: max}
}

func (q *Queue) Notify(_ context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.notices) == q.max {
		q.notices = q.notices[1:]
	}
	q.notices = append(q.notices, n)
}

// Drain returns the buffered notices in arrival order and empties the queue
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	if out == nil {
		return []Notice{}
	}
	return out
}

// Logger writes notices to a structured log
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a notifier that logs every notice
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Notify(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	if n.Outcome == Failure {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "notice",
		slog.String("kind", string(n.Kind)),
		slog.String("outcome", string(n.Outcome)),
		slog.String("message", n.Message),
	)
}

// Fanout delivers every notice to each notifier in order
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, notifier := range f {
		notifier.Notify(ctx, n)
	}
}

// Discard drops every notice
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notice) {}
