// Package notify delivers transient user-facing notifications about order
// outcomes and alerts.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindAlert   Kind = "alert"
)

// Notification is one user-facing message.
type Notification struct {
	Kind      Kind
	Title     string
	Message   string
	RequestID string
	Data      map[string]interface{}
	Timestamp time.Time
}

// Notifier receives notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, Notification) {})

// Multi fans a notification out to several notifiers.
type Multi struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewMulti creates a Multi over the given notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Add appends a notifier.
func (m *Multi) Add(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Notify stamps n if needed and delivers it to every notifier in order.
func (m *Multi) Notify(ctx context.Context, n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	m.mu.RLock()
	notifiers := m.notifiers
	m.mu.RUnlock()

	for _, notifier := range notifiers {
		notifier.Notify(ctx, n)
	}
}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify logs n at a level matching its kind.
func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	var event *zerolog.Event
	switch n.Kind {
	case KindError:
		event = l.logger.Error()
	case KindWarning:
		event = l.logger.Warn()
	default:
		event = l.logger.Info()
	}
	event = event.Str("kind", string(n.Kind)).Str("title", n.Title)
	if n.RequestID != "" {
		event = event.Str("rid", n.RequestID)
	}
	if len(n.Data) > 0 {
		event = event.Fields(n.Data)
	}
	event.Msg(n.Message)
}
