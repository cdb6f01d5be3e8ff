package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 6 * time.Second

// Toasts keeps the most recent notifications visible for a fixed TTL.
type Toasts struct {
	mu         sync.RWMutex
	items      []Notification
	maxVisible int
	ttl        time.Duration
	now        func() time.Time
}

// NewToasts creates a toast overlay. Non-positive values take defaults.
func NewToasts(maxVisible int, ttl time.Duration) *Toasts {
	if maxVisible <= 0 {
		maxVisible = 5
	}
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &Toasts{
		items:      make([]Notification, 0, maxVisible),
		maxVisible: maxVisible,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Notify adds n to the overlay, dropping expired and overflowing entries.
func (t *Toasts) Notify(_ context.Context, n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}

	active := make([]Notification, 0, len(t.items)+1)
	for _, item := range t.items {
		if now.Sub(item.Timestamp) < t.ttl {
			active = append(active, item)
		}
	}
	active = append(active, n)

	if len(active) > t.maxVisible {
		active = active[len(active)-t.maxVisible:]
	}
	t.items = active
}

// Active returns the notifications that have not expired, oldest first.
func (t *Toasts) Active() []Notification {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	visible := make([]Notification, 0, len(t.items))
	for _, n := range t.items {
		if now.Sub(n.Timestamp) < t.ttl {
			visible = append(visible, n)
		}
	}
	return visible
}

// Clear removes every toast.
func (t *Toasts) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = t.items[:0]
}

// Render draws the active toasts as a boxed block, or "" when none are active.
func (t *Toasts) Render(colorEnabled bool) string {
	visible := t.Active()
	if len(visible) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("┌─ Notifications ─────────────────────────────────────────────────────────┐\n")
	for _, n := range visible {
		line := Format(n, false)
		if len([]rune(line)) > 75 {
			line = string([]rune(line)[:72]) + "..."
		}
		if colorEnabled {
			line = colorFor(n.Kind) + line + colorReset
		}
		sb.WriteString(fmt.Sprintf("│ %-75s │\n", line))
	}
	sb.WriteString("└─────────────────────────────────────────────────────────────────────────┘")
	return sb.String()
}

const colorReset = "\033[0m"

func colorFor(k Kind) string {
	switch k {
	case KindSuccess:
		return "\033[32m" // Green
	case KindWarning, KindAlert:
		return "\033[33m" // Yellow
	case KindError:
		return "\033[31m" // Red
	}
	return "\033[37m" // White
}

func label(k Kind) string {
	switch k {
	case KindSuccess:
		return "✅ OK"
	case KindWarning:
		return "⚠️  NOTICE"
	case KindError:
		return "❌ ERROR"
	case KindAlert:
		return "🔔 ALERT"
	}
	return "ℹ️  INFO"
}

// Format renders a notification as a single line.
func Format(n Notification, colorEnabled bool) string {
	var sb strings.Builder

	color, reset := "", ""
	if colorEnabled {
		color, reset = colorFor(n.Kind), colorReset
	}
	sb.WriteString(fmt.Sprintf("%s[%s] %s%s", color, n.Timestamp.Format("15:04:05"), label(n.Kind), reset))

	if n.Title != "" {
		sb.WriteString(" | " + n.Title)
	}
	if n.Message != "" {
		sb.WriteString(" | " + n.Message)
	}
	if n.RequestID != "" {
		sb.WriteString(" (rid " + n.RequestID + ")")
	}
	return sb.String()
}

// Writer prints every notification as a line to w.
type Writer struct {
	mu           sync.Mutex
	w            io.Writer
	colorEnabled bool
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer, colorEnabled bool) *Writer {
	return &Writer{w: w, colorEnabled: colorEnabled}
}

// Notify writes n.
func (w *Writer) Notify(_ context.Context, n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.w, Format(n, w.colorEnabled))
}
