package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestToastsExpire(t *testing.T) {
	now := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	toasts := NewToasts(3, 6*time.Second)
	toasts.now = func() time.Time { return now }

	toasts.Notify(context.Background(), Notification{Kind: KindError, Message: "insufficient margin"})
	if got := len(toasts.Active()); got != 1 {
		t.Fatalf("Active() = %d toasts, want 1", got)
	}

	now = now.Add(5999 * time.Millisecond)
	if got := len(toasts.Active()); got != 1 {
		t.Errorf("toast hidden before TTL")
	}

	now = now.Add(time.Millisecond)
	if got := len(toasts.Active()); got != 0 {
		t.Errorf("toast visible at TTL")
	}
	if toasts.Render(false) != "" {
		t.Errorf("Render() should be empty with no active toasts")
	}
}

func TestToastsKeepNewest(t *testing.T) {
	toasts := NewToasts(2, time.Minute)
	for _, msg := range []string{"a", "b", "c"} {
		toasts.Notify(context.Background(), Notification{Kind: KindInfo, Message: msg})
	}

	active := toasts.Active()
	if len(active) != 2 || active[0].Message != "b" || active[1].Message != "c" {
		t.Errorf("Active() = %+v, want [b c]", active)
	}

	toasts.Clear()
	if len(toasts.Active()) != 0 {
		t.Errorf("Clear() left toasts behind")
	}
}

func TestMultiFansOut(t *testing.T) {
	var got []string
	collect := Func(func(_ context.Context, n Notification) {
		if n.Timestamp.IsZero() {
			t.Errorf("Multi did not stamp notification")
		}
		got = append(got, n.Message)
	})

	m := NewMulti(collect)
	m.Add(collect)
	m.Notify(context.Background(), Notification{Message: "hello"})

	if len(got) != 2 {
		t.Errorf("delivered %d times, want 2", len(got))
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))
	n.Notify(context.Background(), Notification{Kind: KindError, Title: "Order failed", Message: "insufficient margin", RequestID: "X1"})

	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"rid":"X1"`, `"message":"insufficient margin"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}

func TestFormat(t *testing.T) {
	ts := time.Date(2024, 6, 5, 9, 30, 0, 0, time.UTC)
	got := Format(Notification{Kind: KindSuccess, Title: "Order placed", Message: "BUY 1 INFY", RequestID: "R1", Timestamp: ts}, false)
	want := "[09:30:00] ✅ OK | Order placed | BUY 1 INFY (rid R1)"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	var buf bytes.Buffer
	NewWriter(&buf, false).Notify(context.Background(), Notification{Kind: KindInfo, Message: "hi", Timestamp: ts})
	if !strings.HasSuffix(buf.String(), "| hi\n") {
		t.Errorf("Writer output = %q", buf.String())
	}
}
