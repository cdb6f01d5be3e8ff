package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"dhan-trader/internal/models"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), logger)
	got := FromContext(ctx, zerolog.Nop())
	got.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("logger from context did not write, got %q", buf.String())
	}

	var fallbackBuf bytes.Buffer
	fallback := FromContext(context.Background(), zerolog.New(&fallbackBuf))
	fallback.Info().Msg("fallback")
	if !strings.Contains(fallbackBuf.String(), "fallback") {
		t.Errorf("missing context logger should use the fallback, got %q", fallbackBuf.String())
	}
}

func TestLogAlertFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogAlert(logger, models.Alert{
		ID:       "a-1",
		EntryID:  "01HZX",
		Trade:    models.AlertTrade{Index: "NIFTY", Strike: 22500, OptionType: "CE", Side: "BUY"},
		Quantity: 75,
		Response: models.AlertResponse{Status: "success", Message: "Order placed via webhook"},
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("alert line is not JSON: %v", err)
	}
	if rec["alert_id"] != "a-1" || rec["index"] != "NIFTY" || rec["qty"] != float64(75) {
		t.Errorf("unexpected alert record: %v", rec)
	}
}

func TestAlertTraceLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLogConfig()
	cfg.AlertTracePath = filepath.Join(dir, "logs", "alerts.log")

	trace := NewAlertTraceLogger(cfg)
	LogAlert(trace, models.Alert{ID: "a-2"})

	data, err := os.ReadFile(cfg.AlertTracePath)
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}
	if !strings.Contains(string(data), `"alert_id":"a-2"`) {
		t.Errorf("trace file missing alert, got %q", data)
	}
}

func TestAlertTraceLoggerDisabled(t *testing.T) {
	cfg := DefaultLogConfig()
	cfg.AlertTracePath = ""
	trace := NewAlertTraceLogger(cfg)
	if trace.GetLevel() != zerolog.Disabled {
		t.Errorf("expected no-op logger, got level %v", trace.GetLevel())
	}
}

func TestRedact(t *testing.T) {
	tests := map[string]string{
		"access_token=abcdef123456789":      "access_token=abcd*******6789",
		"Authorization: Bearer tok12345678": "Authorization: Bearer tok1***5678",
		`{"dhanClientId":"1100123456"}`:     `{"dhanClientId":"1100**3456"}`,
		"password: abc":                     "password: ***",
		"order rejected by RMS":             "order rejected by RMS",
	}
	for in, want := range tests {
		if got := Redact(in); got != want {
			t.Errorf("Redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogAPICallRedactsError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	cause := errors.New("upstream said access_token=abcdef123456789 expired")
	LogAPICall(logger, "GET", "/funds", 0, cause)

	if strings.Contains(buf.String(), "abcdef123456789") {
		t.Errorf("token leaked into log: %s", buf.String())
	}
	if !errors.Is(redactErr(cause), cause) {
		t.Error("redacted error should unwrap to the cause")
	}
}
