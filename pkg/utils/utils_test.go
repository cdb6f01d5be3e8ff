package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"dhan-trader/internal/models"
)

func TestFormatIndianCurrency(t *testing.T) {
	tests := map[float64]string{
		0:          "₹0.00",
		999.5:      "₹999.50",
		1000:       "₹1,000.00",
		123456.78:  "₹1,23,456.78",
		-12345678:  "-₹1,23,45,678.00",
	}
	for in, want := range tests {
		if got := FormatIndianCurrency(in); got != want {
			t.Errorf("FormatIndianCurrency(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPnLAndQuantity(t *testing.T) {
	if got := FormatPnL(250); got != "+₹250.00" {
		t.Errorf("FormatPnL(250) = %q", got)
	}
	if got := FormatPnL(-250); got != "-₹250.00" {
		t.Errorf("FormatPnL(-250) = %q", got)
	}
	if got := FormatQuantity(-150000); got != "-1,50,000" {
		t.Errorf("FormatQuantity(-150000) = %q", got)
	}
	if got := FormatCompact(2500000); got != "25.00 L" {
		t.Errorf("FormatCompact(2500000) = %q", got)
	}
}

func TestMarketStatusAt(t *testing.T) {
	day := func(h, m int) time.Time {
		// Wednesday
		return time.Date(2024, 6, 5, h, m, 0, 0, IndiaLocation)
	}
	tests := []struct {
		at   time.Time
		want models.MarketStatus
	}{
		{day(8, 59), models.MarketClosed},
		{day(9, 5), models.MarketPreOpen},
		{day(9, 15), models.MarketOpen},
		{day(15, 5), models.MarketMISSquareOffWarn},
		{day(15, 29), models.MarketOpen},
		{day(15, 30), models.MarketClosed},
		{time.Date(2024, 6, 8, 11, 0, 0, 0, IndiaLocation), models.MarketClosed}, // Saturday
	}
	for _, tt := range tests {
		if got := MarketStatusAt(tt.at); got != tt.want {
			t.Errorf("MarketStatusAt(%v) = %s, want %s", tt.at, got, tt.want)
		}
	}
}

func TestRetryWithResult(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	calls := 0
	got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("flaky")
		}
		return 7, nil
	})
	if err != nil || got != 7 || calls != 3 {
		t.Fatalf("got (%d, %v) after %d calls", got, err, calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1,
		Retryable:     func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	_, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
		calls++
		return "partial", permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("expected single attempt with permanent error, got %d calls err=%v", calls, err)
	}
}

func TestRetryBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	if got := cfg.Backoff(0); got != 100*time.Millisecond {
		t.Errorf("Backoff(0) = %v", got)
	}
	if got := cfg.Backoff(3); got != 800*time.Millisecond {
		t.Errorf("Backoff(3) = %v", got)
	}
	if got := cfg.Backoff(10); got != time.Second {
		t.Errorf("Backoff should cap at max, got %v", got)
	}

	flat := RetryConfig{InitialDelay: 5 * time.Millisecond}
	if got := flat.Backoff(4); got != 5*time.Millisecond {
		t.Errorf("Backoff without factor or cap = %v", got)
	}
}
