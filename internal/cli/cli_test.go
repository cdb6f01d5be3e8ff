package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhan-trader/internal/backend/backendtest"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
[backend]
base_url = %q
timeout = "2s"
retry_attempts = 1
retry_delay = "1ms"

[search]
debounce = "1ms"
min_length = 2

[logging]
console = false
file = false
alert_trace_path = ""
`, baseURL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	return dir
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, srv *backendtest.Server, stdin string, args ...string) result {
	t.Helper()
	dir := writeConfig(t, srv.URL)

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(append([]string{"--config", dir}, args...))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func decode(t *testing.T, raw string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(raw), v), raw)
}

func TestVersionJSON(t *testing.T) {
	srv := backendtest.New(t)
	res := run(t, srv, "", "version", "--json")
	require.NoError(t, res.err)

	var out map[string]string
	decode(t, res.stdout, &out)
	assert.Equal(t, Version, out["version"])
}

func TestSnapshotJSON(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(http.MethodGet, "/funds", http.StatusOK, backendtest.Success(map[string]any{"availabelBalance": 2500.5}))
	srv.Respond(http.MethodGet, "/holdings", http.StatusOK, backendtest.Success([]any{
		map[string]any{"tradingSymbol": "INFY", "totalQty": 10, "avgCostPrice": 1400, "lastTradedPrice": 1500},
	}))

	res := run(t, srv, "", "snapshot", "--json")
	require.NoError(t, res.err)

	var out struct {
		Connected bool `json:"connected"`
		Funds     struct {
			AvailableBalance float64 `json:"available_balance"`
		} `json:"funds"`
		Holdings []struct {
			PnL float64 `json:"pnl"`
		} `json:"holdings"`
	}
	decode(t, res.stdout, &out)
	assert.True(t, out.Connected)
	assert.Equal(t, 2500.5, out.Funds.AvailableBalance)
	require.Len(t, out.Holdings, 1)
	assert.Equal(t, 1000.0, out.Holdings[0].PnL)
}

func TestSnapshotShowsFailedResource(t *testing.T) {
	srv := backendtest.New(t)
	srv.Fail(http.MethodGet, "/positions")

	res := run(t, srv, "", "snapshot")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Holdings (0)")
	assert.Contains(t, res.stdout, "Backend unreachable")
}

func TestBuyWithSecurityID(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{
		"status": "success", "message": "Order placed", "rid": "R9", "data": map[string]any{"orderId": "77"},
	})

	res := run(t, srv, "", "buy", "reliance", "5", "--security-id", "2885", "--json")
	require.NoError(t, res.err, res.stderr)

	var out map[string]any
	decode(t, res.stdout, &out)
	assert.Equal(t, "succeeded", out["state"])
	assert.Equal(t, "77", out["order_id"])
	assert.Equal(t, "R9", out["request_id"])

	req, ok := srv.LastRequest(http.MethodPost, "/order/place")
	require.True(t, ok)
	assert.Equal(t, "RELIANCE", req.Query.Get("symbol"))
	assert.Equal(t, "2885", req.Query.Get("security_id"))
	assert.Equal(t, "NSE_EQ", req.Query.Get("segment"))
	assert.Equal(t, "DELIVERY", req.Query.Get("product_type"))
	assert.Equal(t, 0, srv.Calls(http.MethodGet, "/resolve-symbol"))
}

func TestBuyRejectsBadQuantity(t *testing.T) {
	srv := backendtest.New(t)
	res := run(t, srv, "", "buy", "RELIANCE", "five")
	require.Error(t, res.err)
	assert.Equal(t, 0, srv.Calls(http.MethodPost, "/order/place"))
}

func TestCancelAsksForConfirmation(t *testing.T) {
	srv := backendtest.New(t)

	res := run(t, srv, "n\n", "cancel", "OID1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Cancel order OID1?")
	assert.Equal(t, 0, srv.Calls(http.MethodPost, "/order/cancel"))

	res = run(t, srv, "y\n", "cancel", "OID1")
	require.NoError(t, res.err)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/order/cancel"))

	res = run(t, srv, "", "cancel", "OID2", "--yes")
	require.NoError(t, res.err)
	assert.Equal(t, 2, srv.Calls(http.MethodPost, "/order/cancel"))
}

func TestExitPosition(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(http.MethodGet, "/positions", http.StatusOK, backendtest.Success([]any{
		map[string]any{"tradingSymbol": "SBIN", "securityId": "3045", "exchangeSegment": "NSE_EQ", "netQty": -5, "productType": "INTRADAY"},
	}))

	res := run(t, srv, "", "exit", "position", "sbin", "--yes", "--json")
	require.NoError(t, res.err, res.stderr)

	req, ok := srv.LastRequest(http.MethodPost, "/order/place")
	require.True(t, ok)
	assert.Equal(t, "BUY", req.Query.Get("side"))
	assert.Equal(t, "5", req.Query.Get("qty"))
	assert.Equal(t, "INTRADAY", req.Query.Get("product_type"))
}

func TestExitHoldingDismissed(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(http.MethodGet, "/holdings", http.StatusOK, backendtest.Success([]any{
		map[string]any{"tradingSymbol": "INFY", "securityId": "1594", "totalQty": 10},
	}))

	res := run(t, srv, "no\n", "exit", "holding", "INFY", "--qty", "3")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "SELL 3 INFY")
	assert.Contains(t, res.stdout, "Exit dismissed")
	assert.Equal(t, 0, srv.Calls(http.MethodPost, "/order/place"))
}

func TestSearchShortQuerySkipsBackend(t *testing.T) {
	srv := backendtest.New(t)
	res := run(t, srv, "", "search", "R")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "at least 2 characters")
	assert.Equal(t, 0, srv.Calls(http.MethodGet, "/symbol-search"))
}

func TestSearchResults(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(http.MethodGet, "/symbol-search", http.StatusOK, map[string]any{
		"status": "success",
		"results": []any{
			map[string]any{"securityId": "2885", "tradingSymbol": "RELIANCE", "exchangeSegment": "NSE_EQ", "lotSize": 1},
		},
	})

	res := run(t, srv, "", "search", "RELI", "--json")
	require.NoError(t, res.err)

	var out []map[string]any
	decode(t, res.stdout, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "2885", out[0]["security_id"])

	req, _ := srv.LastRequest(http.MethodGet, "/symbol-search")
	assert.Equal(t, "RELI", req.Query.Get("query"))
	assert.Equal(t, "NSE_EQ", req.Query.Get("segment"))
}

func TestAlertsJSON(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(http.MethodGet, "/webhook/alerts", http.StatusOK, map[string]any{
		"status": "success",
		"alerts": []any{
			map[string]any{"id": "a1", "trade": map[string]any{"index": "NIFTY", "side": "BUY", "lots": 2}, "lot_size": 25},
		},
	})

	res := run(t, srv, "", "alerts", "--live", "--json")
	require.NoError(t, res.err)

	var out []map[string]any
	decode(t, res.stdout, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "a1", out[0]["id"])
	assert.EqualValues(t, 50, out[0]["qty"])
}

func TestAskYesNo(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, askYesNo(strings.NewReader("Y\n"), &out, "go?"))
	assert.True(t, askYesNo(strings.NewReader("yes"), &out, "go?"))
	assert.False(t, askYesNo(strings.NewReader("\n"), &out, "go?"))
	assert.False(t, askYesNo(strings.NewReader(""), &out, "go?"))
	assert.Contains(t, out.String(), "go? [y/N]")
}
