package trading

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhan-trader/internal/account"
	"dhan-trader/internal/backend"
	"dhan-trader/internal/backend/backendtest"
	"dhan-trader/internal/errors"
	"dhan-trader/internal/instrument"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/models"
	"dhan-trader/internal/notify"
	"dhan-trader/pkg/utils"
)

type recorder struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.Kind)
	}
	return out
}

type harness struct {
	srv      *backendtest.Server
	resolver *instrument.Resolver
	sync     *account.Synchronizer
	notes    *recorder
	orch     *Orchestrator
}

// marketHours is a Wednesday inside the regular session.
var marketHours = time.Date(2024, 6, 5, 10, 30, 0, 0, utils.IndiaLocation)

func newHarness(t *testing.T, confirmer Confirmer) *harness {
	t.Helper()
	srv := backendtest.New(t)
	client := srv.Client(t)
	resolver := instrument.NewResolver(client, instrument.DefaultOptions(), zerolog.Nop())
	syncer := account.NewSynchronizer(client, account.DefaultOptions(), zerolog.Nop())
	notes := &recorder{}

	o := NewOrchestrator(client, resolver, syncer, confirmer, notes, zerolog.Nop())
	o.now = func() time.Time { return marketHours }
	return &harness{srv: srv, resolver: resolver, sync: syncer, notes: notes, orch: o}
}

func (h *harness) placeCalls() int {
	return h.srv.Calls(http.MethodPost, "/order/place")
}

var reliance = models.Instrument{SecurityID: "2885", TradingSymbol: "RELIANCE", Segment: models.SegmentNSEEquity, LotSize: 1}

func TestPlaceOrderWithoutSelection(t *testing.T) {
	h := newHarness(t, nil)

	out := h.orch.PlaceOrder(context.Background(), OrderDraft{Side: models.OrderSideBuy, Quantity: 1})

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, errors.ErrNoInstrumentSelected))
	assert.Equal(t, 0, h.placeCalls())
	assert.Equal(t, []notify.Kind{notify.KindError}, h.notes.kinds())
}

func TestPlaceOrderValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft OrderDraft
		field string
	}{
		{"zero quantity", OrderDraft{Side: models.OrderSideBuy, Quantity: 0}, "quantity"},
		{"negative quantity", OrderDraft{Side: models.OrderSideSell, Quantity: -3}, "quantity"},
		{"limit without price", OrderDraft{Side: models.OrderSideBuy, Quantity: 1, Type: models.OrderTypeLimit}, "price"},
		{"missing side", OrderDraft{Quantity: 1}, "side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.resolver.Select(reliance)

			out := h.orch.PlaceOrder(context.Background(), tt.draft)

			require.Equal(t, StateFailed, out.State)
			var verr *errors.ValidationError
			require.True(t, errors.As(out.Err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, 0, h.placeCalls())
		})
	}
}

func TestPlaceOrderSuccessRefreshes(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Order placed successfully",
		"rid":     "R1",
		"data":    map[string]any{"orderId": "OID1", "orderStatus": "TRANSIT"},
	})
	h.resolver.Select(reliance)

	out := h.orch.PlaceOrder(context.Background(), OrderDraft{Side: models.OrderSideBuy, Quantity: 2, Price: 99})

	require.Equal(t, StateSucceeded, out.State, out.Message)
	assert.Equal(t, []State{StateIdle, StateValidating, StateSubmitting, StateSucceeded}, out.Transitions)
	assert.Equal(t, "OID1", out.OrderID)
	assert.Equal(t, "R1", out.RequestID)
	assert.Equal(t, "Order placed successfully", out.Message)
	assert.Empty(t, out.Notice)
	assert.NotEmpty(t, out.IntentID)

	req, ok := h.srv.LastRequest(http.MethodPost, "/order/place")
	require.True(t, ok)
	assert.Equal(t, "2885", req.Query.Get("security_id"))
	assert.Equal(t, "BUY", req.Query.Get("side"))
	assert.Equal(t, "2", req.Query.Get("qty"))
	assert.Equal(t, "MARKET", req.Query.Get("order_type"))
	assert.Equal(t, "0", req.Query.Get("price"))
	assert.Equal(t, "DELIVERY", req.Query.Get("product_type"))
	assert.Equal(t, "DAY", req.Query.Get("validity"))
	assert.NotEmpty(t, req.Header.Get(backend.RequestIDHeader))

	assert.Equal(t, 1, h.srv.Calls(http.MethodGet, "/status"))
	assert.Equal(t, 2, h.srv.Calls(http.MethodGet, "/orders"))
	assert.Equal(t, []notify.Kind{notify.KindSuccess}, h.notes.kinds())
}

func TestPlaceOrderLogsToCommandLogger(t *testing.T) {
	h := newHarness(t, nil)
	h.resolver.Select(reliance)

	var buf bytes.Buffer
	cmdLogger := zerolog.New(&buf).With().Str("command", "dhan-trader buy").Logger()
	ctx := logging.WithLogger(context.Background(), cmdLogger)

	out := h.orch.PlaceOrder(ctx, OrderDraft{Side: models.OrderSideBuy, Quantity: 1})

	require.Equal(t, StateSucceeded, out.State, out.Message)
	logged := buf.String()
	assert.Contains(t, logged, `"command":"dhan-trader buy"`)
	assert.Contains(t, logged, `"component":"trading"`)
	assert.Contains(t, logged, `"state":"succeeded"`)
	assert.Contains(t, logged, out.IntentID)
}

func TestPlaceOrderResolvesMissingSecurityID(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Respond(http.MethodGet, "/resolve-symbol", http.StatusOK, map[string]any{
		"status": "success",
		"inst":   map[string]any{"securityId": "11536", "tradingSymbol": "TCS", "exchangeSegment": "NSE_EQ"},
	})
	h.srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{"status": "success"})

	inst := models.Instrument{TradingSymbol: "TCS", Segment: models.SegmentNSEEquity}
	out := h.orch.PlaceOrder(context.Background(), OrderDraft{Instrument: &inst, Side: models.OrderSideSell, Quantity: 1})

	require.Equal(t, StateSucceeded, out.State, out.Message)
	assert.Equal(t, []State{StateIdle, StateValidating, StateResolving, StateSubmitting, StateSucceeded}, out.Transitions)
	req, _ := h.srv.LastRequest(http.MethodPost, "/order/place")
	assert.Equal(t, "11536", req.Query.Get("security_id"))
	assert.Equal(t, "TCS", req.Query.Get("symbol"))
}

func TestPlaceOrderResolutionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Respond(http.MethodGet, "/resolve-symbol", http.StatusOK, map[string]any{
		"status":      "error",
		"message":     "Symbol not found: TCZ (NSE_EQ)",
		"suggestions": []any{"TCS", "TCI"},
	})

	inst := models.Instrument{TradingSymbol: "TCZ", Segment: models.SegmentNSEEquity}
	out := h.orch.PlaceOrder(context.Background(), OrderDraft{Instrument: &inst, Side: models.OrderSideBuy, Quantity: 1})

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, errors.ErrSymbolNotFound))
	assert.Equal(t, "Symbol not found: TCZ (NSE_EQ); did you mean TCS, TCI?", out.Message)
	assert.Equal(t, 0, h.placeCalls())
}

func TestPlaceOrderBackendRejection(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{
		"status":  "error",
		"message": "insufficient margin",
		"rid":     "X1",
		"broker":  map[string]any{"remarks": map[string]any{"error_message": "RMS:Margin Exceeds for 2885"}},
	})
	h.resolver.Select(reliance)

	out := h.orch.PlaceOrder(context.Background(), OrderDraft{Side: models.OrderSideBuy, Quantity: 100})

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, "insufficient margin", out.Message)
	assert.Equal(t, "X1", out.RequestID)
	var berr *errors.BackendError
	assert.True(t, errors.As(out.Err, &berr))

	assert.Equal(t, 1, h.placeCalls())
	assert.Equal(t, 0, h.srv.Calls(http.MethodGet, "/status"))
	assert.Equal(t, 0, h.srv.Calls(http.MethodGet, "/orders"))
	assert.Equal(t, []notify.Kind{notify.KindError}, h.notes.kinds())
}

func TestPlaceOrderUnreachable(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Fail(http.MethodPost, "/order/place")
	h.resolver.Select(reliance)

	out := h.orch.PlaceOrder(context.Background(), OrderDraft{Side: models.OrderSideBuy, Quantity: 1})

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, "Backend unreachable", out.Message)
	assert.Empty(t, out.RequestID)
	assert.Equal(t, 1, h.placeCalls())
}

func TestPlaceOrderNotices(t *testing.T) {
	t.Run("forced product type", func(t *testing.T) {
		h := newHarness(t, nil)
		h.srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{
			"status":  "success",
			"preview": map[string]any{"forced_product_type": "INTRADAY", "qty_calc": 50},
		})
		nifty := models.Instrument{SecurityID: "35001", TradingSymbol: "NIFTY-Jun2024-22500-CE", Segment: models.SegmentNSEFNO, LotSize: 25}

		out := h.orch.PlaceOrder(context.Background(), OrderDraft{
			Instrument: &nifty, Side: models.OrderSideBuy, Quantity: 50, Lots: 2, Product: models.ProductDelivery,
		})

		require.True(t, out.Succeeded())
		assert.Equal(t, "Product type changed from DELIVERY to INTRADAY for NSE_FNO", out.Notice)
		assert.Equal(t, []notify.Kind{notify.KindSuccess, notify.KindWarning}, h.notes.kinds())
		req, _ := h.srv.LastRequest(http.MethodPost, "/order/place")
		assert.Equal(t, "2", req.Query.Get("lots"))
	})

	t.Run("backend notice wins", func(t *testing.T) {
		h := newHarness(t, nil)
		h.srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{
			"status": "success", "notice": "AMO order queued",
		})
		h.resolver.Select(reliance)

		out := h.orch.PlaceOrder(context.Background(), OrderDraft{Side: models.OrderSideBuy, Quantity: 1})
		assert.Equal(t, "AMO order queued", out.Notice)
	})

	t.Run("market closed", func(t *testing.T) {
		h := newHarness(t, nil)
		h.orch.now = func() time.Time { return time.Date(2024, 6, 8, 11, 0, 0, 0, utils.IndiaLocation) }
		h.resolver.Select(reliance)

		out := h.orch.PlaceOrder(context.Background(), OrderDraft{Side: models.OrderSideBuy, Quantity: 1})
		require.True(t, out.Succeeded())
		assert.Contains(t, out.Notice, "Market is closed")
	})
}

func TestCancelOrder(t *testing.T) {
	t.Run("empty id is a no-op", func(t *testing.T) {
		h := newHarness(t, nil)
		out := h.orch.CancelOrder(context.Background(), "  ")
		assert.Equal(t, StateIdle, out.State)
		assert.Equal(t, 0, h.srv.Calls(http.MethodPost, "/order/cancel"))
	})

	t.Run("declined sends nothing", func(t *testing.T) {
		var prompts []string
		h := newHarness(t, ConfirmFunc(func(_ context.Context, prompt string) bool {
			prompts = append(prompts, prompt)
			return false
		}))
		out := h.orch.CancelOrder(context.Background(), "OID7")
		assert.Equal(t, StateIdle, out.State)
		assert.Equal(t, []string{"Cancel order OID7?"}, prompts)
		assert.Equal(t, 0, h.srv.Calls(http.MethodPost, "/order/cancel"))
	})

	t.Run("confirmed sends exactly one request", func(t *testing.T) {
		h := newHarness(t, AlwaysConfirm)
		out := h.orch.CancelOrder(context.Background(), "OID7")

		require.True(t, out.Succeeded(), out.Message)
		assert.Equal(t, "OID7", out.OrderID)
		assert.Equal(t, 1, h.srv.Calls(http.MethodPost, "/order/cancel"))
		req, _ := h.srv.LastRequest(http.MethodPost, "/order/cancel")
		assert.Equal(t, "OID7", req.Query.Get("order_id"))
		assert.Equal(t, 1, h.srv.Calls(http.MethodGet, "/orders"))
	})

	t.Run("failure keeps the order book", func(t *testing.T) {
		h := newHarness(t, AlwaysConfirm)
		h.srv.Respond(http.MethodPost, "/order/cancel", http.StatusBadRequest, map[string]any{
			"status": "error", "message": "order already traded",
		})
		out := h.orch.CancelOrder(context.Background(), "OID7")

		assert.Equal(t, StateFailed, out.State)
		assert.Equal(t, "order already traded", out.Message)
		assert.Equal(t, 0, h.srv.Calls(http.MethodGet, "/orders"))
	})
}
