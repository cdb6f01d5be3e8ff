package trading

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhan-trader/internal/errors"
	"dhan-trader/internal/models"
)

func TestNewPositionExit(t *testing.T) {
	tests := []struct {
		name    string
		pos     models.Position
		side    models.OrderSide
		qty     int
		product models.ProductType
	}{
		{
			name:    "long closes with a sell",
			pos:     models.Position{TradingSymbol: "SBIN", NetQty: 10, Product: "MARGIN"},
			side:    models.OrderSideSell,
			qty:     10,
			product: models.ProductIntraday,
		},
		{
			name:    "short closes with a buy",
			pos:     models.Position{TradingSymbol: "SBIN", NetQty: -5, Product: "CNC", Segment: models.SegmentBSEEquity},
			side:    models.OrderSideBuy,
			qty:     5,
			product: models.ProductCNC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := NewPositionExit(tt.pos)
			assert.Equal(t, tt.side, intent.Side)
			assert.Equal(t, tt.qty, intent.Quantity)
			assert.Equal(t, tt.product, intent.Product)
			assert.Equal(t, models.OrderTypeMarket, intent.Type)
			assert.NotEmpty(t, intent.Segment)
		})
	}
}

func TestNewHoldingExit(t *testing.T) {
	intent := NewHoldingExit(models.Holding{TradingSymbol: "INFY", SecurityID: "1594", Exchange: "ALL", TotalQty: 12})

	assert.Equal(t, models.OrderSideSell, intent.Side)
	assert.Equal(t, 12, intent.Quantity)
	assert.Equal(t, models.ProductDelivery, intent.Product)
	assert.Equal(t, models.SegmentNSEEquity, intent.Segment)
	assert.Equal(t, "1594", intent.SecurityID)
}

func TestExitPositionSubmitsFlatteningOrder(t *testing.T) {
	h := newHarness(t, nil)
	intent := NewPositionExit(models.Position{TradingSymbol: "SBIN", SecurityID: "3045", Segment: models.SegmentNSEEquity, NetQty: -5, Product: "INTRADAY"})

	out := h.orch.ExitPosition(context.Background(), intent)

	require.True(t, out.Succeeded(), out.Message)
	req, ok := h.srv.LastRequest(http.MethodPost, "/order/place")
	require.True(t, ok)
	assert.Equal(t, "BUY", req.Query.Get("side"))
	assert.Equal(t, "5", req.Query.Get("qty"))
	assert.Equal(t, "3045", req.Query.Get("security_id"))
	assert.Equal(t, 1, h.srv.Calls(http.MethodGet, "/status"))
}

func TestExitValidatesLocally(t *testing.T) {
	tests := []struct {
		name   string
		intent models.ExitIntent
	}{
		{"zero quantity", models.ExitIntent{Symbol: "SBIN", SecurityID: "3045", Side: models.OrderSideSell}},
		{"no identity", models.ExitIntent{Quantity: 1, Side: models.OrderSideSell}},
		{"symbol without segment", models.ExitIntent{Symbol: "SBIN", Quantity: 1, Side: models.OrderSideSell}},
		{"limit without price", models.ExitIntent{SecurityID: "3045", Quantity: 1, Side: models.OrderSideSell, Type: models.OrderTypeLimit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			out := h.orch.ExitHolding(context.Background(), tt.intent)

			assert.Equal(t, StateFailed, out.State)
			assert.True(t, errors.Is(out.Err, errors.ErrInputValidation))
			assert.Equal(t, 0, h.placeCalls())
			assert.Equal(t, 0, h.srv.Calls(http.MethodGet, "/resolve-symbol"))
		})
	}
}

func TestExitDialog(t *testing.T) {
	t.Run("edit and confirm", func(t *testing.T) {
		h := newHarness(t, nil)
		d := h.orch.NewExitDialog()
		assert.False(t, d.IsOpen())

		d.OpenHolding(models.Holding{TradingSymbol: "INFY", SecurityID: "1594", TotalQty: 12})
		require.True(t, d.Update(func(i *models.ExitIntent) {
			i.Quantity = 4
			i.Type = models.OrderTypeLimit
			i.Price = 1510.5
		}))

		draft, ok := d.Draft()
		require.True(t, ok)
		assert.Equal(t, 4, draft.Quantity)

		out := d.Confirm(context.Background())
		require.True(t, out.Succeeded(), out.Message)
		assert.False(t, d.IsOpen())

		req, _ := h.srv.LastRequest(http.MethodPost, "/order/place")
		assert.Equal(t, "4", req.Query.Get("qty"))
		assert.Equal(t, "LIMIT", req.Query.Get("order_type"))
		assert.Equal(t, "1510.5", req.Query.Get("price"))
		assert.Equal(t, "SELL", req.Query.Get("side"))
	})

	t.Run("closes on failure", func(t *testing.T) {
		h := newHarness(t, nil)
		h.srv.Respond(http.MethodPost, "/order/place", http.StatusOK, map[string]any{"status": "error", "message": "RMS rejected"})
		d := h.orch.NewExitDialog()
		d.OpenPosition(models.Position{TradingSymbol: "SBIN", SecurityID: "3045", NetQty: 3})

		out := d.Confirm(context.Background())
		assert.Equal(t, StateFailed, out.State)
		assert.Equal(t, "RMS rejected", out.Message)
		assert.False(t, d.IsOpen())
	})

	t.Run("closes on local validation failure", func(t *testing.T) {
		h := newHarness(t, nil)
		d := h.orch.NewExitDialog()
		d.OpenPosition(models.Position{TradingSymbol: "SBIN", SecurityID: "3045", NetQty: 3})
		d.Update(func(i *models.ExitIntent) { i.Quantity = 0 })

		out := d.Confirm(context.Background())
		assert.Equal(t, StateFailed, out.State)
		assert.False(t, d.IsOpen())
		assert.Equal(t, 0, h.placeCalls())
	})

	t.Run("dismiss and confirm while closed", func(t *testing.T) {
		h := newHarness(t, nil)
		d := h.orch.NewExitDialog()
		d.OpenPosition(models.Position{TradingSymbol: "SBIN", SecurityID: "3045", NetQty: 3})
		d.Dismiss()

		assert.False(t, d.IsOpen())
		assert.False(t, d.Update(func(*models.ExitIntent) {}))
		out := d.Confirm(context.Background())
		assert.ErrorIs(t, out.Err, ErrNoExitDraft)
		assert.Equal(t, 0, h.placeCalls())
	})
}
