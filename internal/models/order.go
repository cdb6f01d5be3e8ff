package models

import (
	"strings"
	"time"
)

// Order represents an entry of the order book.
type Order struct {
	OrderID       string      `json:"order_id"`
	TradingSymbol string      `json:"trading_symbol"`
	SecurityID    string      `json:"security_id,omitempty"`
	Segment       Segment     `json:"segment,omitempty"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"order_type,omitempty"`
	Quantity      int         `json:"quantity"`
	Price         float64     `json:"price"`
	Status        string      `json:"status"`
	Product       ProductType `json:"product_type"`
	Validity      Validity    `json:"validity"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
}

// openStatusMarkers are the status substrings of non-terminal orders. Any
// other status is terminal.
var openStatusMarkers = []string{"PENDING", "OPEN"}

// CanonicalStatus returns the status uppercased for comparisons.
func (o Order) CanonicalStatus() string {
	return strings.ToUpper(strings.TrimSpace(o.Status))
}

// IsOpen reports whether the order is non-terminal.
func (o Order) IsOpen() bool {
	status := o.CanonicalStatus()
	for _, marker := range openStatusMarkers {
		if strings.Contains(status, marker) {
			return true
		}
	}
	return false
}

// Cancellable reports whether a cancel request makes sense for the order.
func (o Order) Cancellable() bool {
	return o.OrderID != "" && o.IsOpen()
}

// Position represents an open trading position.
type Position struct {
	TradingSymbol   string      `json:"trading_symbol"`
	SecurityID      string      `json:"security_id,omitempty"`
	Segment         Segment     `json:"segment,omitempty"`
	Product         ProductType `json:"product_type,omitempty"`
	NetQty          int         `json:"net_qty"` // positive = long, negative = short
	AvgPrice        float64     `json:"avg_price"`
	LastTradedPrice float64     `json:"ltp"`
	PnL             float64     `json:"pnl"`
}

// IsLong reports whether the position is long.
func (p Position) IsLong() bool {
	return p.NetQty > 0
}

// Holding represents a delivery holding.
type Holding struct {
	TradingSymbol   string  `json:"trading_symbol"`
	SecurityID      string  `json:"security_id,omitempty"`
	Exchange        string  `json:"exchange,omitempty"`
	TotalQty        int     `json:"total_qty"`
	AvgCostPrice    float64 `json:"avg_cost_price"`
	LastTradedPrice float64 `json:"ltp"`
	PnL             float64 `json:"pnl"`
}

// ExitIntent is a user-editable square-off draft for a holding or position.
// It is discarded on confirm or cancel.
type ExitIntent struct {
	Symbol     string      `json:"symbol"`
	Segment    Segment     `json:"segment"`
	SecurityID string      `json:"security_id,omitempty"`
	Quantity   int         `json:"quantity"`
	Side       OrderSide   `json:"side"`
	Type       OrderType   `json:"order_type"`
	Price      float64     `json:"price"`
	Product    ProductType `json:"product_type"`
	Validity   Validity    `json:"validity"`
}
