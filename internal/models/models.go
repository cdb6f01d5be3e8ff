// Package models provides the canonical domain model for the account console.
package models

import (
	"strings"
	"time"
)

// Segment represents the market venue / instrument class a symbol trades in.
type Segment string

const (
	SegmentNSEEquity Segment = "NSE_EQ"
	SegmentBSEEquity Segment = "BSE_EQ"
	SegmentNSEFNO    Segment = "NSE_FNO" // F&O
	SegmentMCX       Segment = "MCX"     // Commodity
)

// Segments lists every segment the backend accepts.
var Segments = []Segment{SegmentNSEEquity, SegmentBSEEquity, SegmentNSEFNO, SegmentMCX}

// Valid reports whether s is one of the backend segments.
func (s Segment) Valid() bool {
	for _, seg := range Segments {
		if s == seg {
			return true
		}
	}
	return false
}

// IsDerivative reports whether quantities in this segment are lot based.
func (s Segment) IsDerivative() bool {
	return s == SegmentNSEFNO || s == SegmentMCX
}

// ParseSegment maps the spellings used by the backend and the broker
// (NSE_EQ, NSE, BSE, NSE_FNO, NFO, MCX_COMM, ...) to a Segment.
// Unknown input yields "" and false.
func ParseSegment(s string) (Segment, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NSE_EQ", "NSE":
		return SegmentNSEEquity, true
	case "BSE_EQ", "BSE":
		return SegmentBSEEquity, true
	case "NSE_FNO", "NFO", "FNO":
		return SegmentNSEFNO, true
	case "MCX", "MCX_COMM":
		return SegmentMCX, true
	}
	return "", false
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the side that closes a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ProductType represents the product type of an order as the backend names it.
type ProductType string

const (
	ProductDelivery ProductType = "DELIVERY"
	ProductCNC      ProductType = "CNC"
	ProductIntraday ProductType = "INTRADAY"
	ProductIntra    ProductType = "INTRA"
)

// ParseProductType maps broker product names onto the ones the backend
// accepts. MARGIN and MTF positions are closed as INTRADAY.
func ParseProductType(s string) ProductType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DELIVERY":
		return ProductDelivery
	case "CNC":
		return ProductCNC
	case "INTRA":
		return ProductIntra
	case "", "INTRADAY", "MIS", "MARGIN", "MTF", "CO", "BO":
		return ProductIntraday
	}
	return ProductIntraday
}

// Validity represents how long an order stays live.
type Validity string

const (
	ValidityDay Validity = "DAY"
	ValidityIOC Validity = "IOC"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen             MarketStatus = "OPEN"
	MarketPreOpen          MarketStatus = "PRE_OPEN"
	MarketClosed           MarketStatus = "CLOSED"
	MarketMISSquareOffWarn MarketStatus = "MIS_SQUAREOFF_WARNING"
)

// Instrument represents a tradeable instrument from the backend's
// instrument master.
type Instrument struct {
	SecurityID    string     `json:"security_id"`
	TradingSymbol string     `json:"trading_symbol"`
	Segment       Segment    `json:"segment"`
	LotSize       int        `json:"lot_size"`
	Expiry        *time.Time `json:"expiry,omitempty"`
}

// HasSecurityID reports whether the instrument can be ordered without a
// name+segment lookup.
func (i Instrument) HasSecurityID() bool {
	return strings.TrimSpace(i.SecurityID) != ""
}

// Funds represents account funds as reported by the broker.
type Funds struct {
	AvailableBalance    float64 `json:"available_balance"`
	WithdrawableBalance float64 `json:"withdrawable_balance"`
	SODLimit            float64 `json:"sod_limit"`
	CollateralAmount    float64 `json:"collateral_amount"`
	UtilizedAmount      float64 `json:"utilized_amount"`
	BlockedPayout       float64 `json:"blocked_payout"`
}
