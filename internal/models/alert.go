package models

import "time"

// Alert represents one inbound webhook trade alert as reported by the
// backend, together with the backend's order response.
type Alert struct {
	ID         string          `json:"id"`
	EntryID    string          `json:"entry_id,omitempty"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Trade      AlertTrade      `json:"trade"`
	Instrument AlertInstrument `json:"instrument"`
	Response   AlertResponse   `json:"response"`
	Quantity   int             `json:"qty"`
	LotSize    int             `json:"lot_size"`
	ExpiresAt  time.Time       `json:"expires_at,omitempty"`
}

// AlertTrade is the originating trade request of an alert.
type AlertTrade struct {
	Index       string  `json:"index"`
	Strike      float64 `json:"strike"`
	OptionType  string  `json:"option_type"`
	Side        string  `json:"side"`
	Lots        int     `json:"lots"`
	Qty         int     `json:"qty"`
	OrderType   string  `json:"order_type,omitempty"`
	ProductType string  `json:"product_type,omitempty"`
}

// AlertInstrument is the instrument the backend resolved for an alert.
type AlertInstrument struct {
	SecurityID    string  `json:"security_id,omitempty"`
	TradingSymbol string  `json:"trading_symbol,omitempty"`
	Segment       Segment `json:"segment,omitempty"`
	LotSize       int     `json:"lot_size,omitempty"`
}

// AlertResponse is the backend's reply to the alert's order.
type AlertResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Broker  map[string]any `json:"broker,omitempty"`
}

// Expired reports whether the ephemeral copy of the alert is past its TTL at now.
func (a Alert) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
