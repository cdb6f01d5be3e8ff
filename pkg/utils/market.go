package utils

import (
	"time"

	"dhan-trader/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// GetMarketStatus returns the current equity market status.
func GetMarketStatus() models.MarketStatus {
	return MarketStatusAt(time.Now())
}

// MarketStatusAt returns the equity market status at t.
// Exchange holidays are not known locally; the backend's order response is
// the authority on whether an order reached a live market.
func MarketStatusAt(t time.Time) models.MarketStatus {
	now := t.In(IndiaLocation)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()

	switch {
	case minutes >= 540 && minutes < 555: // 9:00 - 9:15
		return models.MarketPreOpen
	case minutes >= 900 && minutes < 915: // 15:00 - 15:15
		return models.MarketMISSquareOffWarn
	case minutes >= 555 && minutes < 930: // 9:15 - 15:30
		return models.MarketOpen
	}
	return models.MarketClosed
}
