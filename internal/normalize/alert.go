package normalize

import (
	"strings"

	"dhan-trader/internal/models"
)

var alertFields = struct {
	id, timestamp, qty, topLots, tradeLots, lotSize Accessors

	index, strike, optionType, side, lots, tradeQty, orderType, product Accessors

	instSecurityID, instSymbol, instSegment, instLotSize Accessors

	respStatus, respMessage, respBroker Accessors
}{
	id:        Accessors{"$.id", "$.alert_id", "$.alertId"},
	timestamp: Accessors{"$.timestamp", "$.time", "$.received_at"},
	qty:       Accessors{"$.qty", "$.quantity"},
	topLots:   Accessors{"$.lots"},
	tradeLots: Accessors{"$.trade.lots"},
	lotSize:   Accessors{"$.lot_size", "$.lotSize", "$.instrument.lotSize", "$.instrument.lot_size"},

	index:      Accessors{"$.trade.index", "$.trade.symbol", "$.index"},
	strike:     Accessors{"$.trade.strike", "$.strike"},
	optionType: Accessors{"$.trade.option_type", "$.trade.optionType", "$.option_type"},
	side:       Accessors{"$.trade.side", "$.side"},
	lots:       Accessors{"$.trade.lots", "$.lots"},
	tradeQty:   Accessors{"$.trade.qty", "$.trade.quantity"},
	orderType:  Accessors{"$.trade.order_type", "$.trade.orderType"},
	product:    Accessors{"$.trade.product_type", "$.trade.productType"},

	instSecurityID: Accessors{"$.instrument.securityId", "$.instrument.security_id"},
	instSymbol:     Accessors{"$.instrument.tradingSymbol", "$.instrument.trading_symbol", "$.instrument.symbol"},
	instSegment:    Accessors{"$.instrument.segment", "$.instrument.exchangeSegment"},
	instLotSize:    Accessors{"$.instrument.lotSize", "$.instrument.lot_size"},

	respStatus:  Accessors{"$.response.status", "$.status"},
	respMessage: Accessors{"$.response.message", "$.response.broker.remarks.error_message", "$.message"},
	respBroker:  Accessors{"$.response.broker"},
}

// Alert normalizes one alert record. ExpiresAt and EntryID are stamped by
// the ledger at ingest time and are left zero here.
func Alert(rec Record) models.Alert {
	return models.Alert{
		ID:        alertFields.id.String(rec),
		Timestamp: alertFields.timestamp.Time(rec),
		Trade: models.AlertTrade{
			Index:       alertFields.index.String(rec),
			Strike:      alertFields.strike.Float(rec),
			OptionType:  strings.ToUpper(alertFields.optionType.String(rec)),
			Side:        strings.ToUpper(alertFields.side.String(rec)),
			Lots:        alertFields.lots.Int(rec),
			Qty:         alertFields.tradeQty.Int(rec),
			OrderType:   strings.ToUpper(alertFields.orderType.String(rec)),
			ProductType: strings.ToUpper(alertFields.product.String(rec)),
		},
		Instrument: models.AlertInstrument{
			SecurityID:    securityIDOf(rec, alertFields.instSecurityID),
			TradingSymbol: alertFields.instSymbol.String(rec),
			Segment:       segmentOf(rec, alertFields.instSegment),
			LotSize:       alertFields.instLotSize.Int(rec),
		},
		Response: models.AlertResponse{
			Status:  strings.ToLower(alertFields.respStatus.String(rec)),
			Message: alertFields.respMessage.String(rec),
			Broker:  alertFields.respBroker.Map(rec),
		},
		Quantity: alertQuantity(rec),
		LotSize:  alertFields.lotSize.Int(rec),
	}
}

// Alerts normalizes every record in recs, newest first as delivered.
func Alerts(recs []Record) []models.Alert {
	out := make([]models.Alert, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Alert(rec))
	}
	return out
}

// alertQuantity derives the order quantity of an alert: the top-level
// quantity, then top-level lots times the lot size, then the trade's
// quantity, then the trade's lots times the lot size, else 0.
func alertQuantity(rec Record) int {
	if qty := alertFields.qty.Int(rec); qty > 0 {
		return qty
	}
	lotSize := alertFields.lotSize.Int(rec)
	if lots := alertFields.topLots.Int(rec); lots > 0 && lotSize > 0 {
		return lots * lotSize
	}
	if qty := alertFields.tradeQty.Int(rec); qty > 0 {
		return qty
	}
	if lots := alertFields.tradeLots.Int(rec); lots > 0 && lotSize > 0 {
		return lots * lotSize
	}
	return 0
}
