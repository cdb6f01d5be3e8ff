package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"dhan-trader/internal/models"
)

var (
	symbolFields     = Accessors{"$.tradingSymbol", "$.trading_symbol", "$.tradingsymbol", "$.symbol"}
	securityIDFields = Accessors{"$.securityId", "$.security_id", "$.securityID"}
	segmentFields    = Accessors{"$.exchangeSegment", "$.exchange_segment", "$.segment"}
	productFields    = Accessors{"$.productType", "$.product_type", "$.product"}
	ltpFields        = Accessors{"$.lastTradedPrice", "$.last_traded_price", "$.ltp", "$.LTP", "$.lastPrice", "$.last_price"}
	pnlFields        = Accessors{"$.pnl", "$.PnL", "$.unrealizedProfit", "$.unrealized_profit", "$.unrealized_pnl", "$.profitLoss"}
	totalCostFields  = Accessors{"$.totalCost", "$.total_cost", "$.investedValue", "$.invested_value"}
)

var holdingFields = struct {
	exchange, qty, avg Accessors
}{
	exchange: Accessors{"$.exchange", "$.exchangeSegment", "$.exchange_segment"},
	qty:      Accessors{"$.totalQty", "$.total_qty", "$.quantity", "$.qty", "$.availableQty"},
	avg:      Accessors{"$.avgCostPrice", "$.avg_cost_price", "$.averagePrice", "$.average_price", "$.avgPrice", "$.buyAvg"},
}

var positionFields = struct {
	qty, avg Accessors
}{
	qty: Accessors{"$.netQty", "$.net_qty", "$.netQuantity", "$.quantity", "$.qty"},
	avg: Accessors{"$.costPrice", "$.cost_price", "$.avgPrice", "$.avg_price", "$.averagePrice", "$.buyAvg"},
}

var orderFields = struct {
	id, side, qty, price, status, validity, orderType, createdAt Accessors
}{
	id:        Accessors{"$.orderId", "$.order_id", "$.orderNo", "$.id", "$.exchangeOrderId"},
	side:      Accessors{"$.transactionType", "$.transaction_type", "$.side"},
	qty:       Accessors{"$.quantity", "$.qty"},
	price:     Accessors{"$.price", "$.orderPrice"},
	status:    Accessors{"$.orderStatus", "$.order_status", "$.status"},
	validity:  Accessors{"$.validity"},
	orderType: Accessors{"$.orderType", "$.order_type"},
	createdAt: Accessors{"$.createTime", "$.created_at", "$.orderDateTime", "$.timestamp"},
}

var fundsFields = struct {
	available, withdrawable, sod, collateral, utilized, blocked Accessors
}{
	// The broker's own key carries the "availabel" misspelling.
	available:    Accessors{"$.availabelBalance", "$.availableBalance", "$.available_balance", "$.availableCash", "$.available"},
	withdrawable: Accessors{"$.withdrawableBalance", "$.withdrawable_balance"},
	sod:          Accessors{"$.sodLimit", "$.sod_limit"},
	collateral:   Accessors{"$.collateralAmount", "$.collateral_amount", "$.collateral"},
	utilized:     Accessors{"$.utilizedAmount", "$.utilized_amount"},
	blocked:      Accessors{"$.blockedPayoutAmount", "$.blocked_payout_amount", "$.blockedPayout"},
}

var instrumentFields = struct {
	securityID, symbol, segment, lotSize, expiry Accessors
}{
	securityID: Accessors{"$.securityId", "$.security_id", "$.SEM_SMST_SECURITY_ID"},
	symbol:     Accessors{"$.tradingSymbol", "$.trading_symbol", "$.symbol", "$.SEM_TRADING_SYMBOL"},
	segment:    Accessors{"$.segment", "$.exchangeSegment", "$.exchange_segment"},
	lotSize:    Accessors{"$.lotSize", "$.lot_size", "$.SEM_LOT_UNITS"},
	expiry:     Accessors{"$.expiry", "$.expiryDate", "$.expiry_date", "$.SEM_EXPIRY_DATE"},
}

// PnL applies the P&L derivation rule. A broker-provided P&L is
// authoritative. Otherwise it is (ltp - avg) * qty when an average price
// exists, or ltp*qty - totalCost when only the total cost is known, else 0.
// The result is rounded to 2 decimal places.
func PnL(rec Record, qty int, avg, ltp decimal.Decimal) float64 {
	if v, ok := pnlFields.Lookup(rec); ok {
		return round2(toDecimal(v))
	}
	q := decimal.NewFromInt(int64(qty))
	if !avg.IsZero() {
		return round2(ltp.Sub(avg).Mul(q))
	}
	if v, ok := totalCostFields.Lookup(rec); ok {
		return round2(ltp.Mul(q).Sub(toDecimal(v)))
	}
	return 0
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func segmentOf(rec Record, fields Accessors) models.Segment {
	raw := fields.String(rec)
	if seg, ok := models.ParseSegment(raw); ok {
		return seg
	}
	return models.Segment(strings.ToUpper(raw))
}

func securityIDOf(rec Record, fields Accessors) string {
	v, ok := fields.Lookup(rec)
	if !ok {
		return ""
	}
	return SecurityID(v)
}

// Holding normalizes one holdings record.
func Holding(rec Record) models.Holding {
	qty := holdingFields.qty.Int(rec)
	avg := holdingFields.avg.Decimal(rec)
	ltp := ltpFields.Decimal(rec)
	return models.Holding{
		TradingSymbol:   symbolFields.String(rec),
		SecurityID:      securityIDOf(rec, securityIDFields),
		Exchange:        holdingFields.exchange.String(rec),
		TotalQty:        qty,
		AvgCostPrice:    avg.InexactFloat64(),
		LastTradedPrice: ltp.InexactFloat64(),
		PnL:             PnL(rec, qty, avg, ltp),
	}
}

// Position normalizes one positions record.
func Position(rec Record) models.Position {
	qty := positionFields.qty.Int(rec)
	avg := positionFields.avg.Decimal(rec)
	ltp := ltpFields.Decimal(rec)
	return models.Position{
		TradingSymbol:   symbolFields.String(rec),
		SecurityID:      securityIDOf(rec, securityIDFields),
		Segment:         segmentOf(rec, segmentFields),
		Product:         models.ProductType(strings.ToUpper(productFields.String(rec))),
		NetQty:          qty,
		AvgPrice:        avg.InexactFloat64(),
		LastTradedPrice: ltp.InexactFloat64(),
		PnL:             PnL(rec, qty, avg, ltp),
	}
}

// Order normalizes one order book record.
func Order(rec Record) models.Order {
	return models.Order{
		OrderID:       orderFields.id.String(rec),
		TradingSymbol: symbolFields.String(rec),
		SecurityID:    securityIDOf(rec, securityIDFields),
		Segment:       segmentOf(rec, segmentFields),
		Side:          side(orderFields.side.String(rec)),
		Type:          models.OrderType(strings.ToUpper(orderFields.orderType.String(rec))),
		Quantity:      orderFields.qty.Int(rec),
		Price:         orderFields.price.Float(rec),
		Status:        strings.ToUpper(orderFields.status.String(rec)),
		Product:       models.ProductType(strings.ToUpper(productFields.String(rec))),
		Validity:      models.Validity(strings.ToUpper(orderFields.validity.String(rec))),
		CreatedAt:     orderFields.createdAt.Time(rec),
	}
}

func side(s string) models.OrderSide {
	switch strings.ToUpper(s) {
	case "B", "BUY":
		return models.OrderSideBuy
	case "S", "SELL":
		return models.OrderSideSell
	}
	return models.OrderSide(strings.ToUpper(s))
}

// Funds normalizes a funds record. Missing amounts are 0.
func Funds(rec Record) models.Funds {
	return models.Funds{
		AvailableBalance:    fundsFields.available.Float(rec),
		WithdrawableBalance: fundsFields.withdrawable.Float(rec),
		SODLimit:            fundsFields.sod.Float(rec),
		CollateralAmount:    fundsFields.collateral.Float(rec),
		UtilizedAmount:      fundsFields.utilized.Float(rec),
		BlockedPayout:       fundsFields.blocked.Float(rec),
	}
}

// Instrument normalizes one instrument-search result.
func Instrument(rec Record) models.Instrument {
	return models.Instrument{
		SecurityID:    securityIDOf(rec, instrumentFields.securityID),
		TradingSymbol: instrumentFields.symbol.String(rec),
		Segment:       segmentOf(rec, instrumentFields.segment),
		LotSize:       instrumentFields.lotSize.Int(rec),
		Expiry:        instrumentFields.expiry.Time(rec),
	}
}

// Holdings normalizes every record in recs.
func Holdings(recs []Record) []models.Holding {
	out := make([]models.Holding, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Holding(rec))
	}
	return out
}

// Positions normalizes every record in recs.
func Positions(recs []Record) []models.Position {
	out := make([]models.Position, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Position(rec))
	}
	return out
}

// Orders normalizes every record in recs.
func Orders(recs []Record) []models.Order {
	out := make([]models.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Order(rec))
	}
	return out
}

// Instruments normalizes every record in recs.
func Instruments(recs []Record) []models.Instrument {
	out := make([]models.Instrument, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Instrument(rec))
	}
	return out
}
