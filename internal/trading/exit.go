package trading

import (
	"context"
	"sync"

	"dhan-trader/internal/backend"
	"dhan-trader/internal/errors"
	"dhan-trader/internal/models"
)

// NewHoldingExit drafts a market sell of the whole holding.
func NewHoldingExit(h models.Holding) models.ExitIntent {
	segment, ok := models.ParseSegment(h.Exchange)
	if !ok {
		segment = models.SegmentNSEEquity
	}
	return models.ExitIntent{
		Symbol:     h.TradingSymbol,
		Segment:    segment,
		SecurityID: h.SecurityID,
		Quantity:   h.TotalQty,
		Side:       models.OrderSideSell,
		Type:       models.OrderTypeMarket,
		Product:    models.ProductDelivery,
		Validity:   models.ValidityDay,
	}
}

// NewPositionExit drafts the market order that flattens a position: a sell
// for a long, a buy for a short.
func NewPositionExit(p models.Position) models.ExitIntent {
	side := models.OrderSideSell
	qty := p.NetQty
	if !p.IsLong() {
		side = side.Opposite()
		qty = -qty
	}
	segment := p.Segment
	if !segment.Valid() {
		segment = models.SegmentNSEEquity
	}
	return models.ExitIntent{
		Symbol:     p.TradingSymbol,
		Segment:    segment,
		SecurityID: p.SecurityID,
		Quantity:   qty,
		Side:       side,
		Type:       models.OrderTypeMarket,
		Product:    models.ParseProductType(string(p.Product)),
		Validity:   models.ValidityDay,
	}
}

// ExitHolding submits a holding square-off.
func (o *Orchestrator) ExitHolding(ctx context.Context, intent models.ExitIntent) Outcome {
	return o.exit(ctx, intent, "Holding exit")
}

// ExitPosition submits a position square-off.
func (o *Orchestrator) ExitPosition(ctx context.Context, intent models.ExitIntent) Outcome {
	return o.exit(ctx, intent, "Position exit")
}

func (o *Orchestrator) exit(ctx context.Context, intent models.ExitIntent, title string) Outcome {
	w := o.begin(ctx, intent.Symbol, intent.Side)
	w.to(StateValidating)

	if intent.Type == "" {
		intent.Type = models.OrderTypeMarket
	}
	if intent.Validity == "" {
		intent.Validity = models.ValidityDay
	}
	if intent.SecurityID == "" && (intent.Symbol == "" || intent.Segment == "") {
		err := errors.NewValidationError("security_id", intent.Symbol, "Exit needs a security id or a symbol and segment")
		return w.fail(ctx, title+" not sent", err, err.Message, "")
	}
	if err := validate(intent.Side, intent.Quantity, 0, intent.Type, intent.Price); err != nil {
		return w.fail(ctx, title+" not sent", err, err.Message, "")
	}

	req := backend.OrderRequest{
		Symbol:     intent.Symbol,
		SecurityID: intent.SecurityID,
		Segment:    intent.Segment,
		Side:       intent.Side,
		Quantity:   intent.Quantity,
		Type:       intent.Type,
		Price:      intent.Price,
		Product:    intent.Product,
		Validity:   intent.Validity,
	}
	if req.Product == "" {
		req.Product = models.ProductIntraday
	}
	if req.SecurityID == "" {
		w.to(StateResolving)
		id, err := o.resolve(ctx, intent.Symbol, intent.Segment)
		if err != nil {
			return w.fail(ctx, title+" not sent", err, resolutionMessage(err), "")
		}
		req.SecurityID = id
	}

	return o.submit(ctx, w, req, title)
}

type exitKind int

const (
	exitHolding exitKind = iota + 1
	exitPosition
)

// ExitDialog holds at most one editable exit draft. Confirming or
// dismissing always closes it, whatever the outcome of the order.
type ExitDialog struct {
	o *Orchestrator

	mu     sync.Mutex
	intent *models.ExitIntent
	kind   exitKind
}

// NewExitDialog creates a closed exit dialog.
func (o *Orchestrator) NewExitDialog() *ExitDialog {
	return &ExitDialog{o: o}
}

// OpenHolding opens the dialog with a draft for h, replacing any open one.
func (d *ExitDialog) OpenHolding(h models.Holding) models.ExitIntent {
	return d.open(NewHoldingExit(h), exitHolding)
}

// OpenPosition opens the dialog with a draft for p, replacing any open one.
func (d *ExitDialog) OpenPosition(p models.Position) models.ExitIntent {
	return d.open(NewPositionExit(p), exitPosition)
}

func (d *ExitDialog) open(intent models.ExitIntent, kind exitKind) models.ExitIntent {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intent = &intent
	d.kind = kind
	return intent
}

// IsOpen reports whether a draft is open.
func (d *ExitDialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.intent != nil
}

// Draft returns a copy of the open draft.
func (d *ExitDialog) Draft() (models.ExitIntent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.intent == nil {
		return models.ExitIntent{}, false
	}
	return *d.intent, true
}

// Update edits the open draft in place. It reports false when the dialog
// is closed.
func (d *ExitDialog) Update(fn func(*models.ExitIntent)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.intent == nil {
		return false
	}
	fn(d.intent)
	return true
}

// Dismiss closes the dialog without submitting.
func (d *ExitDialog) Dismiss() {
	d.mu.Lock()
	d.intent = nil
	d.kind = 0
	d.mu.Unlock()
}

// Confirm closes the dialog and submits the draft.
func (d *ExitDialog) Confirm(ctx context.Context) Outcome {
	d.mu.Lock()
	intent, kind := d.intent, d.kind
	d.intent = nil
	d.kind = 0
	d.mu.Unlock()

	if intent == nil {
		return Outcome{State: StateIdle, Transitions: []State{StateIdle}, Err: ErrNoExitDraft}
	}
	if kind == exitHolding {
		return d.o.ExitHolding(ctx, *intent)
	}
	return d.o.ExitPosition(ctx, *intent)
}
