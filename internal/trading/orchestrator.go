package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dhan-trader/internal/account"
	"dhan-trader/internal/backend"
	"dhan-trader/internal/errors"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/models"
	"dhan-trader/internal/notify"
	"dhan-trader/pkg/utils"
)

var orderIDPaths = []string{"$.data.orderId", "$.data.order_id", "$.orderId", "$.order_id", "$.broker.data.orderId"}

// Orchestrator runs order workflows against the backend.
type Orchestrator struct {
	api       Backend
	resolver  Resolver
	refresher Refresher
	confirmer Confirmer
	notifier  notify.Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil confirmer approves every
// cancellation, a nil notifier discards notifications and a nil refresher
// skips post-order refreshes.
func NewOrchestrator(api Backend, resolver Resolver, refresher Refresher, confirmer Confirmer, notifier notify.Notifier, logger zerolog.Logger) *Orchestrator {
	if confirmer == nil {
		confirmer = AlwaysConfirm
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Orchestrator{
		api:       api,
		resolver:  resolver,
		refresher: refresher,
		confirmer: confirmer,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// log returns the command logger carried by ctx, or the orchestrator's own.
func (o *Orchestrator) log(ctx context.Context) zerolog.Logger {
	return logging.WithComponent(logging.FromContext(ctx, o.logger), "trading")
}

// workflow tracks one run through the state machine.
type workflow struct {
	o      *Orchestrator
	logger zerolog.Logger
	out    Outcome
	symbol string
	side   string
}

func (o *Orchestrator) begin(ctx context.Context, symbol string, side models.OrderSide) *workflow {
	w := &workflow{
		o:      o,
		logger: o.log(ctx),
		symbol: symbol,
		side:   string(side),
		out: Outcome{
			State:    StateIdle,
			IntentID: utils.NewID(o.now()),
		},
	}
	w.out.Transitions = []State{StateIdle}
	return w
}

func (w *workflow) to(s State) {
	w.out.State = s
	w.out.Transitions = append(w.out.Transitions, s)
	logging.LogOrder(w.logger, w.out.IntentID, w.symbol, w.side, string(s), w.out.Message)
}

func (w *workflow) fail(ctx context.Context, title string, err error, message, requestID string) Outcome {
	w.out.Err = err
	w.out.Message = message
	w.out.RequestID = requestID
	w.to(StateFailed)
	w.o.notifier.Notify(ctx, notify.Notification{
		Kind:      notify.KindError,
		Title:     title,
		Message:   message,
		RequestID: requestID,
		Timestamp: w.o.now(),
	})
	return w.out
}

func (w *workflow) succeed(ctx context.Context, title string) Outcome {
	w.to(StateSucceeded)
	w.o.notifier.Notify(ctx, notify.Notification{
		Kind:      notify.KindSuccess,
		Title:     title,
		Message:   w.out.Message,
		RequestID: w.out.RequestID,
		Data:      map[string]interface{}{"order_id": w.out.OrderID, "intent_id": w.out.IntentID},
		Timestamp: w.o.now(),
	})
	if w.out.Notice != "" {
		w.o.notifier.Notify(ctx, notify.Notification{
			Kind:      notify.KindWarning,
			Title:     title,
			Message:   w.out.Notice,
			RequestID: w.out.RequestID,
			Timestamp: w.o.now(),
		})
	}
	return w.out
}

// PlaceOrder validates the draft, resolves the security id if the
// instrument has none, and submits the order. On success the account
// snapshot is refreshed; on failure nothing is refreshed.
func (o *Orchestrator) PlaceOrder(ctx context.Context, draft OrderDraft) Outcome {
	inst := draft.Instrument
	if inst == nil && o.resolver != nil {
		if sel, ok := o.resolver.Selected(); ok {
			inst = &sel.Instrument
		}
	}
	symbol := ""
	if inst != nil {
		symbol = inst.TradingSymbol
	}

	w := o.begin(ctx, symbol, draft.Side)
	w.to(StateValidating)

	if inst == nil {
		return w.fail(ctx, "Order not sent", errors.ErrNoInstrumentSelected, "Select an instrument first", "")
	}
	draft = withDefaults(draft, inst.Segment)
	if err := validate(draft.Side, draft.Quantity, draft.Lots, draft.Type, draft.Price); err != nil {
		return w.fail(ctx, "Order not sent", err, err.Message, "")
	}

	req := backend.OrderRequest{
		Symbol:     inst.TradingSymbol,
		SecurityID: inst.SecurityID,
		Segment:    inst.Segment,
		Side:       draft.Side,
		Quantity:   draft.Quantity,
		Lots:       draft.Lots,
		Type:       draft.Type,
		Price:      draft.Price,
		Product:    draft.Product,
		Validity:   draft.Validity,
	}
	if !inst.HasSecurityID() {
		w.to(StateResolving)
		id, err := o.resolve(ctx, inst.TradingSymbol, inst.Segment)
		if err != nil {
			return w.fail(ctx, "Order not sent", err, resolutionMessage(err), "")
		}
		req.SecurityID = id
	}

	return o.submit(ctx, w, req, "Order placed")
}

func (o *Orchestrator) resolve(ctx context.Context, symbol string, segment models.Segment) (string, error) {
	if o.resolver == nil {
		return "", errors.NewResolutionError(symbol, string(segment), "no resolver configured", nil, nil)
	}
	return o.resolver.ResolveSecurityID(ctx, symbol, segment)
}

// submit sends req and finishes the workflow.
func (o *Orchestrator) submit(ctx context.Context, w *workflow, req backend.OrderRequest, title string) Outcome {
	if req.Type == models.OrderTypeMarket {
		req.Price = 0
	}
	req.RequestID = uuid.NewString()

	w.to(StateSubmitting)
	env, err := o.api.PlaceOrder(ctx, req)

	// A request that never reached the backend has no correlation id.
	rid := env.RequestID()
	if rid == "" && env != nil {
		rid = req.RequestID
	}
	if err != nil {
		return w.fail(ctx, "Order failed", err, backend.Describe(env, err), rid)
	}

	w.out.RequestID = rid
	w.out.OrderID = env.String(orderIDPaths...)
	w.out.Message = env.Message()
	if w.out.Message == "" {
		w.out.Message = fmt.Sprintf("%s %d %s", req.Side, req.Quantity, req.Symbol)
	}
	w.out.Notice = o.notice(env, req)

	o.refreshAfterOrder(ctx)
	return w.succeed(ctx, title)
}

func (o *Orchestrator) refreshAfterOrder(ctx context.Context) {
	if o.refresher == nil {
		return
	}
	logger := o.log(ctx)
	if err := o.refresher.RefreshNow(ctx); err != nil {
		logger.Debug().Err(err).Msg("post-order refresh incomplete")
	}
	if err := o.refresher.Refresh(ctx, account.ResourceOrders); err != nil {
		logger.Debug().Err(err).Msg("post-order order book refresh failed")
	}
}

// notice picks the advisory message for a successful order.
func (o *Orchestrator) notice(env *backend.Envelope, req backend.OrderRequest) string {
	if n := env.String("$.notice", "$.warning", "$.preview.notice", "$.preview.warning"); n != "" {
		return n
	}
	if forced := env.String("$.preview.forced_product_type"); forced != "" && !strings.EqualFold(forced, string(req.Product)) {
		return fmt.Sprintf("Product type changed from %s to %s for %s", req.Product, strings.ToUpper(forced), req.Segment)
	}
	if req.Segment == models.SegmentMCX {
		return ""
	}
	switch utils.MarketStatusAt(o.now()) {
	case models.MarketClosed:
		return "Market is closed; the order will reach the exchange when it opens, if the broker keeps it"
	case models.MarketMISSquareOffWarn:
		if req.Product == models.ProductIntraday || req.Product == models.ProductIntra {
			return "Intraday square-off window is close; the broker may square this position off"
		}
	}
	return ""
}

// CancelOrder cancels an open order after the confirmer approves. An empty
// order id does nothing; a declined prompt sends nothing. On success the
// order book is refreshed.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) Outcome {
	id := strings.TrimSpace(orderID)
	w := o.begin(ctx, id, "")
	if id == "" {
		return w.out
	}

	if !o.confirmer.Confirm(ctx, fmt.Sprintf("Cancel order %s?", id)) {
		w.out.Message = "Cancellation declined"
		return w.out
	}

	w.out.OrderID = id
	w.to(StateSubmitting)
	env, err := o.api.CancelOrder(ctx, id)
	if err != nil {
		return w.fail(ctx, "Cancel failed", err, backend.Describe(env, err), env.RequestID())
	}

	w.out.RequestID = env.RequestID()
	w.out.Message = env.Message()
	if w.out.Message == "" {
		w.out.Message = "Order cancelled"
	}
	if o.refresher != nil {
		if err := o.refresher.Refresh(ctx, account.ResourceOrders); err != nil {
			logger := logging.WithOrderID(o.log(ctx), id)
			logger.Debug().Err(err).Msg("post-cancel order book refresh failed")
		}
	}
	return w.succeed(ctx, "Order cancelled")
}

func withDefaults(d OrderDraft, segment models.Segment) OrderDraft {
	if d.Type == "" {
		d.Type = models.OrderTypeMarket
	}
	if d.Validity == "" {
		d.Validity = models.ValidityDay
	}
	if d.Product == "" {
		d.Product = models.ProductDelivery
		if segment.IsDerivative() {
			d.Product = models.ProductIntraday
		}
	}
	return d
}

// validate checks the local preconditions of an order. A lot count stands
// in for the quantity, which the backend then derives from the lot size.
func validate(side models.OrderSide, qty, lots int, orderType models.OrderType, price float64) *errors.ValidationError {
	if side != models.OrderSideBuy && side != models.OrderSideSell {
		return errors.NewValidationError("side", side, "Side must be BUY or SELL")
	}
	if qty <= 0 && lots <= 0 {
		return errors.NewValidationError("quantity", qty, "Quantity must be greater than zero")
	}
	if orderType == models.OrderTypeLimit && price <= 0 {
		return errors.NewValidationError("price", price, "Limit orders need a price greater than zero")
	}
	return nil
}

func resolutionMessage(err error) string {
	var rerr *errors.ResolutionError
	if !errors.As(err, &rerr) {
		return err.Error()
	}
	msg := rerr.Message
	if msg == "" {
		msg = fmt.Sprintf("Could not resolve %s (%s)", rerr.Symbol, rerr.Segment)
	}
	var terr *errors.TransportError
	if errors.As(err, &terr) && !terr.HasPayload() && terr.StatusCode == 0 {
		msg = "Backend unreachable"
	}
	if len(rerr.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(rerr.Suggestions, ", ") + "?"
	}
	return msg
}
