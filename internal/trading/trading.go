// Package trading runs the order workflows: placing orders for the
// selected instrument, cancelling open orders, and squaring off holdings
// and positions.
package trading

import (
	"context"

	"dhan-trader/internal/account"
	"dhan-trader/internal/backend"
	"dhan-trader/internal/errors"
	"dhan-trader/internal/instrument"
	"dhan-trader/internal/models"
)

// State is one step of an order workflow.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateResolving  State = "resolving"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// ErrNoExitDraft is returned when an exit dialog is confirmed while closed.
var ErrNoExitDraft = errors.New("no exit draft open")

// Backend is the part of the backend the workflows submit to.
type Backend interface {
	PlaceOrder(ctx context.Context, req backend.OrderRequest) (*backend.Envelope, error)
	CancelOrder(ctx context.Context, orderID string) (*backend.Envelope, error)
}

// Resolver supplies the selected instrument and security id lookups.
type Resolver interface {
	Selected() (instrument.Selection, bool)
	ResolveSecurityID(ctx context.Context, symbol string, segment models.Segment) (string, error)
}

// Refresher refreshes the account snapshot after a successful order.
type Refresher interface {
	RefreshNow(ctx context.Context) error
	Refresh(ctx context.Context, resources ...account.Resource) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

// OrderDraft is an order the user is about to place.
type OrderDraft struct {
	// Instrument overrides the resolver's current selection when set.
	Instrument *models.Instrument
	Side       models.OrderSide
	Quantity   int
	Lots       int
	Type       models.OrderType
	Price      float64
	Product    models.ProductType
	Validity   models.Validity
}

// Outcome reports how a workflow ended.
type Outcome struct {
	State       State
	Transitions []State
	IntentID    string
	Message     string
	RequestID   string
	// Notice is advisory and does not make the outcome a failure.
	Notice  string
	OrderID string
	Err     error
}

// Succeeded reports whether the workflow reached StateSucceeded.
func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}
