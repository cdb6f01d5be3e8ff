// Package instrument finds tradeable instruments and maps a symbol and
// segment to the broker's security id.
package instrument

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"dhan-trader/internal/backend"
	"dhan-trader/internal/errors"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/models"
	"dhan-trader/internal/normalize"
)

// ErrSuperseded is returned by a search that a newer search or Cancel
// replaced before its results could be delivered.
var ErrSuperseded = errors.New("search superseded")

// Lookup is the part of the backend the resolver needs.
type Lookup interface {
	SearchSymbols(ctx context.Context, query string, segment models.Segment) (*backend.Envelope, error)
	ResolveSymbol(ctx context.Context, symbol string, segment models.Segment) (*backend.Envelope, error)
}

// Options configures a Resolver.
type Options struct {
	Debounce  time.Duration
	MinLength int
}

// DefaultOptions returns the interactive search defaults.
func DefaultOptions() Options {
	return Options{Debounce: 300 * time.Millisecond, MinLength: 2}
}

// Selection is the instrument the user picked.
type Selection struct {
	Instrument models.Instrument
	Label      string
}

type cacheKey struct {
	symbol  string
	segment models.Segment
}

var securityIDFields = normalize.Accessors{"$.inst.securityId", "$.inst.security_id", "$.securityId", "$.security_id"}

// Resolver runs instrument searches and security id lookups.
type Resolver struct {
	api     Lookup
	opts    Options
	logger  zerolog.Logger
	mu      sync.Mutex
	seq     uint64
	pending chan struct{}

	selection *Selection
	resolved  map[cacheKey]string
}

// NewResolver creates a resolver.
func NewResolver(api Lookup, opts Options, logger zerolog.Logger) *Resolver {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultOptions().MinLength
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	return &Resolver{
		api:      api,
		opts:     opts,
		logger:   logging.WithComponent(logger, "instrument"),
		resolved: make(map[cacheKey]string),
	}
}

// begin supersedes any pending search and returns the new search's
// sequence number and cancellation channel.
func (r *Resolver) begin() (uint64, chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.pending != nil {
		close(r.pending)
	}
	r.pending = make(chan struct{})
	return r.seq, r.pending
}

// finish releases the pending slot if seq is still the latest search.
// It reports whether seq was current.
func (r *Resolver) finish(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq {
		return false
	}
	r.pending = nil
	return true
}

// Search looks up instruments matching query after the debounce delay.
// Queries shorter than the minimum length return an empty result without
// a network call. Only the latest call delivers results; earlier ones
// return ErrSuperseded.
func (r *Resolver) Search(ctx context.Context, query string, segment models.Segment) ([]models.Instrument, error) {
	q := strings.TrimSpace(query)
	seq, cancelled := r.begin()

	if utf8.RuneCountInString(q) < r.opts.MinLength {
		r.finish(seq)
		return []models.Instrument{}, nil
	}

	timer := time.NewTimer(r.opts.Debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.finish(seq)
		return nil, ctx.Err()
	case <-cancelled:
		return nil, ErrSuperseded
	case <-timer.C:
	}

	lookupCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-cancelled:
			stop()
		case <-lookupCtx.Done():
		}
	}()

	env, err := r.api.SearchSymbols(lookupCtx, q, segment)
	if !r.finish(seq) {
		r.logger.Debug().Str("query", q).Msg("discarding superseded search results")
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return normalize.Instruments(env.Records("results", "data")), nil
}

// Cancel supersedes the pending search, if any.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.pending != nil {
		close(r.pending)
		r.pending = nil
	}
}

// Label renders an instrument for display: the trading symbol, followed by
// the expiry date for derivatives.
func Label(inst models.Instrument) string {
	if inst.Expiry == nil {
		return inst.TradingSymbol
	}
	return inst.TradingSymbol + " (" + inst.Expiry.Format("2006-01-02") + ")"
}

// Select records inst as the current selection.
func (r *Resolver) Select(inst models.Instrument) Selection {
	sel := Selection{Instrument: inst, Label: Label(inst)}
	r.mu.Lock()
	r.selection = &sel
	r.mu.Unlock()
	return sel
}

// Selected returns the current selection.
func (r *Resolver) Selected() (Selection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selection == nil {
		return Selection{}, false
	}
	return *r.selection, true
}

// ClearSelection forgets the current selection.
func (r *Resolver) ClearSelection() {
	r.mu.Lock()
	r.selection = nil
	r.mu.Unlock()
}

// ResolveSecurityID maps symbol and segment to a security id. Results are
// remembered for the life of the resolver.
func (r *Resolver) ResolveSecurityID(ctx context.Context, symbol string, segment models.Segment) (string, error) {
	sym := strings.TrimSpace(symbol)
	if sym == "" {
		return "", errors.NewResolutionError(sym, string(segment), "symbol is required", nil, errors.ErrInputValidation)
	}
	key := cacheKey{symbol: strings.ToUpper(sym), segment: segment}

	r.mu.Lock()
	id, ok := r.resolved[key]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	env, err := r.api.ResolveSymbol(ctx, sym, segment)
	if err != nil {
		var cause error
		var terr *errors.TransportError
		if errors.As(err, &terr) {
			cause = err
		}
		return "", errors.NewResolutionError(sym, string(segment), env.Message(), suggestions(env), cause)
	}

	v, found := securityIDFields.Lookup(env.Body)
	id = normalize.SecurityID(v)
	if !found || id == "" {
		return "", errors.NewResolutionError(sym, string(segment), env.Message(), suggestions(env), nil)
	}

	r.mu.Lock()
	r.resolved[key] = id
	r.mu.Unlock()

	r.logger.Debug().Str("symbol", sym).Str("segment", string(segment)).Str("security_id", id).Msg("resolved symbol")
	return id, nil
}

func suggestions(env *backend.Envelope) []string {
	if env == nil {
		return nil
	}
	list, ok := env.Body["suggestions"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		case map[string]any:
			if s := normalize.Instrument(x).TradingSymbol; s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
