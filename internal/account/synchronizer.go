// Package account keeps a periodically refreshed snapshot of backend
// health, funds, holdings, positions and the order book.
package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"dhan-trader/internal/backend"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/models"
	"dhan-trader/internal/normalize"
)

// Resource names one slot of the snapshot.
type Resource string

const (
	ResourceStatus    Resource = "status"
	ResourceFunds     Resource = "funds"
	ResourceHoldings  Resource = "holdings"
	ResourcePositions Resource = "positions"
	ResourceOrders    Resource = "orders"
)

// AllResources lists every resource in display order.
var AllResources = []Resource{ResourceStatus, ResourceFunds, ResourceHoldings, ResourcePositions, ResourceOrders}

// Source is the part of the backend the synchronizer reads.
type Source interface {
	Status(ctx context.Context) (*backend.Envelope, error)
	Funds(ctx context.Context) (*backend.Envelope, error)
	Holdings(ctx context.Context) (*backend.Envelope, error)
	Positions(ctx context.Context) (*backend.Envelope, error)
	Orders(ctx context.Context) (*backend.Envelope, error)
}

// Snapshot is the latest known account state. Funds is nil until a funds
// fetch succeeds. A failed resource holds an empty value and its message
// in Errors.
type Snapshot struct {
	Connected          bool
	StatusMessage      string
	BrokerReady        bool
	InstrumentsCurrent bool

	Funds     *models.Funds
	Holdings  []models.Holding
	Positions []models.Position
	Orders    []models.Order

	Errors    map[Resource]string
	UpdatedAt time.Time
}

func (s Snapshot) clone() Snapshot {
	errs := make(map[Resource]string, len(s.Errors))
	for k, v := range s.Errors {
		errs[k] = v
	}
	s.Errors = errs
	return s
}

// Err combines the per-resource errors, nil when every resource is healthy.
func (s Snapshot) Err() error {
	var err error
	for _, r := range AllResources {
		if msg, ok := s.Errors[r]; ok {
			err = multierr.Append(err, fmt.Errorf("%s: %s", r, msg))
		}
	}
	return err
}

// OpenOrders returns the orders that can still be cancelled.
func (s Snapshot) OpenOrders() []models.Order {
	var out []models.Order
	for _, o := range s.Orders {
		if o.Cancellable() {
			out = append(out, o)
		}
	}
	return out
}

// Options configures a Synchronizer.
type Options struct {
	Interval time.Duration
	// Now stamps snapshot updates. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default refresh cadence.
func DefaultOptions() Options {
	return Options{Interval: 30 * time.Second}
}

// Synchronizer polls the backend and publishes Snapshots.
type Synchronizer struct {
	api      Source
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu       sync.RWMutex
	snap     Snapshot
	epoch    uint64
	running  bool
	cancel   context.CancelFunc
	onUpdate func(Snapshot)

	wg sync.WaitGroup
}

// NewSynchronizer creates a synchronizer with an empty snapshot.
func NewSynchronizer(api Source, opts Options, logger zerolog.Logger) *Synchronizer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synchronizer{
		api:      api,
		interval: opts.Interval,
		now:      opts.Now,
		logger:   logging.WithComponent(logger, "account"),
		snap:     Snapshot{Errors: map[Resource]string{}},
	}
}

// SetUpdateCallback registers fn to receive the snapshot after every refresh.
func (s *Synchronizer) SetUpdateCallback(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Snapshot returns a copy of the current snapshot.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Start runs a refresh cycle immediately and then every interval until
// Stop is called or ctx is done. Calling Start on a running synchronizer
// does nothing.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(loopCtx)
}

// Stop halts the refresh loop and waits for it to exit. Results of fetches
// that began before Stop are discarded.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.epoch++
	cancel := s.cancel
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Synchronizer) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_ = s.RefreshNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RefreshNow(ctx)
		}
	}
}

// RefreshNow refreshes every resource.
func (s *Synchronizer) RefreshNow(ctx context.Context) error {
	return s.Refresh(ctx, AllResources...)
}

// Refresh fetches the given resources concurrently. Each resource updates
// only its own slot. The returned error combines this refresh's failures.
func (s *Synchronizer) Refresh(ctx context.Context, resources ...Resource) error {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	errs := make([]error, len(resources))
	var g errgroup.Group
	for i, r := range resources {
		i, r := i, r
		g.Go(func() error {
			errs[i] = s.refreshOne(ctx, epoch, r)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.RLock()
	current := epoch == s.epoch
	onUpdate := s.onUpdate
	snap := s.snap.clone()
	s.mu.RUnlock()

	if current && onUpdate != nil {
		onUpdate(snap)
	}
	return multierr.Combine(errs...)
}

func (s *Synchronizer) refreshOne(ctx context.Context, epoch uint64, r Resource) error {
	var (
		env *backend.Envelope
		err error
	)
	switch r {
	case ResourceStatus:
		env, err = s.api.Status(ctx)
	case ResourceFunds:
		env, err = s.api.Funds(ctx)
	case ResourceHoldings:
		env, err = s.api.Holdings(ctx)
	case ResourcePositions:
		env, err = s.api.Positions(ctx)
	case ResourceOrders:
		env, err = s.api.Orders(ctx)
	default:
		return fmt.Errorf("unknown resource %q", r)
	}

	if err != nil {
		msg := backend.Describe(env, err)
		if !s.apply(epoch, func(snap *Snapshot) {
			clearSlot(snap, r, msg)
			snap.Errors[r] = msg
		}) {
			return nil
		}
		s.logger.Warn().Err(err).Str("resource", string(r)).Msg("refresh failed")
		return fmt.Errorf("%s: %s", r, msg)
	}

	s.apply(epoch, func(snap *Snapshot) {
		fillSlot(snap, r, env)
		delete(snap.Errors, r)
	})
	return nil
}

// apply replaces the snapshot with a modified copy unless Stop was called
// since epoch was taken.
func (s *Synchronizer) apply(epoch uint64, fn func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	next := s.snap.clone()
	fn(&next)
	next.UpdatedAt = s.now()
	s.snap = next
	return true
}

func clearSlot(snap *Snapshot, r Resource, msg string) {
	switch r {
	case ResourceStatus:
		snap.Connected = false
		snap.StatusMessage = msg
		snap.BrokerReady = false
		snap.InstrumentsCurrent = false
	case ResourceFunds:
		snap.Funds = nil
	case ResourceHoldings:
		snap.Holdings = []models.Holding{}
	case ResourcePositions:
		snap.Positions = []models.Position{}
	case ResourceOrders:
		snap.Orders = []models.Order{}
	}
}

func fillSlot(snap *Snapshot, r Resource, env *backend.Envelope) {
	switch r {
	case ResourceStatus:
		snap.Connected = env.OK()
		snap.StatusMessage = env.String("$.message", "$.why")
		snap.BrokerReady = env.Bool("$.broker_ready", "$.brokerReady")
		snap.InstrumentsCurrent = env.Bool("$.instruments_db_current_today", "$.instruments_current")
	case ResourceFunds:
		funds := models.Funds{}
		if recs := env.Records("data", "funds"); len(recs) > 0 {
			funds = normalize.Funds(recs[0])
		}
		snap.Funds = &funds
	case ResourceHoldings:
		snap.Holdings = normalize.Holdings(env.Records("data", "holdings"))
	case ResourcePositions:
		snap.Positions = normalize.Positions(env.Records("data", "positions"))
	case ResourceOrders:
		snap.Orders = normalize.Orders(env.Records("data", "orders"))
	}
}
