// Package stream polls the backend's webhook alert feed and keeps two
// views of it: a short-lived live view and a bounded history log.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dhan-trader/internal/backend"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/models"
	"dhan-trader/internal/normalize"
	"dhan-trader/pkg/utils"
)

// Feed is the part of the backend the ledger polls.
type Feed interface {
	Alerts(ctx context.Context) (*backend.Envelope, error)
}

// LedgerConfig holds ledger timing and capacity.
type LedgerConfig struct {
	PollInterval  time.Duration
	EvictInterval time.Duration
	// TTL is how long an ingested alert stays in the live view.
	TTL time.Duration
	// MaxLog caps the history log.
	MaxLog int
}

// DefaultLedgerConfig returns the default ledger configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		PollInterval:  5 * time.Second,
		EvictInterval: time.Second,
		TTL:           20 * time.Second,
		MaxLog:        200,
	}
}

// Ledger ingests alert batches. Every poll replaces the live view with the
// fetched batch and prepends it to the log, newest first. Alerts repeated
// across polls are kept.
type Ledger struct {
	feed   Feed
	config LedgerConfig
	logger zerolog.Logger
	trace  zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	live     []models.Alert
	log      []models.Alert
	lastErr  error
	lastPoll time.Time
	epoch    uint64
	running  bool
	cancel   context.CancelFunc
	onBatch  func([]models.Alert)

	wg sync.WaitGroup
}

// NewLedger creates a ledger. trace receives one entry per ingested alert.
func NewLedger(feed Feed, config LedgerConfig, logger, trace zerolog.Logger) *Ledger {
	def := DefaultLedgerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.EvictInterval <= 0 {
		config.EvictInterval = def.EvictInterval
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.MaxLog <= 0 {
		config.MaxLog = def.MaxLog
	}
	return &Ledger{
		feed:   feed,
		config: config,
		logger: logger,
		trace:  trace,
		now:    time.Now,
	}
}

// SetBatchCallback registers fn to receive every ingested batch.
func (l *Ledger) SetBatchCallback(fn func([]models.Alert)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onBatch = fn
}

// Poll fetches the current alert feed and ingests it. A failed poll leaves
// both views untouched.
func (l *Ledger) Poll(ctx context.Context) error {
	l.mu.RLock()
	epoch := l.epoch
	l.mu.RUnlock()

	env, err := l.feed.Alerts(ctx)
	if err != nil {
		l.mu.Lock()
		if epoch == l.epoch {
			l.lastErr = err
		}
		l.mu.Unlock()
		logger := logging.WithComponent(logging.FromContext(ctx, l.logger), "alerts")
		logger.Warn().Err(err).Str("reason", backend.Describe(env, err)).Msg("alert poll failed")
		return err
	}

	batch := normalize.Alerts(env.Records("alerts", "data"))
	now := l.now()
	expires := now.Add(l.config.TTL)
	for i := range batch {
		batch[i].EntryID = utils.NewID(now)
		batch[i].ExpiresAt = expires
	}

	l.mu.Lock()
	if epoch != l.epoch {
		l.mu.Unlock()
		return nil
	}
	l.live = append([]models.Alert(nil), batch...)
	l.log = prepend(l.log, batch, l.config.MaxLog)
	l.lastErr = nil
	l.lastPoll = now
	onBatch := l.onBatch
	l.mu.Unlock()

	for _, a := range batch {
		logging.LogAlert(l.trace, a)
	}
	if onBatch != nil && len(batch) > 0 {
		onBatch(append([]models.Alert(nil), batch...))
	}
	return nil
}

func prepend(log, batch []models.Alert, max int) []models.Alert {
	n := len(batch) + len(log)
	if n > max {
		n = max
	}
	out := make([]models.Alert, 0, n)
	out = append(out, batch...)
	out = append(out, log...)
	return out[:n]
}

// LiveView returns the alerts of the latest batch that have not expired.
func (l *Ledger) LiveView() []models.Alert {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Alert, 0, len(l.live))
	for _, a := range l.live {
		if !a.Expired(now) {
			out = append(out, a)
		}
	}
	return out
}

// LogView returns the history log, newest first.
func (l *Ledger) LogView() []models.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Alert(nil), l.log...)
}

// Evict drops expired alerts from the live view and reports how many
// were removed.
func (l *Ledger) Evict() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.live[:0:0]
	for _, a := range l.live {
		if !a.Expired(now) {
			kept = append(kept, a)
		}
	}
	removed := len(l.live) - len(kept)
	l.live = kept
	return removed
}

// LastError returns the error of the most recent poll, nil after a
// successful one.
func (l *Ledger) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// LastPoll returns when the last successful poll was ingested.
func (l *Ledger) LastPoll() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastPoll
}

// Start polls immediately and then on the poll interval, evicting expired
// live alerts on the evict interval, until Stop is called or ctx is done.
func (l *Ledger) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	l.wg.Add(1)
	go l.loop(loopCtx)
}

// Stop halts polling and waits for the loop to exit. A poll in flight when
// Stop is called is discarded.
func (l *Ledger) Stop() {
	l.mu.Lock()
	l.epoch++
	cancel := l.cancel
	l.cancel = nil
	l.running = false
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
}

func (l *Ledger) loop(ctx context.Context) {
	defer l.wg.Done()

	poll := time.NewTicker(l.config.PollInterval)
	defer poll.Stop()
	evict := time.NewTicker(l.config.EvictInterval)
	defer evict.Stop()

	_ = l.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			_ = l.Poll(ctx)
		case <-evict.C:
			l.Evict()
		}
	}
}
