// Package poller drives the periodic refresh of every entity a layout
// observes.
//
// Each cycle fans out one bounded fetch per entity, records successes and
// failures in the state cache and nudges the renderer when anything it
// would draw has changed. The poller never gives up on an entity: values
// that stop refreshing go stale in the cache and recover on the next
// successful fetch.
package poller

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
	"github.com/nerrad567/panelsync/internal/statecache"
)

// Fetcher fetches the raw state of one entity.
type Fetcher interface {
	EntityState(ctx context.Context, entityID string) (string, error)
}

// Config holds the poller settings.
type Config struct {
	// Entities is the distinct set of entity ids to refresh.
	Entities []string

	// Interval is the pause between refresh cycles.
	Interval time.Duration

	// Timeout bounds each individual fetch.
	Timeout time.Duration

	// Concurrency caps in-flight fetches per cycle. Defaults to 4.
	Concurrency int

	// OnTransition, when set, is called as an entity crosses into
	// (stale=true) or out of (stale=false) staleness. It runs on a fetch
	// goroutine and must not block.
	OnTransition func(entityID string, stale bool)
}

// Poller refreshes entity states into the cache on a fixed interval.
type Poller struct {
	fetcher    Fetcher
	cache      *statecache.Cache
	notify     func()
	transition func(entityID string, stale bool)
	logger     *logging.Logger
	entities   []string
	interval   time.Duration
	timeout    time.Duration
	limit      int
}

// New creates a poller. notify is invoked, possibly concurrently, whenever
// a refresh changed something the display should reflect; it must be cheap
// and non-blocking.
func New(cfg Config, fetcher Fetcher, cache *statecache.Cache, notify func(), logger *logging.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if notify == nil {
		notify = func() {}
	}
	if cfg.OnTransition == nil {
		cfg.OnTransition = func(string, bool) {}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		fetcher:    fetcher,
		cache:      cache,
		notify:     notify,
		transition: cfg.OnTransition,
		logger:     logger,
		entities:   cfg.Entities,
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		limit:      cfg.Concurrency,
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle refreshes every entity once. Failures are per-entity: one
// unreachable sensor does not block the rest of the cycle.
func (p *Poller) cycle(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for _, id := range p.entities {
		id := id
		g.Go(func() error {
			p.refresh(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Poller) refresh(ctx context.Context, id string) {
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, err := p.fetcher.EntityState(fctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		crossed := p.cache.Fail(id)
		if crossed {
			p.logger.Warn("entity went stale", "entity", id)
			p.transition(id, true)
			p.notify()
		} else {
			p.logger.Debug("entity refresh failed", "entity", id, "error", err)
		}
		return
	}
	changed, recovered := p.cache.Set(id, value)
	if recovered {
		p.logger.Info("entity recovered", "entity", id)
		p.transition(id, false)
	}
	if changed {
		p.notify()
	}
}
