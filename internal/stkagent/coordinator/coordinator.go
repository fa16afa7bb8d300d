// Package coordinator owns the refresh cycle of a single vehicle: rate
// gate, fetch, normalization and the last-good snapshot cache.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/stkwatch/internal/pkg/metrics"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/internal/stkagent/fetcher"
	"github.com/autopeer-io/stkwatch/internal/stkagent/normalize"
	"github.com/autopeer-io/stkwatch/pkg/log"
)

// Archiver stores raw upstream payloads. Failures never fail a refresh.
type Archiver interface {
	Archive(ctx context.Context, vin string, raw *core.RawRecord, at time.Time) error
}

// Result is the outcome of one Refresh.
type Result struct {
	VIN string
	// Snapshot is the fresh snapshot, the cached one when Stale, or nil.
	Snapshot *core.Snapshot
	// Err is set for every outcome except StateUpdated.
	Err     error
	Outcome State
	Stale   bool
	Changed []core.FieldKey
	At      time.Time
}

// OK reports whether the cycle produced a fresh snapshot.
func (r *Result) OK() bool {
	return r != nil && r.Outcome == StateUpdated
}

type cycle struct {
	now    time.Time
	result *Result
}

// Options configures a Coordinator.
type Options struct {
	MinInterval time.Duration
	Location    *time.Location
	Clock       clock.PassiveClock
	Archiver    Archiver
	Logger      log.Logger
}

// Coordinator refreshes one vehicle. Refresh calls are serialized; cache
// reads never block.
type Coordinator struct {
	query       core.VehicleQuery
	fetcher     fetcher.Fetcher
	minInterval time.Duration
	location    *time.Location
	clock       clock.PassiveClock
	archiver    Archiver
	logger      log.Logger

	mu      sync.Mutex
	machine *stateMachine
	lastErr error

	cache       atomic.Pointer[core.Snapshot]
	lastAttempt atomic.Pointer[time.Time]
	last        atomic.Pointer[Result]
}

// New returns a coordinator that owns f. Close releases it.
func New(q core.VehicleQuery, f fetcher.Fetcher, opts Options) *Coordinator {
	c := &Coordinator{
		query:       q,
		fetcher:     f,
		minInterval: opts.MinInterval,
		location:    opts.Location,
		clock:       opts.Clock,
		archiver:    opts.Archiver,
		logger:      opts.Logger,
	}
	if c.location == nil {
		c.location = time.UTC
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	if c.logger == nil {
		c.logger = log.WithName("coordinator")
	}
	c.logger = c.logger.WithValues("vin", q.VIN)
	c.machine = newStateMachine(c)
	return c
}

func (c *Coordinator) Query() core.VehicleQuery { return c.query }

// State is the current lifecycle state; idle between refreshes.
func (c *Coordinator) State() State { return State(c.machine.Current()) }

// Snapshot returns the last good snapshot, or nil.
func (c *Coordinator) Snapshot() *core.Snapshot { return c.cache.Load() }

// Last returns the most recent refresh result, or nil before the first one.
func (c *Coordinator) Last() *Result { return c.last.Load() }

// LastAttempt returns when the upstream was last contacted (or skipped for
// a missing key). Zero before the first attempt.
func (c *Coordinator) LastAttempt() time.Time {
	if t := c.lastAttempt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Refresh runs one cycle and always returns a result; errors are carried
// in Result.Err.
func (c *Coordinator) Refresh(ctx context.Context) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	cy := &cycle{
		now:    c.clock.Now(),
		result: &Result{VIN: c.query.VIN},
	}
	cy.result.At = cy.now

	if err := c.machine.Event(ctx, EventRefresh, cy); err != nil {
		if isCanceled(err) {
			c.fail(ctx, cy, c.gateError(cy.now))
		} else {
			c.fail(ctx, cy, fmt.Errorf("start refresh: %w", err))
		}
	} else {
		c.fetch(ctx, cy)
	}

	if err := c.machine.Event(ctx, EventFinalize, cy); isFsmRealError(err) {
		c.logger.Error(err, "Failed to finalize refresh cycle")
		c.machine.SetState(string(StateIdle))
	}

	c.observe(cy.result)
	c.last.Store(cy.result)
	return cy.result
}

func (c *Coordinator) fetch(ctx context.Context, cy *cycle) {
	started := c.clock.Now()
	raw, err := c.fetcher.Fetch(ctx, c.query)
	c.recordAttempt(started)
	if err != nil {
		c.fail(ctx, cy, err)
		return
	}

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, c.query.VIN, raw, started); err != nil {
			c.logger.Warn("Failed to archive raw payload", "error", err)
		}
	}

	snap, err := normalize.Record(raw, normalize.Today(started, c.location))
	if err != nil {
		c.fail(ctx, cy, err)
		return
	}
	snap.FetchedAt = started

	cy.result.Snapshot = snap
	if err := c.machine.Event(ctx, EventSuccess, cy); isFsmRealError(err) {
		c.fail(ctx, cy, fmt.Errorf("complete refresh: %w", err))
		return
	}
	c.lastErr = nil
	cy.result.Outcome = StateUpdated
	c.logger.Debug("Refreshed vehicle data", "source", snap.Source, "status", snap.Status, "changed", len(cy.result.Changed))
}

// fail leaves the cache untouched and serves it when present.
func (c *Coordinator) fail(ctx context.Context, cy *cycle, err error) {
	cy.result.Snapshot = nil
	cy.result.Err = err

	event, outcome := EventFail, StateFailedWithoutCache
	if c.cache.Load() != nil {
		event, outcome = EventFailCached, StateFailedWithCache
	}
	if ferr := c.machine.Event(ctx, event, cy); isFsmRealError(ferr) {
		c.logger.Error(ferr, "Invalid refresh transition", "event", event)
		c.machine.SetState(string(outcome))
		if outcome == StateFailedWithCache {
			cy.result.Snapshot, cy.result.Stale = c.cache.Load(), true
		}
	}
	cy.result.Outcome = outcome

	if core.KindOf(err) != core.KindRateLimitedLocal {
		c.lastErr = err
		c.logger.Info("Refresh failed", "kind", core.KindOf(err), "error", err.Error(), "stale", cy.result.Stale)
	}
}

// gateError wraps the last real failure so sinks can still tell, for
// example, that the key is missing while the gate is closed.
func (c *Coordinator) gateError(now time.Time) error {
	next := c.LastAttempt().Add(c.minInterval)
	if c.lastErr != nil {
		return core.WrapError(core.KindRateLimitedLocal, c.lastErr, "next attempt after %s", next.Format(time.RFC3339))
	}
	return core.NewError(core.KindRateLimitedLocal, "next attempt after %s", next.Format(time.RFC3339))
}

func (c *Coordinator) recordAttempt(t time.Time) {
	c.lastAttempt.Store(&t)
}

func (c *Coordinator) observe(r *Result) {
	metrics.RefreshTotal.WithLabelValues(string(r.Outcome)).Inc()
	if kind := core.KindOf(r.Err); kind != "" {
		metrics.RefreshErrors.WithLabelValues(string(kind)).Inc()
	}
	if r.Snapshot != nil && r.Snapshot.DaysRemaining != nil {
		metrics.DaysRemaining.WithLabelValues(c.query.VIN).Set(float64(*r.Snapshot.DaysRemaining))
	}
}

// Close releases the fetcher session. The coordinator must not be used
// afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.DaysRemaining.DeleteLabelValues(c.query.VIN)
	return c.fetcher.Close()
}
