// Package registry tracks the set of watched vehicles and drives one tick
// loop per vehicle.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/stkwatch/internal/pkg/metrics"
	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/internal/stkagent/exposure"
	"github.com/autopeer-io/stkwatch/pkg/log"
)

// Factory builds the coordinator of a newly registered vehicle.
type Factory func(q core.VehicleQuery) (*coordinator.Coordinator, error)

type entry struct {
	coord  *coordinator.Coordinator
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns every coordinator. Loops start once Run is called;
// vehicles added earlier wait for it.
type Registry struct {
	factory  Factory
	sink     exposure.Sink
	clock    clock.WithTicker
	interval time.Duration
	logger   log.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]*entry
}

func New(factory Factory, sink exposure.Sink, clk clock.WithTicker, interval time.Duration) *Registry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Registry{
		factory:  factory,
		sink:     sink,
		clock:    clk,
		interval: interval,
		logger:   log.WithName("registry"),
		entries:  make(map[string]*entry),
	}
}

// Run starts the tick loops and blocks until ctx is cancelled, then shuts
// every vehicle down. Shutdown leaves published entities in place.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	for _, e := range r.entries {
		r.start(e)
	}
	r.mu.Unlock()

	<-ctx.Done()
	r.Close()
	return nil
}

// Add registers q. A VIN can only be registered once.
func (r *Registry) Add(q core.VehicleQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[q.VIN]; ok {
		return fmt.Errorf("%w: %s", core.ErrVINExists, q.VIN)
	}

	c, err := r.factory(q)
	if err != nil {
		return fmt.Errorf("create coordinator for %s: %w", q.VIN, err)
	}
	e := &entry{coord: c}
	r.entries[q.VIN] = e
	metrics.Vehicles.Set(float64(len(r.entries)))
	r.logger.Info("Vehicle registered", "vin", q.VIN, "name", q.Name, "hasKey", q.HasCredential())

	if r.ctx != nil {
		r.start(e)
	}
	return nil
}

// Remove stops the loop of vin, releases its session and withdraws it from
// the sink.
func (r *Registry) Remove(vin string) error {
	r.mu.Lock()
	e, ok := r.entries[vin]
	if ok {
		delete(r.entries, vin)
		metrics.Vehicles.Set(float64(len(r.entries)))
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("vehicle %s is not registered", vin)
	}
	return r.stop(e, true)
}

// Sync makes the registered set equal to queries. A vehicle whose name or
// key changed is re-created.
func (r *Registry) Sync(queries []core.VehicleQuery) error {
	want := make(map[string]core.VehicleQuery, len(queries))
	for _, q := range queries {
		want[q.VIN] = q
	}

	var stale []string
	r.mu.Lock()
	for vin, e := range r.entries {
		if q, ok := want[vin]; !ok || q != e.coord.Query() {
			stale = append(stale, vin)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, vin := range stale {
		if err := r.Remove(vin); err != nil {
			errs = append(errs, err)
		}
	}
	for _, q := range queries {
		if _, ok := r.Get(q.VIN); ok {
			continue
		}
		if err := r.Add(q); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Get returns the coordinator of vin.
func (r *Registry) Get(vin string) (*coordinator.Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[vin]
	if !ok {
		return nil, false
	}
	return e.coord, true
}

// List returns the registered vehicles ordered by VIN.
func (r *Registry) List() []core.VehicleQuery {
	r.mu.Lock()
	out := make([]core.VehicleQuery, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.coord.Query())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].VIN < out[j].VIN })
	return out
}

// Close stops every loop and releases every session. Unlike Remove, it
// does not withdraw the vehicles from the sink.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	metrics.Vehicles.Set(0)
	r.mu.Unlock()

	for vin, e := range entries {
		if err := r.stop(e, false); err != nil {
			r.logger.Error(err, "Failed to stop vehicle", "vin", vin)
		}
	}
}

// start launches the tick loop of e. Callers hold r.mu.
func (r *Registry) start(e *entry) {
	ctx, cancel := context.WithCancel(r.ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go r.loop(ctx, e)
}

// stop ends the loop of e and closes its coordinator. withdraw also removes
// the vehicle from the sink.
func (r *Registry) stop(e *entry, withdraw bool) error {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}

	q := e.coord.Query()
	var errs []error
	if err := e.coord.Close(); err != nil {
		errs = append(errs, err)
	}
	if !withdraw {
		r.logger.Info("Vehicle stopped", "vin", q.VIN)
		return utilerrors.NewAggregate(errs)
	}

	// The loop context is gone; withdrawal gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.Remove(ctx, q); err != nil {
		errs = append(errs, err)
	}
	r.logger.Info("Vehicle removed", "vin", q.VIN)
	return utilerrors.NewAggregate(errs)
}

// loop refreshes immediately, then on every tick. The rate gate inside the
// coordinator decides whether a tick reaches the upstream.
func (r *Registry) loop(ctx context.Context, e *entry) {
	defer close(e.done)

	r.tick(ctx, e)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.tick(ctx, e)
		}
	}
}

func (r *Registry) tick(ctx context.Context, e *entry) {
	res := e.coord.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}
	if err := r.sink.Publish(ctx, e.coord.Query(), res); err != nil {
		r.logger.Error(err, "Failed to publish refresh result", "vin", res.VIN)
	}
}
