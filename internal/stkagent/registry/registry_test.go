package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/log"
)

const (
	vinA = "TMBJJ7NE8L0123456"
	vinB = "WVWZZZ1JZXW000001"
)

type countingFetcher struct {
	calls  atomic.Int32
	closed atomic.Bool
}

func (f *countingFetcher) Source() core.Source { return core.SourceAPI }

func (f *countingFetcher) Fetch(ctx context.Context, q core.VehicleQuery) (*core.RawRecord, error) {
	f.calls.Add(1)
	return &core.RawRecord{
		Source: core.SourceAPI,
		Status: 1,
		Data:   map[string]any{"VIN": q.VIN, "PravidelnaTechnickaProhlidkaDo": "2030-01-01"},
	}, nil
}

func (f *countingFetcher) Close() error {
	f.closed.Store(true)
	return nil
}

type recordingSink struct {
	mu        sync.Mutex
	published map[string]int
	removed   []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{published: make(map[string]int)}
}

func (s *recordingSink) Publish(_ context.Context, q core.VehicleQuery, _ *coordinator.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[q.VIN]++
	return nil
}

func (s *recordingSink) Remove(_ context.Context, q core.VehicleQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, q.VIN)
	return nil
}

func (s *recordingSink) count(vin string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[vin]
}

func (s *recordingSink) removedVINs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

type harness struct {
	clock    *testingclock.FakeClock
	sink     *recordingSink
	registry *Registry

	mu       sync.Mutex
	fetchers map[string]*countingFetcher
}

func newHarness(interval time.Duration) *harness {
	h := &harness{
		clock:    testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)),
		sink:     newRecordingSink(),
		fetchers: make(map[string]*countingFetcher),
	}
	factory := func(q core.VehicleQuery) (*coordinator.Coordinator, error) {
		f := &countingFetcher{}
		h.mu.Lock()
		h.fetchers[q.VIN] = f
		h.mu.Unlock()
		return coordinator.New(q, f, coordinator.Options{Clock: h.clock, Logger: log.NewNopLogger()}), nil
	}
	h.registry = New(factory, h.sink, h.clock, interval)
	return h
}

func (h *harness) fetcher(vin string) *countingFetcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetchers[vin]
}

func mustQuery(t *testing.T, name, vin, key string) core.VehicleQuery {
	t.Helper()
	q, err := core.NewVehicleQuery(name, vin, key)
	require.NoError(t, err)
	return q
}

func TestRegistryTicks(t *testing.T) {
	h := newHarness(time.Hour)
	require.NoError(t, h.registry.Add(mustQuery(t, "A", vinA, "key")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.registry.Run(ctx) }()

	// Immediate first refresh.
	require.Eventually(t, func() bool { return h.sink.count(vinA) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, h.clock.HasWaiters, 2*time.Second, 5*time.Millisecond)
	h.clock.Step(time.Hour)
	require.Eventually(t, func() bool { return h.sink.count(vinA) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), h.fetcher(vinA).calls.Load())

	cancel()
	require.NoError(t, <-done)
	assert.True(t, h.fetcher(vinA).closed.Load())
	assert.Empty(t, h.registry.List())
}

func TestRegistryShutdownKeepsEntities(t *testing.T) {
	h := newHarness(time.Hour)
	require.NoError(t, h.registry.Add(mustQuery(t, "A", vinA, "key")))
	require.NoError(t, h.registry.Add(mustQuery(t, "B", vinB, "")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.registry.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.sink.count(vinA) == 1 && h.sink.count(vinB) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.True(t, h.fetcher(vinA).closed.Load())
	assert.True(t, h.fetcher(vinB).closed.Load())
	assert.Empty(t, h.sink.removedVINs())
	assert.Empty(t, h.registry.List())
}

func TestRegistryAddRemove(t *testing.T) {
	h := newHarness(time.Hour)

	require.NoError(t, h.registry.Add(mustQuery(t, "A", vinA, "key")))
	err := h.registry.Add(mustQuery(t, "Again", vinA, "other"))
	assert.ErrorIs(t, err, core.ErrVINExists)

	assert.ErrorIs(t, h.registry.Add(core.VehicleQuery{Name: "bad", VIN: "SHORT"}), core.ErrInvalidVIN)

	c, ok := h.registry.Get(vinA)
	require.True(t, ok)
	assert.Equal(t, "A", c.Query().Name)

	require.NoError(t, h.registry.Remove(vinA))
	assert.True(t, h.fetcher(vinA).closed.Load())
	assert.Error(t, h.registry.Remove(vinA))
	_, ok = h.registry.Get(vinA)
	assert.False(t, ok)
}

func TestRegistryAddAfterRunStartsLoop(t *testing.T) {
	h := newHarness(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.registry.Run(ctx) //nolint:errcheck

	require.Eventually(t, func() bool {
		h.registry.mu.Lock()
		defer h.registry.mu.Unlock()
		return h.registry.ctx != nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.registry.Add(mustQuery(t, "B", vinB, "")))
	require.Eventually(t, func() bool { return h.sink.count(vinB) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRegistrySync(t *testing.T) {
	h := newHarness(time.Hour)
	a := mustQuery(t, "A", vinA, "key")
	b := mustQuery(t, "B", vinB, "key")

	require.NoError(t, h.registry.Sync([]core.VehicleQuery{a}))
	assert.Equal(t, []core.VehicleQuery{a}, h.registry.List())
	first := h.fetcher(vinA)

	// Unchanged vehicles keep their coordinator.
	require.NoError(t, h.registry.Sync([]core.VehicleQuery{a, b}))
	assert.Equal(t, []core.VehicleQuery{a, b}, h.registry.List())
	assert.Same(t, first, h.fetcher(vinA))

	// A changed key re-creates the coordinator.
	a2 := mustQuery(t, "A", vinA, "new-key")
	require.NoError(t, h.registry.Sync([]core.VehicleQuery{a2}))
	assert.Equal(t, []core.VehicleQuery{a2}, h.registry.List())
	assert.True(t, first.closed.Load())
	assert.NotSame(t, first, h.fetcher(vinA))
	assert.ElementsMatch(t, []string{vinA, vinB}, h.sink.removedVINs())
}
