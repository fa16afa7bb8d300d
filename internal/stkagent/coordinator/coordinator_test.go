package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/internal/stkagent/fetcher"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

var prague, _ = time.LoadLocation("Europe/Prague")

type stubFetcher struct {
	mu        sync.Mutex
	responses []func() (*core.RawRecord, error)
	calls     int
	closed    bool

	inflight    atomic.Int32
	maxInflight atomic.Int32
	delay       time.Duration
}

func (f *stubFetcher) Source() core.Source { return core.SourceAPI }

func (f *stubFetcher) Fetch(ctx context.Context, q core.VehicleQuery) (*core.RawRecord, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i]()
}

func (f *stubFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func record(validUntil string) func() (*core.RawRecord, error) {
	return func() (*core.RawRecord, error) {
		return &core.RawRecord{
			Source: core.SourceAPI,
			Status: 1,
			Data: map[string]any{
				"PravidelnaTechnickaProhlidkaDo": validUntil,
				"VIN":                            "TEST12345678901XX",
				"TovarniZnacka":                  "ŠKODA",
			},
		}, nil
	}
}

func failure(kind core.ErrorKind) func() (*core.RawRecord, error) {
	return func() (*core.RawRecord, error) {
		return nil, core.NewError(kind, "stub")
	}
}

func newTestCoordinator(t *testing.T, f fetcher.Fetcher, clk *testingclock.FakeClock, minInterval time.Duration) *Coordinator {
	t.Helper()
	q, err := core.NewVehicleQuery("Test", "TEST12345678901XX", "key")
	require.NoError(t, err)
	return New(q, f, Options{
		MinInterval: minInterval,
		Location:    prague,
		Clock:       clk,
		Logger:      log.NewNopLogger(),
	})
}

func TestRefreshEndToEnd(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, prague))
	c := newTestCoordinator(t, &stubFetcher{responses: []func() (*core.RawRecord, error){record("01.01.2020")}}, clk, time.Minute)

	res := c.Refresh(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, StateUpdated, res.Outcome)
	assert.False(t, res.Stale)

	snap := res.Snapshot
	require.NotNil(t, snap)
	require.NotNil(t, snap.ValidUntil)
	assert.Equal(t, "2020-01-01", *snap.ValidUntil)
	require.NotNil(t, snap.DaysRemaining)
	assert.Equal(t, 0, *snap.DaysRemaining)
	assert.Equal(t, core.StatusExpired, snap.Status)
	assert.Equal(t, clk.Now(), snap.FetchedAt)

	assert.Same(t, snap, c.Snapshot())
	assert.Same(t, res, c.Last())
	assert.Equal(t, clk.Now(), c.LastAttempt())
	assert.Equal(t, StateIdle, c.State())
	assert.Contains(t, res.Changed, core.FieldValidUntil)
}

func TestRefreshFailureServesIdenticalCache(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	f := &stubFetcher{responses: []func() (*core.RawRecord, error){
		record("15.03.2026"),
		failure(core.KindTimeout),
		func() (*core.RawRecord, error) { return &core.RawRecord{Source: core.SourceAPI, Status: 0}, nil },
	}}
	c := newTestCoordinator(t, f, clk, time.Minute)

	first := c.Refresh(context.Background())
	require.True(t, first.OK())

	clk.Step(time.Minute)
	res := c.Refresh(context.Background())
	assert.Equal(t, StateFailedWithCache, res.Outcome)
	assert.Equal(t, core.KindTimeout, core.KindOf(res.Err))
	assert.True(t, res.Stale)
	assert.Same(t, first.Snapshot, res.Snapshot)
	assert.Same(t, first.Snapshot, c.Snapshot())
	assert.Equal(t, clk.Now(), c.LastAttempt())

	clk.Step(time.Minute)
	res = c.Refresh(context.Background())
	assert.Equal(t, StateFailedWithCache, res.Outcome)
	assert.Equal(t, core.KindInvalidResponseShape, core.KindOf(res.Err))
	assert.Same(t, first.Snapshot, res.Snapshot)
	assert.Equal(t, StateIdle, c.State())
}

func TestRefreshMissingCredentialWithoutCache(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	q, err := core.NewVehicleQuery("No key", "TEST12345678901XX", "")
	require.NoError(t, err)

	c := New(q, fetcher.NewAPIFetcher(options.NewUpstreamOptions()), Options{
		MinInterval: 24 * time.Hour,
		Clock:       clk,
		Logger:      log.NewNopLogger(),
	})
	defer c.Close()

	res := c.Refresh(context.Background())
	assert.Equal(t, StateFailedWithoutCache, res.Outcome)
	assert.Nil(t, res.Snapshot)

	e, ok := core.AsError(res.Err)
	require.True(t, ok)
	assert.Equal(t, core.KindMissingCredential, e.Kind)
	assert.NotEmpty(t, e.RegistrationURL)
	assert.NotEmpty(t, e.DocumentationURL)
	assert.Equal(t, clk.Now(), c.LastAttempt())

	// The gate now denies, but the missing key stays discoverable.
	clk.Step(time.Hour)
	res = c.Refresh(context.Background())
	assert.Equal(t, StateFailedWithoutCache, res.Outcome)
	assert.Equal(t, core.KindRateLimitedLocal, core.KindOf(res.Err))
	inner, ok := core.FindKind(res.Err, core.KindMissingCredential)
	require.True(t, ok)
	assert.NotEmpty(t, inner.RegistrationURL)
}

func TestRefreshRateGate(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	clk := testingclock.NewFakeClock(start)
	f := &stubFetcher{responses: []func() (*core.RawRecord, error){record("15.03.2026")}}
	c := newTestCoordinator(t, f, clk, 60*time.Second)

	first := c.Refresh(context.Background())
	require.True(t, first.OK())

	clk.SetTime(start.Add(59 * time.Second))
	res := c.Refresh(context.Background())
	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, StateFailedWithCache, res.Outcome)
	assert.Equal(t, core.KindRateLimitedLocal, core.KindOf(res.Err))
	assert.Same(t, first.Snapshot, res.Snapshot)
	assert.Equal(t, start, c.LastAttempt())

	clk.SetTime(start.Add(60 * time.Second))
	res = c.Refresh(context.Background())
	assert.Equal(t, 2, f.Calls())
	assert.True(t, res.OK())
}

func TestRefreshRateGateWithoutCache(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	f := &stubFetcher{responses: []func() (*core.RawRecord, error){failure(core.KindTransport)}}
	c := newTestCoordinator(t, f, clk, time.Hour)

	res := c.Refresh(context.Background())
	assert.Equal(t, StateFailedWithoutCache, res.Outcome)
	assert.Equal(t, core.KindTransport, core.KindOf(res.Err))

	clk.Step(time.Second)
	res = c.Refresh(context.Background())
	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, StateFailedWithoutCache, res.Outcome)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, core.KindRateLimitedLocal, core.KindOf(res.Err))
	assert.ErrorIs(t, res.Err, &core.Error{Kind: core.KindTransport})
}

func TestRefreshAlwaysReplacesCache(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	f := &stubFetcher{responses: []func() (*core.RawRecord, error){record("15.03.2026")}}
	c := newTestCoordinator(t, f, clk, 0)

	first := c.Refresh(context.Background())
	second := c.Refresh(context.Background())
	require.True(t, second.OK())
	assert.Empty(t, second.Changed)
	assert.NotSame(t, first.Snapshot, second.Snapshot)
	assert.Same(t, second.Snapshot, c.Snapshot())

	// A new day moves days_remaining.
	clk.Step(24 * time.Hour)
	third := c.Refresh(context.Background())
	assert.Equal(t, []core.FieldKey{core.FieldDaysRemaining}, third.Changed)
}

type recordingArchiver struct {
	mu   sync.Mutex
	vins []string
	err  error
}

func (a *recordingArchiver) Archive(ctx context.Context, vin string, raw *core.RawRecord, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vins = append(a.vins, vin)
	return a.err
}

func TestRefreshArchivesRawPayload(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	arch := &recordingArchiver{err: errors.New("bucket gone")}
	q, err := core.NewVehicleQuery("", "TEST12345678901XX", "key")
	require.NoError(t, err)

	c := New(q, &stubFetcher{responses: []func() (*core.RawRecord, error){record("15.03.2026")}}, Options{
		Clock:    clk,
		Archiver: arch,
		Logger:   log.NewNopLogger(),
	})

	res := c.Refresh(context.Background())
	assert.True(t, res.OK(), "archive failures must not fail a refresh")
	assert.Equal(t, []string{"TEST12345678901XX"}, arch.vins)
}

func TestRefreshIsSerialized(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	f := &stubFetcher{
		responses: []func() (*core.RawRecord, error){record("15.03.2026")},
		delay:     5 * time.Millisecond,
	}
	c := newTestCoordinator(t, f, clk, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, f.Calls())
	assert.Equal(t, int32(1), f.maxInflight.Load())
	assert.Equal(t, StateIdle, c.State())
}

func TestClose(t *testing.T) {
	f := &stubFetcher{responses: []func() (*core.RawRecord, error){record("15.03.2026")}}
	c := newTestCoordinator(t, f, testingclock.NewFakeClock(time.Now()), 0)
	require.NoError(t, c.Close())
	assert.True(t, f.closed)
}
