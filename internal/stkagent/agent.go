package stkagent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/stkwatch/internal/stkagent/archive"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/internal/stkagent/exposure"
	"github.com/autopeer-io/stkwatch/internal/stkagent/fetcher"
	"github.com/autopeer-io/stkwatch/internal/stkagent/registry"
	"github.com/autopeer-io/stkwatch/internal/stkagent/server"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

// Agent runs the vehicle loops, the HTTP server and the optional MQTT
// publisher until its context ends.
type Agent struct {
	// mu serializes the initial registration against config reloads.
	mu      sync.Mutex
	queries []core.VehicleQuery

	board     *exposure.Board
	publisher *exposure.MQTTPublisher
	archive   *archive.Archive
	registry  *registry.Registry
	server    *server.Server
	prober    *fetcher.APIFetcher

	ready atomic.Bool
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting stkwatch", "mqtt", a.publisher != nil, "archive", a.archive != nil)
	defer a.prober.Close()

	if a.archive != nil {
		if err := a.archive.CheckBucket(ctx); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}

	a.mu.Lock()
	err := a.registry.Sync(a.queries)
	vehicles := len(a.queries)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	log.Info("Vehicles registered", "vehicles", vehicles)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.registry.Run(ctx) })
	if a.publisher != nil {
		g.Go(func() error { return a.publisher.Run(ctx) })
	}
	a.ready.Store(true)

	err = g.Wait()
	a.ready.Store(false)
	log.Info("stkwatch stopped")
	return err
}

// Sync applies a reloaded vehicle list to the running agent.
func (a *Agent) Sync(vehicles []options.Vehicle) error {
	queries, err := Queries(vehicles)
	if err != nil {
		return err
	}
	log.Info("Applying vehicle configuration", "vehicles", len(queries))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = queries
	return a.registry.Sync(queries)
}

// Board exposes the in-memory results, mainly for tests.
func (a *Agent) Board() *exposure.Board {
	return a.board
}
