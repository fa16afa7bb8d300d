package stkagent

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/stkwatch/internal/stkagent/archive"
	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/internal/stkagent/exposure"
	"github.com/autopeer-io/stkwatch/internal/stkagent/fetcher"
	"github.com/autopeer-io/stkwatch/internal/stkagent/registry"
	"github.com/autopeer-io/stkwatch/internal/stkagent/server"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/stkwatch/pkg/mqtt/topic"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

type Config struct {
	HttpOptions     *options.HttpOptions
	MqttOptions     *options.MqttOptions
	S3Options       *options.S3Options
	UpstreamOptions *options.UpstreamOptions
	RefreshOptions  *options.RefreshOptions
	Vehicles        []options.Vehicle

	// Clock drives rate gates and tick loops; the real clock when nil.
	Clock clock.WithTicker
}

func (cfg *Config) NewAgent() (*Agent, error) {
	queries, err := Queries(cfg.Vehicles)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		queries: queries,
		board:   exposure.NewBoard(),
		prober:  fetcher.NewAPIFetcher(cfg.UpstreamOptions),
	}
	sinks := exposure.Fanout{a.board}

	if cfg.MqttOptions.Enabled() {
		topics := mqtttopic.NewTopicBuilder(cfg.MqttOptions.TopicRoot, cfg.MqttOptions.DiscoveryPrefix)
		client, err := mqtt.NewClient(cfg.MqttOptions.ToClientConfig(topics.Availability()))
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		a.publisher = exposure.NewMQTTPublisher(client, topics, log.WithName("mqtt-publisher"))
		sinks = append(sinks, a.publisher)
	}

	if cfg.S3Options.Enabled() {
		a.archive, err = archive.New(cfg.S3Options)
		if err != nil {
			return nil, err
		}
	}

	a.registry = registry.New(cfg.coordinatorFactory(a.archive), sinks, cfg.Clock, cfg.RefreshOptions.Interval)

	srvCfg := &server.Config{
		HttpOptions: cfg.HttpOptions,
		Board:       a.board,
		Prober:      a.prober,
		Ready:       a.ready.Load,
	}
	a.server = srvCfg.New()
	return a, nil
}

// NewCoordinator builds a standalone coordinator for q, as used by the
// one-shot check command.
func (cfg *Config) NewCoordinator(q core.VehicleQuery) (*coordinator.Coordinator, error) {
	return cfg.coordinatorFactory(nil)(q)
}

func (cfg *Config) coordinatorFactory(arch *archive.Archive) registry.Factory {
	return func(q core.VehicleQuery) (*coordinator.Coordinator, error) {
		var clk clock.WithTicker = clock.RealClock{}
		if cfg.Clock != nil {
			clk = cfg.Clock
		}
		f, err := fetcher.New(cfg.UpstreamOptions, clk)
		if err != nil {
			return nil, err
		}

		opts := coordinator.Options{
			MinInterval: cfg.RefreshOptions.MinInterval,
			Location:    cfg.RefreshOptions.TimeLocation(),
			Clock:       clk,
			Logger:      log.WithName("coordinator"),
		}
		if arch != nil {
			opts.Archiver = arch
		}
		return coordinator.New(q, f, opts), nil
	}
}

// Queries converts configured vehicles, rejecting invalid and duplicate VINs.
func Queries(vehicles []options.Vehicle) ([]core.VehicleQuery, error) {
	seen := make(map[string]bool, len(vehicles))
	queries := make([]core.VehicleQuery, 0, len(vehicles))
	var errs []error
	for _, v := range vehicles {
		q, err := core.NewVehicleQuery(v.Name, v.VIN, v.APIKey)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[q.VIN] {
			errs = append(errs, fmt.Errorf("%w: %s", core.ErrVINExists, q.VIN))
			continue
		}
		seen[q.VIN] = true
		queries = append(queries, q)
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}
	return queries, nil
}
