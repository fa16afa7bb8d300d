package app

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/stkwatch/cmd/stkwatch/app/options"
	"github.com/autopeer-io/stkwatch/internal/stkagent"
	"github.com/autopeer-io/stkwatch/pkg/app"
	"github.com/autopeer-io/stkwatch/pkg/log"
)

const (
	commandName = "stkwatch"
	envPrefix   = "STKWATCH"
	commandDesc = `stkwatch tracks the technical inspection (STK) validity of Czech
vehicles. It periodically looks each configured VIN up in the public
vehicle register, keeps the last good record per vehicle, and exposes
the fields over HTTP and as Home Assistant MQTT sensors.`
)

func NewApp() *app.App {
	opts := options.NewWatchOptions()

	var running atomic.Pointer[stkagent.Agent]
	application := app.NewApp(
		commandName,
		"Track STK validity of Czech vehicles",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvPrefix(envPrefix),
		app.WithSubCommands(newCheckCommand(), newFieldsCommand()),
		app.WithConfigWatch(options.NewWatchOptions, resync(&running)),
		app.WithRunFunc(run(opts, &running)),
	)
	return application
}

func run(opts *options.WatchOptions, running *atomic.Pointer[stkagent.Agent]) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		running.Store(agent)
		defer running.Store(nil)

		return agent.Run(ctx)
	}
}

// resync applies the vehicle list of a changed config file to the running agent.
func resync(running *atomic.Pointer[stkagent.Agent]) func(*options.WatchOptions, fsnotify.Event) {
	return func(opts *options.WatchOptions, in fsnotify.Event) {
		agent := running.Load()
		if agent == nil {
			return
		}
		if err := agent.Sync(opts.Vehicles.All()); err != nil {
			log.Error(err, "Failed to apply vehicle changes", "file", in.Name)
		}
	}
}
