package app

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by aggregated command options.
type NamedFlagSetOptions interface {
	// Flags returns the flag sets grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from other fields.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}

// RunFunc is the main entry of an application after flags and config are loaded.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// WithOptions sets the options bound to flags and the config file.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the function executed by the root command.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDescription sets the long description of the root command.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithDefaultValidArgs rejects positional arguments on the root command.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithSubCommands attaches additional commands under the root command.
func WithSubCommands(cmds ...*cobra.Command) Option {
	return func(a *App) {
		a.commands = append(a.commands, cmds...)
	}
}

// WithConfigWatch watches the loaded config file. On every change the file
// is decoded into a value from newOptions, completed and validated, and then
// handed to fn. Invalid files never reach fn.
func WithConfigWatch[T NamedFlagSetOptions](newOptions func() T, fn func(opts T, in fsnotify.Event)) Option {
	return func(a *App) {
		a.newOptions = func() NamedFlagSetOptions { return newOptions() }
		a.onConfigChange = func(opts NamedFlagSetOptions, in fsnotify.Event) {
			fn(opts.(T), in)
		}
	}
}

// WithEnvPrefix sets the environment variable prefix, e.g. "STKWATCH".
func WithEnvPrefix(prefix string) Option {
	return func(a *App) {
		a.envPrefix = prefix
	}
}
