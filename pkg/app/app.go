package app

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"

	"github.com/autopeer-io/stkwatch/pkg/log"
)

// App is a cobra command whose flags are backed by NamedFlagSetOptions and
// an optional viper config file.
type App struct {
	name        string
	shortDesc   string
	description string
	envPrefix   string

	options  NamedFlagSetOptions
	runFunc  RunFunc
	args     cobra.PositionalArgs
	commands []*cobra.Command

	newOptions     func() NamedFlagSetOptions
	onConfigChange func(opts NamedFlagSetOptions, in fsnotify.Event)

	viper *viper.Viper
	cmd   *cobra.Command
}

// NewApp builds an application from the given options.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		viper:     viper.New(),
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()
	return a
}

// Command returns the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the application and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	for _, sub := range a.commands {
		cmd.AddCommand(sub)
	}

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	addConfigFlag(fss.FlagSet("global"), a.name)
	globalflag.AddGlobalFlags(fss.FlagSet("global"), cmd.Name())

	fs := cmd.Flags()
	for _, f := range fss.FlagSets {
		fs.AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, fss, cols)

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	hasFile, err := loadConfig(a.viper, a.envPrefix)
	if err != nil {
		return err
	}

	if a.options != nil {
		if err := a.viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := a.applyConfig(a.options); err != nil {
			return err
		}
	}

	if hasFile && a.onConfigChange != nil && a.newOptions != nil {
		a.viper.OnConfigChange(a.reload)
		a.viper.WatchConfig()
	}

	return a.runFunc()
}

// applyConfig decodes viper's merged view into opts, then completes and
// validates them.
func (a *App) applyConfig(opts NamedFlagSetOptions) error {
	if err := a.viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := opts.Complete(); err != nil {
		return err
	}
	return opts.Validate()
}

// reload decodes a changed config file into a fresh options value carrying
// the same command-line flags. The running options are never written; the
// callback only sees a value that validated.
func (a *App) reload(in fsnotify.Event) {
	fresh := a.newOptions()
	if err := copyFlags(a.cmd.Flags(), fresh.Flags()); err != nil {
		log.Error(err, "Ignoring configuration change", "file", in.Name)
		return
	}
	if err := a.applyConfig(fresh); err != nil {
		log.Error(err, "Ignoring invalid configuration change", "file", in.Name)
		return
	}
	log.Info("Configuration file changed", "file", in.Name, "op", in.Op.String())
	a.onConfigChange(fresh, in)
}

// copyFlags replays every flag set on the command line onto the matching
// flag of fss.
func copyFlags(from *pflag.FlagSet, fss cliflag.NamedFlagSets) error {
	var errs []error
	from.Visit(func(f *pflag.Flag) {
		for _, fs := range fss.FlagSets {
			to := fs.Lookup(f.Name)
			if to == nil {
				continue
			}
			if src, ok := f.Value.(pflag.SliceValue); ok {
				if dst, ok := to.Value.(pflag.SliceValue); ok {
					errs = append(errs, dst.Replace(src.GetSlice()))
					to.Changed = true
					continue
				}
			}
			errs = append(errs, fs.Set(f.Name, f.Value.String()))
		}
	})
	return utilerrors.NewAggregate(errs)
}
