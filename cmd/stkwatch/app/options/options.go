package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/stkwatch/internal/stkagent"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/app"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

type WatchOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	S3Options       *options.S3Options       `json:"s3" mapstructure:"s3"`
	UpstreamOptions *options.UpstreamOptions `json:"upstream" mapstructure:"upstream"`
	RefreshOptions  *options.RefreshOptions  `json:"refresh" mapstructure:"refresh"`
	Log             *log.Options             `json:"log" mapstructure:"log"`

	// Vehicles is squashed so the config file lists them under a top-level "vehicles" key.
	Vehicles options.VehicleOptions `json:",inline" mapstructure:",squash"`
}

var _ app.NamedFlagSetOptions = (*WatchOptions)(nil)

func NewWatchOptions() *WatchOptions {
	return &WatchOptions{
		HttpOptions:     options.NewHttpOptions(),
		MqttOptions:     options.NewMqttOptions(),
		S3Options:       options.NewS3Options(),
		UpstreamOptions: options.NewUpstreamOptions(),
		RefreshOptions:  options.NewRefreshOptions(),
		Log:             log.NewOptions(),
	}
}

func (o *WatchOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.Vehicles.AddFlags(fss.FlagSet("vehicles"))
	o.UpstreamOptions.AddFlags(fss.FlagSet("upstream"))
	o.RefreshOptions.AddFlags(fss.FlagSet("refresh"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *WatchOptions) Complete() error {
	return o.Vehicles.Complete()
}

func (o *WatchOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.Vehicles.Validate()...)
	errs = append(errs, o.UpstreamOptions.Validate()...)
	errs = append(errs, o.RefreshOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *WatchOptions) Config() (*stkagent.Config, error) {
	return &stkagent.Config{
		HttpOptions:     o.HttpOptions,
		MqttOptions:     o.MqttOptions,
		S3Options:       o.S3Options,
		UpstreamOptions: o.UpstreamOptions,
		RefreshOptions:  o.RefreshOptions,
		Vehicles:        o.Vehicles.All(),
	}, nil
}

// CheckOptions drive the one-shot check command.
type CheckOptions struct {
	UpstreamOptions *options.UpstreamOptions
	RefreshOptions  *options.RefreshOptions
	Log             *log.Options

	Name   string
	VIN    string
	APIKey string
}

func NewCheckOptions() *CheckOptions {
	logOpts := log.NewOptions()
	logOpts.Level = "warn"
	return &CheckOptions{
		UpstreamOptions: options.NewUpstreamOptions(),
		RefreshOptions:  options.NewRefreshOptions(),
		Log:             logOpts,
	}
}

func (o *CheckOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("vehicle")
	fs.StringVar(&o.VIN, "vin", o.VIN, "VIN of the vehicle to look up.")
	fs.StringVar(&o.APIKey, "api-key", o.APIKey, "API key for the vehicle register.")
	fs.StringVar(&o.Name, "name", o.Name, "Display name of the vehicle.")
	o.UpstreamOptions.AddFlags(fss.FlagSet("upstream"))
	o.RefreshOptions.AddFlags(fss.FlagSet("refresh"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *CheckOptions) Validate() error {
	errs := []error{}
	if _, err := o.Query(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.UpstreamOptions.Validate()...)
	errs = append(errs, o.RefreshOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *CheckOptions) Query() (core.VehicleQuery, error) {
	return core.NewVehicleQuery(o.Name, o.VIN, o.APIKey)
}

func (o *CheckOptions) Config() *stkagent.Config {
	return &stkagent.Config{
		UpstreamOptions: o.UpstreamOptions,
		RefreshOptions:  o.RefreshOptions,
	}
}
