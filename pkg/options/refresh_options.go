package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RefreshOptions)(nil)

// RefreshOptions controls how often vehicles are refreshed.
type RefreshOptions struct {
	// Interval is the tick period of each vehicle loop.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// MinInterval is the minimum spacing between two upstream requests for one vehicle.
	// Ticks inside it are served from cache.
	MinInterval time.Duration `json:"min-interval" mapstructure:"min-interval"`

	// Location is the time zone whose calendar date counts as "today".
	Location string `json:"location" mapstructure:"location"`
}

func NewRefreshOptions() *RefreshOptions {
	return &RefreshOptions{
		Interval:    time.Hour,
		MinInterval: 24 * time.Hour,
		Location:    "Europe/Prague",
	}
}

func (o *RefreshOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	if o.Interval <= 0 {
		errors = append(errors, fmt.Errorf("--refresh.interval must be positive"))
	}
	if o.MinInterval < 0 {
		errors = append(errors, fmt.Errorf("--refresh.min-interval must not be negative"))
	}
	if _, err := time.LoadLocation(o.Location); err != nil {
		errors = append(errors, fmt.Errorf("--refresh.location: %w", err))
	}

	return errors
}

func (o *RefreshOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "refresh.interval", o.Interval, "How often each vehicle loop ticks.")
	fs.DurationVar(&o.MinInterval, "refresh.min-interval", o.MinInterval, "Minimum time between two upstream requests for the same vehicle.")
	fs.StringVar(&o.Location, "refresh.location", o.Location, "IANA time zone used to compute days remaining.")
}

// TimeLocation returns the parsed Location, falling back to UTC.
func (o *RefreshOptions) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(o.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
