package exposure

import (
	"context"

	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

// Sink receives refresh results and vehicle removals.
type Sink interface {
	Publish(ctx context.Context, q core.VehicleQuery, res *coordinator.Result) error
	Remove(ctx context.Context, q core.VehicleQuery) error
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

var _ Sink = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, q core.VehicleQuery, res *coordinator.Result) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, q, res); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func (f Fanout) Remove(ctx context.Context, q core.VehicleQuery) error {
	var errs []error
	for _, s := range f {
		if err := s.Remove(ctx, q); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}
