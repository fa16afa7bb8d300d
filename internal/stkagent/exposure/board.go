package exposure

import (
	"context"
	"sort"
	"sync"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

func joinErrors(errs []error) error {
	return utilerrors.NewAggregate(errs)
}

// VehicleView is the latest known state of one vehicle.
type VehicleView struct {
	Name      string            `json:"name"`
	VIN       string            `json:"vin"`
	HasAPIKey bool              `json:"has_api_key"`
	Outcome   coordinator.State `json:"outcome,omitempty"`
	Stale     bool              `json:"stale"`
	Error     string            `json:"error,omitempty"`
	ErrorKind core.ErrorKind    `json:"error_kind,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
	Sensors   []SensorState     `json:"sensors"`
}

// Board keeps the latest result of every vehicle in memory.
type Board struct {
	mu       sync.RWMutex
	vehicles map[string]*VehicleView
}

var _ Sink = (*Board)(nil)

func NewBoard() *Board {
	return &Board{vehicles: make(map[string]*VehicleView)}
}

func (b *Board) Publish(_ context.Context, q core.VehicleQuery, res *coordinator.Result) error {
	v := &VehicleView{
		Name:      q.Name,
		VIN:       q.VIN,
		HasAPIKey: q.HasCredential(),
		Sensors:   States(res),
	}
	if res != nil {
		v.Outcome = res.Outcome
		v.Stale = res.Stale
		if res.Err != nil {
			v.Error = res.Err.Error()
			v.ErrorKind = core.KindOf(res.Err)
		}
		if res.Snapshot != nil {
			t := res.Snapshot.FetchedAt
			v.UpdatedAt = &t
		}
	}

	b.mu.Lock()
	b.vehicles[q.VIN] = v
	b.mu.Unlock()
	return nil
}

func (b *Board) Remove(_ context.Context, q core.VehicleQuery) error {
	b.mu.Lock()
	delete(b.vehicles, q.VIN)
	b.mu.Unlock()
	return nil
}

// Get returns the view of vin.
func (b *Board) Get(vin string) (VehicleView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vehicles[vin]
	if !ok {
		return VehicleView{}, false
	}
	return *v, true
}

// List returns all views ordered by VIN.
func (b *Board) List() []VehicleView {
	b.mu.RLock()
	out := make([]VehicleView, 0, len(b.vehicles))
	for _, v := range b.vehicles {
		out = append(out, *v)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].VIN < out[j].VIN })
	return out
}
