package exposure

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/autopeer-io/stkwatch/internal/stkagent/coordinator"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/mqtt"
	"github.com/autopeer-io/stkwatch/pkg/mqtt/topic"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	deviceManufacturer = "STK Czechr"
	deviceModel        = "Vehicle Information"

	publishQoS = 1
)

// discoveryConfig is the Home Assistant MQTT discovery payload of one sensor.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	ObjectID          string          `json:"object_id"`
	StateTopic        string          `json:"state_topic"`
	AttributesTopic   string          `json:"json_attributes_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	Icon              string          `json:"icon,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	Options           []string        `json:"options,omitempty"`
	EnabledByDefault  bool            `json:"enabled_by_default"`
	Device            discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type vehicleEntry struct {
	query     core.VehicleQuery
	result    *coordinator.Result
	announced bool
	signature string
}

// MQTTPublisher exposes vehicles as Home Assistant sensors over MQTT.
// Results that arrive while disconnected are kept and sent on connect.
type MQTTPublisher struct {
	client mqtt.Client
	topics *topic.TopicBuilder
	logger log.Logger

	mu       sync.Mutex
	vehicles map[string]*vehicleEntry
}

var _ Sink = (*MQTTPublisher)(nil)

func NewMQTTPublisher(client mqtt.Client, topics *topic.TopicBuilder, logger log.Logger) *MQTTPublisher {
	if logger == nil {
		logger = log.WithName("mqtt-publisher")
	}
	return &MQTTPublisher{
		client:   client,
		topics:   topics,
		logger:   logger,
		vehicles: make(map[string]*vehicleEntry),
	}
}

// Run connects, announces every known vehicle and blocks until ctx is done.
// Availability goes "offline" on a clean shutdown; the broker publishes the
// will otherwise. Discovery and state stay retained across restarts.
func (p *MQTTPublisher) Run(ctx context.Context) error {
	if err := p.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}
	if err := p.client.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("await mqtt connection: %w", err)
	}

	if err := p.client.Publish(ctx, p.topics.Availability(), publishQoS, true, []byte(PayloadOnline)); err != nil {
		p.logger.Error(err, "Failed to publish availability")
	}
	if err := p.client.Subscribe(ctx, p.topics.DiscoveryStatus(), publishQoS, p.onDiscoveryStatus); err != nil {
		p.logger.Error(err, "Failed to watch Home Assistant status")
	}
	p.Reannounce(ctx)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Unsubscribe(shutdownCtx, p.topics.DiscoveryStatus()); err != nil {
		p.logger.Error(err, "Failed to stop watching Home Assistant status")
	}
	if err := p.client.Publish(shutdownCtx, p.topics.Availability(), publishQoS, true, []byte(PayloadOffline)); err != nil {
		p.logger.Error(err, "Failed to publish offline availability")
	}
	p.client.Disconnect(shutdownCtx)
	return nil
}

// onDiscoveryStatus re-sends everything after Home Assistant restarts.
func (p *MQTTPublisher) onDiscoveryStatus(ctx context.Context, _ string, payload []byte) {
	if strings.TrimSpace(string(payload)) != PayloadOnline {
		return
	}
	p.logger.Info("Home Assistant came online, re-announcing sensors")
	p.Reannounce(ctx)
}

// Reannounce publishes discovery and state of every known vehicle.
func (p *MQTTPublisher) Reannounce(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vins := make([]string, 0, len(p.vehicles))
	for vin, e := range p.vehicles {
		e.announced = false
		e.signature = ""
		vins = append(vins, vin)
	}
	sort.Strings(vins)
	for _, vin := range vins {
		if err := p.flush(ctx, p.vehicles[vin]); err != nil {
			p.logger.Error(err, "Failed to announce vehicle", "vin", vin)
		}
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, q core.VehicleQuery, res *coordinator.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.vehicles[q.VIN]
	if !ok || e.query != q {
		e = &vehicleEntry{query: q}
		p.vehicles[q.VIN] = e
	}
	e.result = res
	if res.OK() && len(res.Changed) > 0 {
		p.logger.Info("Tracked fields changed", "vin", q.VIN, "fields", res.Changed)
	}
	return p.flush(ctx, e)
}

// flush sends discovery once and states whenever the rendered values
// differ from what was last sent. Callers hold p.mu.
func (p *MQTTPublisher) flush(ctx context.Context, e *vehicleEntry) error {
	if !p.client.IsConnected() {
		return nil
	}

	if !e.announced {
		if err := p.announce(ctx, e.query); err != nil {
			return err
		}
		e.announced = true
	}

	states := States(e.result)
	sig := signature(states)
	if sig == e.signature {
		return nil
	}

	var errs []error
	for _, st := range states {
		if err := p.client.Publish(ctx, p.topics.State(e.query.VIN, string(st.Key)), publishQoS, true, []byte(Format(st.Value))); err != nil {
			errs = append(errs, err)
			continue
		}
		attrs, _ := json.Marshal(attributesOrEmpty(st.Attributes))
		if err := p.client.Publish(ctx, p.topics.Attributes(e.query.VIN, string(st.Key)), publishQoS, true, attrs); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	e.signature = sig
	return nil
}

func (p *MQTTPublisher) announce(ctx context.Context, q core.VehicleQuery) error {
	for _, spec := range core.Catalog() {
		payload, err := json.Marshal(p.discovery(q, spec))
		if err != nil {
			return err
		}
		uid := topic.UniqueID(q.VIN, string(spec.Key))
		if err := p.client.Publish(ctx, p.topics.Discovery(uid), publishQoS, true, payload); err != nil {
			return fmt.Errorf("publish discovery for %s: %w", uid, err)
		}
	}
	return nil
}

func (p *MQTTPublisher) discovery(q core.VehicleQuery, spec core.FieldSpec) discoveryConfig {
	uid := topic.UniqueID(q.VIN, string(spec.Key))
	cfg := discoveryConfig{
		Name:              q.Name + " " + spec.Name,
		UniqueID:          uid,
		ObjectID:          uid,
		StateTopic:        p.topics.State(q.VIN, string(spec.Key)),
		AttributesTopic:   p.topics.Attributes(q.VIN, string(spec.Key)),
		AvailabilityTopic: p.topics.Availability(),
		Icon:              spec.Icon,
		UnitOfMeasurement: spec.Unit,
		DeviceClass:       spec.DeviceClass,
		EnabledByDefault:  spec.EnabledByDefault,
		Device: discoveryDevice{
			Identifiers:  []string{"stk_czechr_" + strings.ToLower(q.VIN)},
			Name:         q.Name,
			Manufacturer: deviceManufacturer,
			Model:        deviceModel,
		},
	}
	if spec.Kind == core.ValueEnum {
		cfg.Options = []string{
			string(core.StatusValid),
			string(core.StatusWarning),
			string(core.StatusExpired),
			string(core.StatusUnknown),
		}
	}
	return cfg
}

// Remove withdraws the vehicle's entities and clears its retained states.
func (p *MQTTPublisher) Remove(ctx context.Context, q core.VehicleQuery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.vehicles, q.VIN)

	if !p.client.IsConnected() {
		return nil
	}

	var errs []error
	for _, spec := range core.Catalog() {
		key := string(spec.Key)
		for _, t := range []string{
			p.topics.Discovery(topic.UniqueID(q.VIN, key)),
			p.topics.State(q.VIN, key),
			p.topics.Attributes(q.VIN, key),
		} {
			if err := p.client.Publish(ctx, t, publishQoS, true, nil); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return joinErrors(errs)
}

func attributesOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func signature(states []SensorState) string {
	var b strings.Builder
	for _, st := range states {
		b.WriteString(string(st.Key))
		b.WriteByte('=')
		b.WriteString(Format(st.Value))
		for _, k := range []string{AttrRegistrationURL, AttrDocumentationURL, AttrMessage} {
			b.WriteByte('|')
			b.WriteString(st.Attributes[k])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
