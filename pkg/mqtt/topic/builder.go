package topic

import (
	"fmt"
	"strings"
)

// Topic segments published under the root. Consumers subscribe to these
// names, so changing them breaks existing dashboards.
const (
	// SuffixStatus is the bridge availability topic: {root}/status
	SuffixStatus = "status"

	// SuffixState carries one sensor value: {root}/{vin}/{field}/state
	SuffixState = "state"

	// SuffixAttributes carries the JSON attribute map of one sensor: {root}/{vin}/{field}/attributes
	SuffixAttributes = "attributes"

	// discoveryComponent is the Home Assistant entity platform.
	discoveryComponent = "sensor"
)

// TopicBuilder encapsulates the logic for constructing MQTT topic strings.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "stkwatch").
	root string

	// discovery is the Home Assistant discovery prefix (e.g., "homeassistant").
	discovery string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root, discoveryPrefix string) *TopicBuilder {
	return &TopicBuilder{
		root:      strings.TrimSuffix(root, "/"),
		discovery: strings.TrimSuffix(discoveryPrefix, "/"),
	}
}

// Availability returns the topic carrying "online"/"offline" for the bridge.
func (b *TopicBuilder) Availability() string {
	return b.root + "/" + SuffixStatus
}

// State returns the state topic of one sensor.
func (b *TopicBuilder) State(vin, field string) string {
	return b.build(vin, field, SuffixState)
}

// Attributes returns the attribute topic of one sensor.
func (b *TopicBuilder) Attributes(vin, field string) string {
	return b.build(vin, field, SuffixAttributes)
}

// Discovery returns the retained discovery config topic of one sensor.
// Result: {discovery}/sensor/{uniqueID}/config
func (b *TopicBuilder) Discovery(uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", b.discovery, discoveryComponent, uniqueID)
}

// DiscoveryStatus is where Home Assistant announces its own restarts.
func (b *TopicBuilder) DiscoveryStatus() string {
	return b.discovery + "/" + SuffixStatus
}

// UniqueID returns the stable entity ID of one sensor.
func UniqueID(vin, field string) string {
	return fmt.Sprintf("stk_%s_%s", normalize(vin), field)
}

// build is a private helper to construct the final topic string.
// Pattern: {root}/{vin}/{field}/{suffix}
func (b *TopicBuilder) build(vin, field, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.root, normalize(vin), field, suffix)
}

func normalize(vin string) string {
	return strings.ToLower(strings.TrimSpace(vin))
}
