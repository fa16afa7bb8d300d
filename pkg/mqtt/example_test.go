package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/mqtt"
)

// ExampleClient shows the lifecycle used by the sensor publisher: connect,
// announce availability, publish retained state, disconnect.
func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "stkwatch-example",
		ConnectTimeout: 5 * time.Second,
		WillTopic:      "stkwatch/status",
		WillPayload:    []byte("offline"),
		WillQoS:        1,
		WillRetain:     true,
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}
	if err := client.AwaitConnection(ctx); err != nil {
		log.Error(err, "Connection timed out")
		return
	}

	_ = client.Publish(ctx, "stkwatch/status", 1, true, []byte("online"))
	_ = client.Publish(ctx, "stkwatch/tmbjj7ne8j0123456/valid_until/state", 1, true, []byte("2026-03-15"))
	fmt.Println("published")

	client.Disconnect(ctx)
}
