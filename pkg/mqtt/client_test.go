package mqtt

import "testing"

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"stkwatch/status", "stkwatch/status", true},
		{"stkwatch/+/valid_until/state", "stkwatch/abc/valid_until/state", true},
		{"stkwatch/+/valid_until/state", "stkwatch/abc/status/state", false},
		{"stkwatch/abc/#", "stkwatch/abc/status/attributes", true},
		{"stkwatch/abc/#", "stkwatch/xyz/status", false},
		{"stkwatch/+", "stkwatch/abc/status", false},
	}

	for _, tt := range tests {
		if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
			t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestTopicFilterShared(t *testing.T) {
	if got := topicFilter("$share/group/stkwatch/+/state"); got != "stkwatch/+/state" {
		t.Errorf("got %q", got)
	}
	if got := topicFilter("stkwatch/status"); got != "stkwatch/status" {
		t.Errorf("got %q", got)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewClient(&ClientConfig{BrokerURL: "localhost"}); err == nil {
		t.Error("expected error for broker without scheme")
	}

	cfg := &ClientConfig{BrokerURL: "tcp://localhost:1883"}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KeepAlive != 60 {
		t.Errorf("default keep alive not applied: %d", cfg.KeepAlive)
	}
	if c.IsConnected() {
		t.Error("client must not report connected before Start")
	}
}
