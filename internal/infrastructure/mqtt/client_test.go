package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/steamcity/iot-platform/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at MQTT_TEST_BROKER
// (host:port) or at an unused local port.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     19999,
			ClientID: "steamcity-test",
		},
		QoS:         1,
		TopicPrefix: "steamcity-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     2,
			MaxAttempts:  1,
		},
	}
}

// brokerConfig skips the test unless a broker is available.
func brokerConfig(t *testing.T) config.MQTTConfig {
	t.Helper()

	addr := os.Getenv("MQTT_TEST_BROKER")
	if addr == "" {
		t.Skip("MQTT_TEST_BROKER not set")
	}
	cfg := testConfig()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("MQTT_TEST_BROKER = %q: %v", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("MQTT_TEST_BROKER port: %v", err)
	}
	cfg.Broker.Host, cfg.Broker.Port = host, p
	cfg.Broker.ClientID = "steamcity-test-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	return cfg
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// ─── Topics ────────────────────────────────────────────────────────

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "steamcity"}

	if got := topics.Measurement("s1"); got != "steamcity/measurements/s1" {
		t.Errorf("Measurement() = %q", got)
	}
	if got := topics.AllMeasurements(); got != "steamcity/measurements/+" {
		t.Errorf("AllMeasurements() = %q", got)
	}
	if got := topics.SystemStatus(); got != "steamcity/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
	if got := (Topics{}).Measurement("s1"); got != "steamcity/measurements/s1" {
		t.Errorf("default prefix Measurement() = %q", got)
	}
	if got := (Topics{Prefix: "lab/"}).AllMeasurements(); got != "lab/measurements/+" {
		t.Errorf("trailing slash AllMeasurements() = %q", got)
	}
}

func TestTopics_SensorIDFromTopic(t *testing.T) {
	topics := Topics{Prefix: "steamcity"}

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"steamcity/measurements/sensor-exp-001-1", "sensor-exp-001-1", true},
		{"steamcity/measurements/", "", false},
		{"steamcity/measurements/a/b", "", false},
		{"other/measurements/s1", "", false},
		{"steamcity/system/status", "", false},
	}

	for _, tt := range tests {
		got, ok := topics.SensorIDFromTopic(tt.topic)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SensorIDFromTopic(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
		}
	}
}

// ─── Options ───────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "sensor"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:19999" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:19999", opts.Servers)
	}
	if opts.Username != "sensor" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestStatusPayload(t *testing.T) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(statusPayload("offline", "api", "graceful_shutdown")), &payload); err != nil {
		t.Fatalf("statusPayload() is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["client_id"] != "api" || payload["reason"] != "graceful_shutdown" {
		t.Errorf("payload = %v", payload)
	}
	if _, err := time.Parse(time.RFC3339, payload["timestamp"]); err != nil {
		t.Errorf("timestamp = %q: %v", payload["timestamp"], err)
	}

	if err := json.Unmarshal([]byte(statusPayload("online", "api", "")), &payload); err != nil {
		t.Fatalf("statusPayload(online) is not JSON: %v", err)
	}
}

// ─── Disconnected client ───────────────────────────────────────────

func TestConnect_BrokerRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := Connect(ctx, testConfig())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig())
	handler := func(string, []byte) error { return nil }

	if c.IsConnected() {
		t.Error("IsConnected() = true before connect")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Publish("t", nil, 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("t", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestInputValidation(t *testing.T) {
	c := newClient(testConfig())
	handler := func(string, []byte) error { return nil }

	if err := c.Publish("", nil, 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) error = %v", err)
	}
	if err := c.Publish("t", nil, 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v", err)
	}
	if err := c.Publish("t", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversize) error = %v", err)
	}
	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v", err)
	}
	if err := c.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

// ─── Handler dispatch ──────────────────────────────────────────────

func TestDispatch_RecoversPanics(t *testing.T) {
	c := newClient(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)
	c.dispatch(func(string, []byte) error { return nil }, "t", nil)

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1 (panic)", len(logger.errors))
	}
	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1 (handler error)", len(logger.warns))
	}
}

func TestDispatch_NoLogger(t *testing.T) {
	c := newClient(testConfig())

	// Must not panic without a logger.
	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
}

// ─── Broker round trip ─────────────────────────────────────────────

func TestPublishSubscribeRoundtrip(t *testing.T) {
	cfg := brokerConfig(t)
	ctx := context.Background()

	client, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(client.Topics().AllMeasurements(), 1, func(topic string, payload []byte) error {
		received <- topic + " " + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(client.Topics().AllMeasurements()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := client.Publish(client.Topics().Measurement("s1"), []byte(`{"value":1}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		want := cfg.TopicPrefix + `/measurements/s1 {"value":1}`
		if got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
