// Package mqtttest runs an in-process MQTT broker for tests.
//
// It replaces the external Mosquitto instance that client tests would
// otherwise need:
//
//	srv := mqtttest.NewServer(t)
//	client, err := mqtt.Connect(srv.Config("test-client"))
package mqtttest

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/nerrad567/hdmi-cec-proxy/internal/infrastructure/config"
)

// Message is a publish observed by the server.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// Server is an embedded broker listening on a random local port.
type Server struct {
	Host   string
	Port   int
	Broker *mochi.Server

	subID atomic.Int32
}

// NewServer starts a broker that accepts every client. It is closed
// automatically when the test finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	port := freePort(t)
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("mqtttest: adding allow hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("mqtttest: adding listener: %v", err)
	}

	if err := server.Serve(); err != nil {
		t.Fatalf("mqtttest: serving: %v", err)
	}

	t.Cleanup(func() {
		_ = server.Close()
	})

	return &Server{
		Host:   "127.0.0.1",
		Port:   port,
		Broker: server,
	}
}

// Config returns an MQTT configuration pointing at the server.
func (s *Server) Config(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     s.Host,
			Port:     s.Port,
			ClientID: clientID,
		},
		QoS:       1,
		KeepAlive: 5,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// Publish injects a message as if another client had sent it.
func (s *Server) Publish(t testing.TB, topic, payload string, retain bool) {
	t.Helper()
	if err := s.Broker.Publish(topic, []byte(payload), retain, 0); err != nil {
		t.Fatalf("mqtttest: publish %s: %v", topic, err)
	}
}

// Retained returns the payload the broker currently retains for topic.
func (s *Server) Retained(topic string) (string, bool) {
	msgs := s.Broker.Topics.Messages(topic)
	if len(msgs) == 0 {
		return "", false
	}
	return string(msgs[0].Payload), true
}

// Recorder collects messages matching a topic filter.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	notify   chan struct{}
}

// Record subscribes an inline client to filter and records everything it receives.
func (s *Server) Record(t testing.TB, filter string) *Recorder {
	t.Helper()
	r := &Recorder{notify: make(chan struct{}, 1)}
	id := int(s.subID.Add(1))
	err := s.Broker.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		r.mu.Lock()
		r.messages = append(r.messages, Message{
			Topic:    pk.TopicName,
			Payload:  string(pk.Payload),
			Retained: pk.FixedHeader.Retain,
		})
		r.mu.Unlock()
		select {
		case r.notify <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("mqtttest: subscribe %s: %v", filter, err)
	}
	return r
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// OnTopic returns the recorded messages for one topic.
func (r *Recorder) OnTopic(topic string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until at least n messages were recorded on topic, or
// fails the test after timeout.
func (r *Recorder) WaitFor(t testing.TB, topic string, n int, timeout time.Duration) []Message {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if msgs := r.OnTopic(topic); len(msgs) >= n {
			return msgs
		}
		select {
		case <-r.notify:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("mqtttest: timed out waiting for %d message(s) on %s, got %d", n, topic, len(r.OnTopic(topic)))
			return nil
		}
	}
}

func freePort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mqtttest: finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
