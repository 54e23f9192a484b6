package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/nerrad567/hdmi-cec-proxy/internal/infrastructure/mqtt"
)

// QoS levels used by the broker.
const (
	// discoveryQoS delivers discovery exactly once. Discovery is not
	// retained; it is re-sent whenever Home Assistant comes online.
	discoveryQoS byte = 2

	// commandQoS is enough for idempotent commands.
	commandQoS byte = 0

	// statusQoS is used for the hub status (birth) topic.
	statusQoS byte = 1

	// defaultStateQoS is used when BrokerConfig.StateQoS is zero.
	defaultStateQoS byte = 1
)

// payloadOnline is the hub birth payload that triggers discovery.
const payloadOnline = "online"

// Transport is the MQTT connection the broker drives.
// *mqtt.Client satisfies it.
type Transport interface {
	Publisher

	// SubscribeEvents subscribes to topic and routes its messages to Events.
	SubscribeEvents(topic string, qos byte) error

	// Events returns the ordered stream of incoming events. It is closed
	// when the connection is shut down.
	Events() <-chan mqtt.Event
}

// Logger defines the logging interface for the hass package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is the broker's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateListening
	StateStopped
)

// String returns a readable name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BrokerConfig holds the broker's settings.
type BrokerConfig struct {
	// StatusTopic is where Home Assistant publishes its birth message.
	StatusTopic string

	// Origin is embedded in every discovery payload.
	Origin Origin

	// AvailabilityTopic is advertised in discovery payloads when non-empty.
	AvailabilityTopic string

	// StateQoS is used for state updates. Default: 1.
	StateQoS byte
}

// Broker registers entities with Home Assistant and routes commands to them.
//
// It is the only component that talks to the transport. Incoming events are
// processed strictly in order by Listen.
type Broker struct {
	transport Transport
	cfg       BrokerConfig
	logger    Logger

	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
	topicMap map[string][]string
	state    State
}

// NewBroker creates a broker over a connected transport.
func NewBroker(transport Transport, cfg BrokerConfig) *Broker {
	if cfg.StateQoS == 0 {
		cfg.StateQoS = defaultStateQoS
	}
	return &Broker{
		transport: transport,
		cfg:       cfg,
		logger:    noopLogger{},
		entities:  make(map[string]*Entity),
		topicMap:  make(map[string][]string),
		state:     StateConnected,
	}
}

// SetLogger sets the logger. Call before AddEntity so state managers
// inherit it.
func (b *Broker) SetLogger(logger Logger) {
	b.logger = logger
}

// AddEntity registers an entity:
//  1. the entity is stored by name, replacing any entity of the same name,
//     and routed by its command topic
//  2. the command topic is subscribed; on failure the registry is restored
//  3. a stateful entity receives its StateManager
//  4. the discovery payload is published (failures are logged)
//
// Nothing outside the registry is touched until the subscription succeeds,
// so a failed registration can be retried safely.
//
// Returns ErrInvalidEntity or ErrCapabilityAssigned for a malformed entity,
// and ErrSubscribeFailed if the command topic cannot be subscribed.
func (b *Broker) AddEntity(e *Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", ErrInvalidEntity)
	}
	if err := e.Err(); err != nil {
		return err
	}

	name := e.Name()

	b.mu.Lock()
	previous, replacing := b.entities[name]
	b.installLocked(e, previous, replacing)
	b.mu.Unlock()

	if commandTopic, ok := e.CommandTopic(); ok {
		if err := b.transport.SubscribeEvents(commandTopic, commandQoS); err != nil {
			b.mu.Lock()
			b.uninstallLocked(e, previous, replacing)
			b.mu.Unlock()
			return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, commandTopic, err)
		}
	}

	if replacing {
		b.logger.Warn("replaced entity with duplicate name", "entity", name)
	}

	if topic, ok := e.StateTopic(); ok {
		e.ConnectState(newStateManager(b.transport, topic, name, b.cfg.StateQoS, b.logger))
	}

	b.publishDiscovery(e)

	b.logger.Info("entity registered",
		"entity", name,
		"class", e.Class(),
		"discovery_topic", e.DiscoveryTopic(),
	)

	return nil
}

// installLocked stores e and routes its command topic, replacing previous
// when one was registered under the same name. b.mu must be held.
func (b *Broker) installLocked(e *Entity, previous *Entity, replacing bool) {
	name := e.Name()
	if replacing {
		b.unrouteLocked(previous.Name())
	} else {
		b.order = append(b.order, name)
	}
	b.entities[name] = e
	b.routeLocked(e)
}

// uninstallLocked undoes installLocked. b.mu must be held.
func (b *Broker) uninstallLocked(e *Entity, previous *Entity, replacing bool) {
	name := e.Name()
	b.unrouteLocked(name)
	if replacing {
		b.entities[name] = previous
		b.routeLocked(previous)
		return
	}
	delete(b.entities, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// routeLocked adds e to the bucket of its command topic. b.mu must be held.
func (b *Broker) routeLocked(e *Entity) {
	if topic, ok := e.CommandTopic(); ok {
		b.topicMap[topic] = append(b.topicMap[topic], e.Name())
	}
}

// unrouteLocked removes every route to name. b.mu must be held.
func (b *Broker) unrouteLocked(name string) {
	for topic, names := range b.topicMap {
		kept := names[:0]
		for _, n := range names {
			if n != name {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(b.topicMap, topic)
			continue
		}
		b.topicMap[topic] = kept
	}
}

// SendAllDiscoveryMessages republishes discovery for every registered
// entity, in registration order.
func (b *Broker) SendAllDiscoveryMessages() {
	entities := b.Entities()
	for _, e := range entities {
		b.publishDiscovery(e)
	}
	b.logger.Info("discovery sent", "entities", len(entities))
}

// publishDiscovery publishes e's discovery payload. Failures are logged.
func (b *Broker) publishDiscovery(e *Entity) {
	payload, err := json.Marshal(e.ConfigPayload(b.cfg.Origin, b.cfg.AvailabilityTopic))
	if err != nil {
		b.logger.Error("encoding discovery payload", "entity", e.Name(), "error", err)
		return
	}

	if err := b.transport.Publish(e.DiscoveryTopic(), payload, discoveryQoS, false); err != nil {
		b.logger.Error("discovery publish failed",
			"entity", e.Name(),
			"topic", e.DiscoveryTopic(),
			"error", err,
		)
	}
}

// NotifyEntities delivers a command payload to every entity routed on topic,
// in registration order.
//
// Topics with no route are ignored. Payloads that are not valid UTF-8 are
// logged and dropped. A panicking command handler is recovered and logged.
func (b *Broker) NotifyEntities(topic string, payload []byte) {
	b.mu.RLock()
	names := b.topicMap[topic]
	targets := make([]*Entity, 0, len(names))
	for _, name := range names {
		if e, ok := b.entities[name]; ok {
			targets = append(targets, e)
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	if !utf8.Valid(payload) {
		b.logger.Warn("dropping command payload that is not valid UTF-8",
			"topic", topic,
			"bytes", len(payload),
		)
		return
	}

	text := string(payload)
	for _, e := range targets {
		b.dispatch(e, topic, text)
	}
}

func (b *Broker) dispatch(e *Entity, topic, payload string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("command handler panic recovered",
				"entity", e.Name(),
				"topic", topic,
				"panic", r,
			)
		}
	}()

	b.logger.Debug("command received", "entity", e.Name(), "payload", payload)
	e.OnCommand(payload)
}

// Listen subscribes to the hub status topic and processes incoming events
// until the transport's event stream ends or ctx is cancelled.
//
// A birth message ("online") on the status topic republishes all discovery;
// every other message is routed with NotifyEntities. Connection changes are
// logged; the transport reconnects on its own.
//
// Returns nil when the stream ends, ctx.Err() on cancellation, or
// ErrSubscribeFailed if the status topic cannot be subscribed. Listen may be
// entered again after it returns.
func (b *Broker) Listen(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateListening {
		b.mu.Unlock()
		return ErrAlreadyListening
	}
	b.state = StateListening
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.state = StateStopped
		b.mu.Unlock()
	}()

	if err := b.transport.SubscribeEvents(b.cfg.StatusTopic, statusQoS); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, b.cfg.StatusTopic, err)
	}

	b.logger.Info("broker listening", "status_topic", b.cfg.StatusTopic, "entities", b.EntityCount())

	events := b.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				b.logger.Info("event stream closed")
				return nil
			}
			b.handleEvent(ev)
		}
	}
}

func (b *Broker) handleEvent(ev mqtt.Event) {
	switch ev.Kind {
	case mqtt.EventMessage:
		if ev.Topic == b.cfg.StatusTopic {
			b.handleStatus(ev.Payload)
			return
		}
		b.NotifyEntities(ev.Topic, ev.Payload)

	case mqtt.EventConnected:
		b.logger.Info("mqtt connected")

	case mqtt.EventConnectionLost:
		b.logger.Warn("mqtt connection lost", "error", ev.Err)

	default:
		b.logger.Debug("ignoring event", "kind", ev.Kind)
	}
}

func (b *Broker) handleStatus(payload []byte) {
	status := string(payload)
	if status != payloadOnline {
		b.logger.Info("home assistant status", "status", status)
		return
	}
	b.logger.Info("home assistant online, republishing discovery")
	b.SendAllDiscoveryMessages()
}

// Entities returns the registered entities in registration order.
func (b *Broker) Entities() []*Entity {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Entity, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.entities[name])
	}
	return out
}

// Entity returns the registered entity with the given name.
func (b *Broker) Entity(name string) (*Entity, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entities[name]
	return e, ok
}

// EntityCount returns the number of registered entities.
func (b *Broker) EntityCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entities)
}

// State returns the broker's lifecycle state.
func (b *Broker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}
