package hass

import (
	"fmt"
	"strings"
)

// Topic suffixes under an entity's topic prefix.
const (
	discoverySuffix = "/config"
	stateSuffix     = "/state"
	commandSuffix   = "/set"
)

// Device is the physical unit that groups entities in the Home Assistant UI.
//
// A Device is immutable once built and is copied into every entity derived
// from it.
type Device struct {
	// UniqueID identifies the device to Home Assistant.
	UniqueID string

	// Name is the display name. Empty means "use UniqueID".
	Name string

	// ObjectID replaces UniqueID in topic paths when set.
	ObjectID string

	// TopicPrefix is the discovery prefix, usually "homeassistant".
	TopicPrefix string
}

// ID returns the identifier used in topic paths: ObjectID when set,
// otherwise UniqueID.
func (d Device) ID() string {
	if d.ObjectID != "" {
		return d.ObjectID
	}
	return d.UniqueID
}

// DisplayName returns Name, falling back to UniqueID.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.UniqueID
}

// Entity derives an entity of this device with no capabilities attached.
//
// The topic prefix is "{TopicPrefix}/{class}/{ID}_{name}". Malformed
// arguments do not panic; they are reported by the entity's Err method.
func (d Device) Entity(name string, class EntityClass, deviceClass DeviceClass) *Entity {
	e := &Entity{
		name:        name,
		topicPrefix: fmt.Sprintf("%s/%s/%s_%s", d.TopicPrefix, class, d.ID(), name),
		class:       class,
		deviceClass: deviceClass,
		device:      d,
	}

	switch {
	case name == "":
		e.fail(fmt.Errorf("%w: empty name", ErrInvalidEntity))
	case strings.ContainsAny(name, "/#+"):
		e.fail(fmt.Errorf("%w: name %q contains a topic separator or wildcard", ErrInvalidEntity, name))
	case !class.Valid():
		e.fail(fmt.Errorf("%w: %s: unknown entity class %q", ErrInvalidEntity, name, class))
	case !deviceClass.Valid():
		e.fail(fmt.Errorf("%w: %s: unknown device class %q", ErrInvalidEntity, name, deviceClass))
	}

	return e
}

// Commandable receives the raw payloads published to an entity's command topic.
type Commandable interface {
	OnCommand(payload string)
}

// CommandFunc adapts an ordinary function to Commandable.
type CommandFunc func(payload string)

// OnCommand calls f(payload).
func (f CommandFunc) OnCommand(payload string) {
	f(payload)
}

// StateSetup is called once, when the entity is registered, with the
// StateManager the entity uses to publish its state from then on.
type StateSetup func(StateManager)

// Entity is one addressable capability exposed to Home Assistant.
//
// Which topics an entity has follows from its capabilities: a state topic
// exists only after WithState, a command topic only after WithCommands.
type Entity struct {
	name        string
	topicPrefix string
	class       EntityClass
	deviceClass DeviceClass
	device      Device

	commands Commandable
	stateful StateSetup

	err error
}

// WithState attaches the state capability.
// A second call leaves the first setup in place and records
// ErrCapabilityAssigned.
func (e *Entity) WithState(setup StateSetup) *Entity {
	switch {
	case setup == nil:
		e.fail(fmt.Errorf("%w: %s: nil state setup", ErrInvalidEntity, e.name))
	case e.stateful != nil:
		e.fail(fmt.Errorf("%w: %s: state", ErrCapabilityAssigned, e.name))
	default:
		e.stateful = setup
	}
	return e
}

// WithCommands attaches the command capability.
// A second call leaves the first handler in place and records
// ErrCapabilityAssigned.
func (e *Entity) WithCommands(commands Commandable) *Entity {
	switch {
	case commands == nil:
		e.fail(fmt.Errorf("%w: %s: nil command handler", ErrInvalidEntity, e.name))
	case e.commands != nil:
		e.fail(fmt.Errorf("%w: %s: commands", ErrCapabilityAssigned, e.name))
	default:
		e.commands = commands
	}
	return e
}

// fail keeps the first construction error.
func (e *Entity) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Err returns the first error recorded while building the entity.
func (e *Entity) Err() error {
	return e.err
}

// Name returns the entity name.
func (e *Entity) Name() string { return e.name }

// Class returns the entity class.
func (e *Entity) Class() EntityClass { return e.class }

// DeviceClass returns the device class.
func (e *Entity) DeviceClass() DeviceClass { return e.deviceClass }

// Device returns the device the entity belongs to.
func (e *Entity) Device() Device { return e.device }

// TopicPrefix returns the base of all the entity's topics.
func (e *Entity) TopicPrefix() string { return e.topicPrefix }

// UniqueID returns "{device unique id}_{name}".
func (e *Entity) UniqueID() string {
	return e.device.UniqueID + "_" + e.name
}

// DiscoveryTopic returns the topic the discovery payload is published to.
func (e *Entity) DiscoveryTopic() string {
	return e.topicPrefix + discoverySuffix
}

// StateTopic returns the state topic, if the entity has the state capability.
func (e *Entity) StateTopic() (string, bool) {
	if e.stateful == nil {
		return "", false
	}
	return e.topicPrefix + stateSuffix, true
}

// CommandTopic returns the command topic, if the entity accepts commands.
func (e *Entity) CommandTopic() (string, bool) {
	if e.commands == nil {
		return "", false
	}
	return e.topicPrefix + commandSuffix, true
}

// OnCommand forwards payload to the command handler, if any.
func (e *Entity) OnCommand(payload string) {
	if e.commands == nil {
		return
	}
	e.commands.OnCommand(payload)
}

// ConnectState hands sm to the state setup, if any.
func (e *Entity) ConnectState(sm StateManager) {
	if e.stateful == nil {
		return
	}
	e.stateful(sm)
}
