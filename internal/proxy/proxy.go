package proxy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/hdmi-cec-proxy/internal/cec"
	"github.com/nerrad567/hdmi-cec-proxy/internal/hass"
)

// Entity names.
const (
	EntityTV         = "tv"
	EntityVolumeUp   = "volume_up"
	EntityVolumeDown = "volume_down"
	EntityMute       = "mute"
	sourcePrefix     = "source_"
)

// payloadOn is the switch command that powers the TV on. Any other payload
// puts it in standby.
const payloadOn = "ON"

// Controller is the CEC control surface the entities drive.
// *cec.Controller satisfies it.
type Controller interface {
	cec.PowerQuerier
	SetPower(on bool) error
	VolumeUp() error
	VolumeDown() error
	Mute() error
	SelectSource(n int) error
	Listen(onPower func(cec.PowerState)) error
}

// Registrar accepts entities. *hass.Broker satisfies it.
type Registrar interface {
	AddEntity(e *hass.Entity) error
}

// Logger defines the logging interface for the proxy.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the proxy's entity settings.
type Config struct {
	// PollInterval is how often the TV power status is requested.
	PollInterval time.Duration

	// Sources lists the HDMI inputs that get a source_N button.
	Sources []int
}

// Proxy builds the TV's entities.
type Proxy struct {
	controller Controller
	device     hass.Device
	cfg        Config
	logger     Logger

	mu      sync.Mutex
	pollers []*cec.Poller
}

// New creates a proxy for the TV behind controller.
func New(controller Controller, device hass.Device, cfg Config) *Proxy {
	return &Proxy{
		controller: controller,
		device:     device,
		cfg:        cfg,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the proxy.
func (p *Proxy) SetLogger(logger Logger) {
	p.logger = logger
}

// Register adds every entity to r. Background work started by stateful
// entities runs until ctx is cancelled or Stop is called.
func (p *Proxy) Register(ctx context.Context, r Registrar) error {
	for _, e := range p.Entities(ctx) {
		if err := r.AddEntity(e); err != nil {
			return fmt.Errorf("registering %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Entities builds the entity set. Nothing starts until a stateful entity
// is connected to its StateManager, and the controller is not touched until
// a command arrives, so a proxy built for describing entities may have a nil
// controller.
func (p *Proxy) Entities(ctx context.Context) []*hass.Entity {
	entities := []*hass.Entity{
		p.device.Entity(EntityTV, hass.EntitySwitch, hass.DeviceClassSwitch).
			WithState(p.tvState(ctx)).
			WithCommands(hass.CommandFunc(p.tvCommand)),
		p.button(EntityVolumeUp, func() error { return p.controller.VolumeUp() }),
		p.button(EntityVolumeDown, func() error { return p.controller.VolumeDown() }),
		p.button(EntityMute, func() error { return p.controller.Mute() }),
	}

	for _, n := range p.cfg.Sources {
		source := n
		entities = append(entities, p.button(fmt.Sprintf("%s%d", sourcePrefix, source), func() error {
			return p.controller.SelectSource(source)
		}))
	}

	return entities
}

// tvState forwards power reports to the state topic and starts polling.
func (p *Proxy) tvState(ctx context.Context) hass.StateSetup {
	return func(sm hass.StateManager) {
		err := p.controller.Listen(func(state cec.PowerState) {
			sm.UpdateState(string(state))
		})
		if err != nil {
			p.logger.Error("tv state unavailable", "error", err)
			return
		}

		poller := cec.NewPoller(p.controller, p.cfg.PollInterval)
		poller.SetLogger(p.logger)

		p.mu.Lock()
		p.pollers = append(p.pollers, poller)
		p.mu.Unlock()

		poller.Start(ctx)
	}
}

func (p *Proxy) tvCommand(payload string) {
	on := strings.TrimSpace(payload) == payloadOn
	if err := p.controller.SetPower(on); err != nil {
		p.logger.Error("tv power command failed", "payload", payload, "error", err)
		return
	}
	p.logger.Info("tv power command sent", "on", on)
}

// button builds a stateless button that runs action on every press.
func (p *Proxy) button(name string, action func() error) *hass.Entity {
	return p.device.Entity(name, hass.EntityButton, hass.DeviceClassNone).
		WithCommands(hass.CommandFunc(func(string) {
			if err := action(); err != nil {
				p.logger.Error("button command failed", "entity", name, "error", err)
			}
		}))
}

// Stop stops background polling. Safe to call more than once.
func (p *Proxy) Stop() {
	p.mu.Lock()
	pollers := p.pollers
	p.pollers = nil
	p.mu.Unlock()

	for _, poller := range pollers {
		poller.Stop()
	}
}
