package cec

import (
	"fmt"
	"sync"
)

// LineDriver is the line-oriented channel to cec-client.
// *process.Process satisfies it.
type LineDriver interface {
	// Send writes text verbatim to cec-client's stdin.
	Send(text string) (int, error)

	// AttachLineConsumer delivers each stdout line to fn. Only the first
	// call succeeds.
	AttachLineConsumer(fn func(line string)) error
}

// Logger defines the logging interface for the CEC package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller issues CEC commands and tracks the TV's last reported power state.
//
// All methods are safe for concurrent use.
type Controller struct {
	driver LineDriver
	logger Logger

	stateMu sync.RWMutex
	state   PowerState
}

// NewController creates a controller over driver. The power state starts
// as PowerUnknown until cec-client reports one.
func NewController(driver LineDriver) *Controller {
	return &Controller{
		driver: driver,
		logger: noopLogger{},
		state:  PowerUnknown,
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// Listen takes over cec-client's output. Every power status report updates
// PowerState and is passed to onPower; all other lines are ignored.
//
// onPower runs on the driver's reader goroutine and must not block for long.
// Listen fails if the output already has a consumer.
func (c *Controller) Listen(onPower func(PowerState)) error {
	return c.driver.AttachLineConsumer(func(line string) {
		state, ok := ParsePowerState(line)
		if !ok {
			return
		}

		c.stateMu.Lock()
		previous := c.state
		c.state = state
		c.stateMu.Unlock()

		if previous != state {
			c.logger.Info("tv power state changed", "from", previous, "to", state)
		}

		if onPower != nil {
			onPower(state)
		}
	})
}

// PowerState returns the most recently reported power state.
func (c *Controller) PowerState() PowerState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// SetPower switches the TV on, or to standby.
func (c *Controller) SetPower(on bool) error {
	return c.send(PowerCommand(on))
}

// VolumeUp raises the volume by one step.
func (c *Controller) VolumeUp() error {
	return c.send(CommandVolumeUp)
}

// VolumeDown lowers the volume by one step.
func (c *Controller) VolumeDown() error {
	return c.send(CommandVolumeDown)
}

// Mute toggles mute.
func (c *Controller) Mute() error {
	return c.send(CommandMute)
}

// SelectSource switches the TV to HDMI input n.
func (c *Controller) SelectSource(n int) error {
	cmd, err := SelectSource(n)
	if err != nil {
		return err
	}
	return c.send(cmd)
}

// QueryPowerState asks the TV to report its power status. The answer
// arrives asynchronously through Listen.
func (c *Controller) QueryPowerState() error {
	return c.send(CommandPowerQuery)
}

func (c *Controller) send(cmd Command) error {
	if _, err := c.driver.Send(string(cmd)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSendFailed, cmd, err)
	}
	c.logger.Debug("cec command sent", "command", cmd.String())
	return nil
}
