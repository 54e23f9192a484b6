package hass

import "errors"

// Domain errors for the Home Assistant package.
var (
	// ErrInvalidEntity is returned when an entity is nil or malformed
	// (empty name, unknown class, or a name that is not a valid topic level).
	ErrInvalidEntity = errors.New("hass: invalid entity")

	// ErrCapabilityAssigned is recorded on an entity when the same
	// capability is attached twice.
	ErrCapabilityAssigned = errors.New("hass: capability already assigned")

	// ErrSubscribeFailed is returned when a command or status topic
	// subscription cannot be made.
	ErrSubscribeFailed = errors.New("hass: subscribe failed")

	// ErrAlreadyListening is returned when Listen is entered while another
	// Listen call is still running.
	ErrAlreadyListening = errors.New("hass: broker already listening")
)
