package cec

import (
	"fmt"
	"strings"
)

// PowerState is the TV power state as reported to Home Assistant.
type PowerState string

const (
	PowerOn      PowerState = "ON"
	PowerOff     PowerState = "OFF"
	PowerUnknown PowerState = "UNKNOWN"
)

// powerStatusPrefix starts every power status report from cec-client.
const powerStatusPrefix = "power status:"

// ParsePowerState extracts the power state from a cec-client output line.
//
// Lines that are not power status reports return false. A report with a
// status other than "on" or "standby" (e.g. "in transition from standby to
// on") maps to PowerUnknown.
func ParsePowerState(line string) (PowerState, bool) {
	rest, ok := strings.CutPrefix(line, powerStatusPrefix)
	if !ok {
		return "", false
	}

	switch strings.TrimSpace(rest) {
	case "on":
		return PowerOn, true
	case "standby":
		return PowerOff, true
	default:
		return PowerUnknown, true
	}
}

// Command is a newline-terminated cec-client command line.
type Command string

// Fixed commands. Logical address 0.0.0.0 is the TV.
const (
	CommandPowerOn    Command = "on 0.0.0.0\n"
	CommandStandby    Command = "standby 0.0.0.0\n"
	CommandVolumeUp   Command = "volup\n"
	CommandVolumeDown Command = "voldown\n"
	CommandMute       Command = "mute\n"
	CommandPowerQuery Command = "pow 0.0.0.0\n"
)

// Source number limits for SelectSource.
const (
	MinSource = 1
	MaxSource = 15
)

// SelectSource encodes an Active Source broadcast for HDMI input n, which
// switches the TV to that input.
//
// Opcode 0x82 carries the physical address n.0.0.0, sent from the
// playback device to broadcast (4F).
func SelectSource(n int) (Command, error) {
	if n < MinSource || n > MaxSource {
		return "", fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidSource, n, MinSource, MaxSource)
	}
	return Command(fmt.Sprintf("tx 4F:82:%X0:00\n", n)), nil
}

// PowerCommand returns the command that switches the TV on or to standby.
func PowerCommand(on bool) Command {
	if on {
		return CommandPowerOn
	}
	return CommandStandby
}

// String returns the command without its line terminator, for logging.
func (c Command) String() string {
	return strings.TrimSuffix(string(c), "\n")
}
