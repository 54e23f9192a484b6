package cec

import (
	"errors"
	"testing"
)

func TestParsePowerState(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   PowerState
		wantOK bool
	}{
		{"on", "power status: on", PowerOn, true},
		{"standby", "power status: standby", PowerOff, true},
		{"transition", "power status: in transition from standby to on", PowerUnknown, true},
		{"unknown word", "power status: weird", PowerUnknown, true},
		{"extra whitespace", "power status:   on  ", PowerOn, true},
		{"no space after colon", "power status:standby", PowerOff, true},
		{"empty status", "power status:", PowerUnknown, true},
		{"junk", "junk", "", false},
		{"empty line", "", "", false},
		{"log line", "TRAFFIC: [  123]\t>> 0f:36", "", false},
		{"prefix not at start", "DEBUG: power status: on", "", false},
		{"case sensitive", "Power Status: on", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePowerState(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParsePowerState(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParsePowerState(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestSelectSource(t *testing.T) {
	tests := []struct {
		n       int
		want    Command
		wantErr bool
	}{
		{1, "tx 4F:82:10:00\n", false},
		{4, "tx 4F:82:40:00\n", false},
		{10, "tx 4F:82:A0:00\n", false},
		{15, "tx 4F:82:F0:00\n", false},
		{0, "", true},
		{16, "", true},
		{-1, "", true},
	}

	for _, tt := range tests {
		got, err := SelectSource(tt.n)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSource) {
				t.Errorf("SelectSource(%d) error = %v, want ErrInvalidSource", tt.n, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SelectSource(%d) error = %v", tt.n, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SelectSource(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPowerCommand(t *testing.T) {
	if got := PowerCommand(true); got != "on 0.0.0.0\n" {
		t.Errorf("PowerCommand(true) = %q", got)
	}
	if got := PowerCommand(false); got != "standby 0.0.0.0\n" {
		t.Errorf("PowerCommand(false) = %q", got)
	}
}

func TestCommandsAreNewlineTerminated(t *testing.T) {
	for _, cmd := range []Command{
		CommandPowerOn, CommandStandby, CommandVolumeUp,
		CommandVolumeDown, CommandMute, CommandPowerQuery,
	} {
		s := string(cmd)
		if len(s) == 0 || s[len(s)-1] != '\n' {
			t.Errorf("command %q is not newline terminated", s)
		}
	}
}

func TestCommandString(t *testing.T) {
	if got := CommandPowerQuery.String(); got != "pow 0.0.0.0" {
		t.Errorf("String() = %q, want %q", got, "pow 0.0.0.0")
	}
}
