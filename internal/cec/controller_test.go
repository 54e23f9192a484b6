package cec

import (
	"errors"
	"sync"
	"testing"
)

// mockDriver records sent lines and lets tests feed output lines.
type mockDriver struct {
	mu       sync.Mutex
	sent     []string
	consumer func(string)
	sendErr  error
}

func (m *mockDriver) Send(text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.sent = append(m.sent, text)
	return len(text), nil
}

func (m *mockDriver) AttachLineConsumer(fn func(string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumer != nil {
		return errors.New("already consumed")
	}
	m.consumer = fn
	return nil
}

func (m *mockDriver) emit(line string) {
	m.mu.Lock()
	fn := m.consumer
	m.mu.Unlock()
	fn(line)
}

func (m *mockDriver) sentLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestController_Commands(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Controller) error
		want string
	}{
		{"power on", func(c *Controller) error { return c.SetPower(true) }, "on 0.0.0.0\n"},
		{"standby", func(c *Controller) error { return c.SetPower(false) }, "standby 0.0.0.0\n"},
		{"volume up", (*Controller).VolumeUp, "volup\n"},
		{"volume down", (*Controller).VolumeDown, "voldown\n"},
		{"mute", (*Controller).Mute, "mute\n"},
		{"query", (*Controller).QueryPowerState, "pow 0.0.0.0\n"},
		{"source 2", func(c *Controller) error { return c.SelectSource(2) }, "tx 4F:82:20:00\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &mockDriver{}
			c := NewController(driver)

			if err := tt.call(c); err != nil {
				t.Fatalf("error = %v", err)
			}

			sent := driver.sentLines()
			if len(sent) != 1 || sent[0] != tt.want {
				t.Errorf("sent %q, want [%q]", sent, tt.want)
			}
		})
	}
}

func TestController_SelectSourceInvalid(t *testing.T) {
	driver := &mockDriver{}
	c := NewController(driver)

	if err := c.SelectSource(0); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("SelectSource(0) error = %v, want ErrInvalidSource", err)
	}
	if len(driver.sentLines()) != 0 {
		t.Error("invalid source should not send anything")
	}
}

func TestController_SendError(t *testing.T) {
	broken := errors.New("broken pipe")
	c := NewController(&mockDriver{sendErr: broken})

	err := c.VolumeUp()
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("error = %v, want ErrSendFailed", err)
	}
	if !errors.Is(err, broken) {
		t.Errorf("error = %v, want wrapped driver error", err)
	}
}

func TestController_Listen(t *testing.T) {
	driver := &mockDriver{}
	c := NewController(driver)

	if c.PowerState() != PowerUnknown {
		t.Errorf("initial PowerState() = %q, want UNKNOWN", c.PowerState())
	}

	var got []PowerState
	if err := c.Listen(func(s PowerState) { got = append(got, s) }); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	driver.emit("waiting for input")
	driver.emit("power status: on")
	driver.emit("TRAFFIC: [ 1] >> 0f:87")
	driver.emit("power status: standby")

	want := []PowerState{PowerOn, PowerOff}
	if len(got) != len(want) {
		t.Fatalf("callbacks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("callback %d = %q, want %q", i, got[i], want[i])
		}
	}
	if c.PowerState() != PowerOff {
		t.Errorf("PowerState() = %q, want OFF", c.PowerState())
	}
}

func TestController_ListenTwice(t *testing.T) {
	c := NewController(&mockDriver{})

	if err := c.Listen(nil); err != nil {
		t.Fatalf("first Listen() error = %v", err)
	}
	if err := c.Listen(nil); err == nil {
		t.Error("second Listen() expected error")
	}
}
