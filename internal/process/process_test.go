package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sync"
	"testing"
	"time"
)

const testWait = 5 * time.Second

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

// lineCollector gathers lines from a consumer callback.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
	ch    chan struct{}
}

func newLineCollector() *lineCollector {
	return &lineCollector{ch: make(chan struct{}, 1)}
}

func (c *lineCollector) consume(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

func (c *lineCollector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.After(testWait)
	for {
		c.mu.Lock()
		if len(c.lines) >= n {
			out := append([]string(nil), c.lines...)
			c.mu.Unlock()
			return out
		}
		got := len(c.lines)
		c.mu.Unlock()

		select {
		case <-c.ch:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d lines, got %d", n, got)
		}
	}
}

func startCat(t *testing.T) *Process {
	t.Helper()
	requireBinary(t, "cat")

	p, err := Start(context.Background(), Config{
		Name:            "cat",
		Binary:          "cat",
		GracefulTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { p.Stop() })
	return p
}

func waitDone(t *testing.T, p *Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(testWait):
		t.Fatal("process did not exit")
	}
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty binary", Config{Name: "empty"}},
		{"missing binary", Config{Name: "bad", Binary: "/nonexistent/cec-client"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Start(context.Background(), tt.cfg)
			if !errors.Is(err, ErrStartFailed) {
				t.Errorf("Start() error = %v, want ErrStartFailed", err)
			}
			if p != nil {
				t.Error("Start() returned a process on failure")
			}
		})
	}
}

func TestStart_Running(t *testing.T) {
	p := startCat(t)

	if p.Status() != StatusRunning {
		t.Errorf("Status() = %q, want %q", p.Status(), StatusRunning)
	}
	if p.PID() == 0 {
		t.Error("PID() = 0 after Start()")
	}
	if p.Stats().Uptime <= 0 {
		t.Error("Stats().Uptime should be positive while running")
	}
}

func TestSendAndConsume(t *testing.T) {
	p := startCat(t)
	lines := newLineCollector()

	if err := p.AttachLineConsumer(lines.consume); err != nil {
		t.Fatalf("AttachLineConsumer() error = %v", err)
	}

	n, err := p.Send("power status: on\n")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n != len("power status: on\n") {
		t.Errorf("Send() wrote %d bytes", n)
	}

	got := lines.waitFor(t, 1)
	if got[0] != "power status: on" {
		t.Errorf("line = %q, want %q", got[0], "power status: on")
	}
}

func TestAttachLineConsumer_SecondCallFails(t *testing.T) {
	p := startCat(t)
	first := newLineCollector()
	second := newLineCollector()

	if err := p.AttachLineConsumer(first.consume); err != nil {
		t.Fatalf("first AttachLineConsumer() error = %v", err)
	}
	if err := p.AttachLineConsumer(second.consume); !errors.Is(err, ErrOutputConsumed) {
		t.Fatalf("second AttachLineConsumer() error = %v, want ErrOutputConsumed", err)
	}

	if _, err := p.Send("still here\n"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := first.waitFor(t, 1); got[0] != "still here" {
		t.Errorf("first consumer got %q", got[0])
	}

	second.mu.Lock()
	defer second.mu.Unlock()
	if len(second.lines) != 0 {
		t.Errorf("second consumer received %v", second.lines)
	}
}

func TestAttachLineConsumer_Nil(t *testing.T) {
	p := startCat(t)
	if err := p.AttachLineConsumer(nil); !errors.Is(err, ErrInvalidConsumer) {
		t.Errorf("AttachLineConsumer(nil) error = %v, want ErrInvalidConsumer", err)
	}
}

func TestLineSplitting(t *testing.T) {
	requireBinary(t, "sh")

	p, err := Start(context.Background(), Config{
		Binary: "sh",
		Args:   []string{"-c", `printf 'first\r\n\nsecond\nunterminated'`},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	lines := newLineCollector()
	if err := p.AttachLineConsumer(lines.consume); err != nil {
		t.Fatalf("AttachLineConsumer() error = %v", err)
	}

	got := lines.waitFor(t, 4)
	want := []string{"first", "", "second", "unterminated"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSend_ConcurrentLinesDoNotInterleave(t *testing.T) {
	p := startCat(t)
	lines := newLineCollector()
	if err := p.AttachLineConsumer(lines.consume); err != nil {
		t.Fatalf("AttachLineConsumer() error = %v", err)
	}

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := p.Send(fmt.Sprintf("writer-%d-line-%d\n", w, i)); err != nil {
					t.Errorf("Send() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	pattern := regexp.MustCompile(`^writer-\d+-line-\d+$`)
	got := lines.waitFor(t, writers*perWriter)
	seen := make(map[string]bool, len(got))
	for _, line := range got {
		if !pattern.MatchString(line) {
			t.Fatalf("interleaved line %q", line)
		}
		seen[line] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("received %d distinct lines, want %d", len(seen), writers*perWriter)
	}
}

func TestStop(t *testing.T) {
	p := startCat(t)

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitDone(t, p)

	if p.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", p.Status(), StatusStopped)
	}
	if p.LastError() != nil {
		t.Errorf("LastError() = %v after requested stop", p.LastError())
	}
	if p.Stats().Uptime != 0 {
		t.Errorf("Stats().Uptime = %v after Stop()", p.Stats().Uptime)
	}

	// Idempotent.
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestSend_AfterStop(t *testing.T) {
	p := startCat(t)
	p.Stop()

	if _, err := p.Send("on 0.0.0.0\n"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Send() after Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestStop_EscalatesToKill(t *testing.T) {
	requireBinary(t, "sh")

	p, err := Start(context.Background(), Config{
		Binary:          "sh",
		Args:            []string{"-c", `trap "" TERM; while true; do sleep 0.1; done`},
		GracefulTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	case <-time.After(testWait):
		t.Fatal("Stop() did not return after SIGKILL")
	}

	if p.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", p.Status(), StatusStopped)
	}
}

func TestUnexpectedExit(t *testing.T) {
	requireBinary(t, "sh")

	p, err := Start(context.Background(), Config{
		Binary: "sh",
		Args:   []string{"-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	waitDone(t, p)

	if p.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", p.Status(), StatusFailed)
	}
	var exitErr *exec.ExitError
	if !errors.As(p.LastError(), &exitErr) || exitErr.ExitCode() != 3 {
		t.Errorf("LastError() = %v, want exit status 3", p.LastError())
	}

	if _, err := p.Send("pow 0.0.0.0\n"); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Send() after exit error = %v, want ErrWriteFailed", err)
	}
}

func TestContextCancelStopsProcess(t *testing.T) {
	requireBinary(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	p, err := Start(ctx, Config{
		Binary:          "sleep",
		Args:            []string{"60"},
		GracefulTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	cancel()
	waitDone(t, p)

	if p.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", p.Status(), StatusStopped)
	}
}

func TestStats(t *testing.T) {
	p := startCat(t)
	lines := newLineCollector()
	if err := p.AttachLineConsumer(lines.consume); err != nil {
		t.Fatalf("AttachLineConsumer() error = %v", err)
	}

	p.Send("volup\n")
	p.Send("voldown\n")
	lines.waitFor(t, 2)

	stats := p.Stats()
	if stats.Name != "cat" {
		t.Errorf("Stats.Name = %q, want cat", stats.Name)
	}
	if stats.Status != StatusRunning {
		t.Errorf("Stats.Status = %q, want %q", stats.Status, StatusRunning)
	}
	if stats.PID == 0 {
		t.Error("Stats.PID = 0")
	}
	if stats.LinesRead != 2 {
		t.Errorf("Stats.LinesRead = %d, want 2", stats.LinesRead)
	}
	if stats.BytesWritten != int64(len("volup\n")+len("voldown\n")) {
		t.Errorf("Stats.BytesWritten = %d", stats.BytesWritten)
	}
	if stats.LastError != "" {
		t.Errorf("Stats.LastError = %q, want empty", stats.LastError)
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
	errors []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fmt.Sprint(append([]any{msg}, args...)...))
}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestStderrIsLogged(t *testing.T) {
	requireBinary(t, "sh")
	logger := &recordingLogger{}

	p, err := Start(context.Background(), Config{
		Binary: "sh",
		Args:   []string{"-c", "echo 'libCEC failed' >&2"},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()
	waitDone(t, p)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	for _, d := range logger.debugs {
		if regexp.MustCompile(`libCEC failed`).MatchString(d) {
			return
		}
	}
	t.Errorf("stderr not logged, debug entries: %v", logger.debugs)
}

func TestLineConsumerPanicIsRecovered(t *testing.T) {
	requireBinary(t, "cat")
	logger := &recordingLogger{}

	p, err := Start(context.Background(), Config{Name: "cat", Binary: "cat", Logger: logger})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	lines := newLineCollector()
	err = p.AttachLineConsumer(func(line string) {
		if line == "boom" {
			panic("consumer failed")
		}
		lines.consume(line)
	})
	if err != nil {
		t.Fatalf("AttachLineConsumer() error = %v", err)
	}

	if _, err := p.Send("boom\n"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := p.Send("after\n"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := lines.waitFor(t, 1)
	if got[0] != "after" {
		t.Errorf("line after panic = %q, want after", got[0])
	}
	if p.Status() != StatusRunning {
		t.Errorf("Status() = %q, want running", p.Status())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("error logs = %v, want one panic entry", logger.errors)
	}
}
