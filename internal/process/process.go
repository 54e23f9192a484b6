package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Status represents the current state of the child process.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// defaultGracefulTimeout applies when Config.GracefulTimeout is zero.
const defaultGracefulTimeout = 5 * time.Second

// Config holds configuration for the child process.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH when not absolute.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// Logger receives lifecycle events and stderr output. Optional.
	Logger Logger
}

// Logger defines the logging interface for the driver.
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

// Process is a running child with a writable stdin and a line-oriented stdout.
type Process struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	lastError     error
	startTime     time.Time
	stopRequested bool

	// writeMu serialises Send so lines from concurrent callers never interleave.
	writeMu sync.Mutex
	stdin   io.WriteCloser
	closed  bool

	outMu    sync.Mutex
	stdout   *os.File
	consumed bool

	linesRead    atomic.Int64
	bytesWritten atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start spawns the configured binary and begins monitoring it.
//
// The child runs in its own process group so Stop can signal any helpers
// it forks. Cancelling ctx terminates the child the same way Stop does.
//
// Returns ErrStartFailed if the process cannot be spawned.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("%w: binary is required", ErrStartFailed)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}

	p := &Process{
		config: cfg,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}

	if err := p.spawn(ctx); err != nil {
		return nil, err
	}

	go p.monitor(ctx)

	return p, nil
}

// spawn starts the child with its pipes attached.
func (p *Process) spawn(ctx context.Context) error {
	p.logger.Info("starting process",
		"name", p.config.Name,
		"binary", p.config.Binary,
		"args", p.config.Args,
	)

	cmd := exec.CommandContext(ctx, p.config.Binary, p.config.Args...) //nolint:gosec // Binary comes from validated config

	// Create a new process group so we can signal all children on shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = p.config.GracefulTimeout

	if p.config.Env != nil {
		cmd.Env = append(os.Environ(), p.config.Env...)
	}
	if p.config.WorkDir != "" {
		cmd.Dir = p.config.WorkDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: creating stdin pipe: %w", ErrStartFailed, err)
	}

	// stdout is an explicit pipe rather than cmd.StdoutPipe so that Wait
	// does not close the read side under an active consumer.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("%w: creating stdout pipe: %w", ErrStartFailed, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = &stderrLogger{logger: p.logger, name: p.config.Name}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("%w: starting %s: %w", ErrStartFailed, p.config.Name, err)
	}

	// The child holds its own copy of the write end.
	stdoutW.Close()

	p.mu.Lock()
	p.cmd = cmd
	p.status = StatusRunning
	p.startTime = time.Now()
	p.mu.Unlock()

	p.stdin = stdin
	p.stdout = stdoutR

	p.logger.Info("process started",
		"name", p.config.Name,
		"pid", cmd.Process.Pid,
	)

	return nil
}

// monitor reaps the child and records how it exited.
func (p *Process) monitor(ctx context.Context) {
	defer close(p.done)

	err := p.cmd.Wait()

	p.mu.Lock()
	stopRequested := p.stopRequested || ctx.Err() != nil
	switch {
	case stopRequested:
		p.status = StatusStopped
	case err != nil:
		p.status = StatusFailed
		p.lastError = err
	default:
		p.status = StatusStopped
	}
	p.mu.Unlock()

	if stopRequested {
		p.logger.Info("process stopped as requested", "name", p.config.Name)
		return
	}
	if err != nil {
		p.logger.Warn("process exited unexpectedly",
			"name", p.config.Name,
			"error", err,
		)
		return
	}
	p.logger.Info("process exited", "name", p.config.Name)
}

// Send writes text verbatim to the child's stdin and returns the number of
// bytes written. Callers include the trailing newline.
//
// Concurrent calls are serialised; each call's text reaches the child
// contiguously.
func (p *Process) Send(text string) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed {
		return 0, ErrNotRunning
	}

	n, err := io.WriteString(p.stdin, text)
	p.bytesWritten.Add(int64(n))
	if err != nil {
		return n, fmt.Errorf("%w: %s: %w", ErrWriteFailed, p.config.Name, err)
	}

	p.logger.Debug("sent to process",
		"name", p.config.Name,
		"text", strings.TrimRight(text, "\n"),
	)

	return n, nil
}

// AttachLineConsumer starts a goroutine that delivers every stdout line to
// fn, in order, until the stream ends. Trailing "\n" and "\r" are stripped
// and a final unterminated line is still delivered.
//
// Only the first call takes the stream. Later calls return ErrOutputConsumed
// and leave the first consumer running.
func (p *Process) AttachLineConsumer(fn func(line string)) error {
	if fn == nil {
		return fmt.Errorf("%w: consumer cannot be nil", ErrInvalidConsumer)
	}

	p.outMu.Lock()
	if p.consumed {
		p.outMu.Unlock()
		return ErrOutputConsumed
	}
	p.consumed = true
	r := p.stdout
	p.outMu.Unlock()

	go p.readLines(r, fn)

	return nil
}

// readLines reads r until EOF, handing each line to fn.
func (p *Process) readLines(r *os.File, fn func(line string)) {
	defer r.Close()

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			p.linesRead.Add(1)
			p.deliver(fn, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Warn("reading process output",
					"name", p.config.Name,
					"error", err,
				)
			}
			p.logger.Debug("process output closed", "name", p.config.Name)
			return
		}
	}
}

// deliver hands one line to fn. A panicking consumer is logged and the
// reader keeps going.
func (p *Process) deliver(fn func(line string), line string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("line consumer panic recovered",
				"name", p.config.Name,
				"line", line,
				"panic", r,
			)
		}
	}()
	fn(line)
}

// Stop gracefully stops the child.
// It sends SIGTERM to the process group, waits GracefulTimeout, then
// sends SIGKILL. Calling Stop more than once returns the first result.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop()
	})
	return p.stopErr
}

func (p *Process) stop() error {
	p.mu.Lock()
	p.stopRequested = true
	cmd := p.cmd
	p.mu.Unlock()

	p.writeMu.Lock()
	p.closed = true
	p.stdin.Close()
	p.writeMu.Unlock()

	// Nobody will read an unconsumed stdout now.
	p.outMu.Lock()
	if !p.consumed {
		p.consumed = true
		p.stdout.Close()
	}
	p.outMu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	p.logger.Info("stopping process", "name", p.config.Name, "pid", cmd.Process.Pid)

	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		p.logger.Warn("failed to send SIGTERM to process group", "name", p.config.Name, "error", err)
	}

	select {
	case <-p.done:
		p.logger.Info("process stopped gracefully", "name", p.config.Name)
		return nil
	case <-time.After(p.config.GracefulTimeout):
		p.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", p.config.Name,
			"timeout", p.config.GracefulTimeout,
		)
	}

	if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing process group %s: %w", p.config.Name, err)
	}

	<-p.done
	p.logger.Info("process killed", "name", p.config.Name)

	return nil
}

// signalGroup signals the child's whole process group. A group that has
// already exited is not an error.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative PID addresses the process group created via Setpgid.
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// Done returns a channel that is closed once the child has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Status returns the current status of the child.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// LastError returns the error the child exited with, if it exited on its own.
func (p *Process) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastError
}

// PID returns the process ID.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}

// Stats returns statistics about the child process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	LinesRead    int64         `json:"lines_read"`
	BytesWritten int64         `json:"bytes_written"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the child.
func (p *Process) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		Name:         p.config.Name,
		Status:       p.status,
		LinesRead:    p.linesRead.Load(),
		BytesWritten: p.bytesWritten.Load(),
	}

	if p.cmd != nil && p.cmd.Process != nil {
		stats.PID = p.cmd.Process.Pid
	}
	if p.status == StatusRunning {
		stats.Uptime = time.Since(p.startTime)
	}
	if p.lastError != nil {
		stats.LastError = p.lastError.Error()
	}

	return stats
}

// stderrLogger forwards the child's stderr to the debug log.
type stderrLogger struct {
	logger Logger
	name   string
}

func (w *stderrLogger) Write(b []byte) (int, error) {
	if out := strings.TrimRight(string(b), "\r\n"); out != "" {
		w.logger.Debug("process output",
			"name", w.name,
			"stream", "stderr",
			"output", out,
		)
	}
	return len(b), nil
}
