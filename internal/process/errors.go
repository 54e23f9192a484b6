package process

import "errors"

// Sentinel errors for the line process driver.
var (
	// ErrStartFailed is returned when the child process cannot be spawned.
	ErrStartFailed = errors.New("process: start failed")

	// ErrNotRunning is returned by Send after Stop was called.
	ErrNotRunning = errors.New("process: not running")

	// ErrWriteFailed wraps I/O errors writing to the child's stdin.
	ErrWriteFailed = errors.New("process: write failed")

	// ErrOutputConsumed is returned when a second consumer tries to attach
	// to the child's stdout.
	ErrOutputConsumed = errors.New("process: output already consumed")

	// ErrInvalidConsumer is returned when AttachLineConsumer is given a nil
	// callback.
	ErrInvalidConsumer = errors.New("process: invalid line consumer")
)
