package cec

import "errors"

// Domain errors for the CEC package.
var (
	// ErrInvalidSource is returned when a source number is outside 1..15.
	ErrInvalidSource = errors.New("cec: invalid source number")

	// ErrSendFailed is returned when a command cannot be written to cec-client.
	ErrSendFailed = errors.New("cec: command send failed")
)
