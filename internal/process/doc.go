// Package process drives a long-running, line-oriented child process.
//
// The proxy talks to the HDMI-CEC bus through cec-client: commands are
// written to its stdin one line at a time and everything it reports
// arrives on stdout as lines of text. This package owns that child:
//
//   - Start spawns it in its own process group with stdin/stdout pipes
//   - Send writes text to stdin, serialised so concurrent lines never interleave
//   - AttachLineConsumer hands stdout to exactly one reader goroutine
//   - Stop terminates the group gracefully, escalating to SIGKILL
//
// Stderr is logged at debug level and never parsed.
//
// Example usage:
//
//	proc, err := process.Start(ctx, process.Config{
//	    Name:   "cec-client",
//	    Binary: "cec-client",
//	    Args:   []string{"-d", "1"},
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer proc.Stop()
//
//	proc.AttachLineConsumer(func(line string) {
//	    // parse line
//	})
//	proc.Send("pow 0.0.0.0\n")
package process
