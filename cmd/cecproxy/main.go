// hdmi-cec-proxy exposes an HDMI-CEC connected TV to Home Assistant.
//
// It drives cec-client as a child process and publishes the TV as a set of
// MQTT discovery entities: a power switch with live state, volume and mute
// buttons, and optional input source buttons.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/hdmi-cec-proxy/cmd/cecproxy/commands"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
