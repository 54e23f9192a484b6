package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hdmi-cec-proxy/internal/hass"
	"github.com/nerrad567/hdmi-cec-proxy/internal/infrastructure/config"
	"github.com/nerrad567/hdmi-cec-proxy/internal/proxy"
)

func newDiscoveryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discovery",
		Short: "Print the discovery messages the proxy would publish",
		Long: `Print every entity's discovery topic followed by its config payload,
exactly as they would be published to Home Assistant.

Nothing is started: cec-client is not run and no MQTT connection is made.
Useful for checking topic names before pointing the proxy at a live broker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return printDiscovery(cmd.OutOrStdout(), cfg)
		},
	}
}

// printDiscovery writes the topic and indented payload of every entity.
func printDiscovery(w io.Writer, cfg *config.Config) error {
	origin := hass.NewOrigin(version)
	availability := cfg.AvailabilityTopic()

	// Entities are only described here; no command reaches the controller.
	p := proxy.New(nil, deviceFromConfig(cfg), proxyConfig(cfg))

	for _, e := range p.Entities(context.Background()) {
		if err := e.Err(); err != nil {
			return fmt.Errorf("entity %s: %w", e.Name(), err)
		}

		payload, err := json.MarshalIndent(e.ConfigPayload(origin, availability), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", e.Name(), err)
		}

		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", e.DiscoveryTopic(), payload); err != nil {
			return err
		}
	}
	return nil
}
