package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/hdmi-cec-proxy/internal/cec"
	"github.com/nerrad567/hdmi-cec-proxy/internal/hass"
	"github.com/nerrad567/hdmi-cec-proxy/internal/infrastructure/config"
	"github.com/nerrad567/hdmi-cec-proxy/internal/infrastructure/logging"
	"github.com/nerrad567/hdmi-cec-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/hdmi-cec-proxy/internal/process"
	"github.com/nerrad567/hdmi-cec-proxy/internal/proxy"
)

// errProcessExited is returned when cec-client exits while the proxy is
// still running. The proxy cannot work without it, so run gives up and lets
// the service manager restart it.
var errProcessExited = errors.New("cec-client exited")

// healthCheckTimeout bounds the startup connectivity check.
const healthCheckTimeout = 5 * time.Second

// run is the proxy itself, separated from the command for testability.
//
// Returns nil on clean shutdown (ctx cancelled or the MQTT connection
// closed), or an error describing why the proxy stopped.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting hdmi-cec-proxy",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	proc, err := process.Start(ctx, process.Config{
		Name:            "cec-client",
		Binary:          cfg.CEC.Binary,
		Args:            cfg.CEC.Args,
		GracefulTimeout: cfg.CEC.GracefulTimeout,
		Logger:          log.With("component", "cec-client"),
	})
	if err != nil {
		return fmt.Errorf("starting cec-client: %w", err)
	}

	controller := cec.NewController(proc)
	controller.SetLogger(log.With("component", "cec"))

	defer func() {
		stats := proc.Stats()
		log.Info("stopping cec-client",
			"pid", stats.PID,
			"uptime", stats.Uptime,
			"lines_read", stats.LinesRead,
			"bytes_written", stats.BytesWritten,
			"power_state", controller.PowerState(),
		)
		if stopErr := proc.Stop(); stopErr != nil {
			log.Debug("cec-client exit", "error", stopErr)
		}
	}()
	log.Info("cec-client started", "binary", cfg.CEC.Binary, "pid", proc.PID())

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	if err := healthCheck(ctx, mqttClient); err != nil {
		return err
	}

	broker := hass.NewBroker(mqttClient, brokerConfig(cfg))
	broker.SetLogger(log.With("component", "broker"))

	p := proxy.New(controller, deviceFromConfig(cfg), proxyConfig(cfg))
	p.SetLogger(log.With("component", "proxy"))
	defer p.Stop()

	if err := p.Register(ctx, broker); err != nil {
		return fmt.Errorf("registering entities: %w", err)
	}
	log.Info("entities registered", "entities", broker.EntityCount())

	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()

	exited := make(chan struct{})
	go func() {
		select {
		case <-proc.Done():
			if ctx.Err() == nil {
				log.Error("cec-client exited unexpectedly", "error", proc.LastError())
				close(exited)
				cancelListen()
			}
		case <-listenCtx.Done():
		}
	}()

	log.Info("hdmi-cec-proxy ready")

	err = broker.Listen(listenCtx)

	select {
	case <-exited:
		if lastErr := proc.LastError(); lastErr != nil {
			return fmt.Errorf("%w: %w", errProcessExited, lastErr)
		}
		return errProcessExited
	default:
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("broker: %w", err)
	}

	log.Info("shutting down")
	return nil
}

// healthCheck verifies the MQTT connection before entities are registered.
func healthCheck(ctx context.Context, client *mqtt.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := client.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("MQTT health check: %w", err)
	}
	return nil
}

func brokerConfig(cfg *config.Config) hass.BrokerConfig {
	return hass.BrokerConfig{
		StatusTopic:       cfg.Topic.Status,
		Origin:            hass.NewOrigin(version),
		AvailabilityTopic: cfg.AvailabilityTopic(),
	}
}

func deviceFromConfig(cfg *config.Config) hass.Device {
	return hass.Device{
		UniqueID:    cfg.Device.UniqueID,
		Name:        cfg.Device.Name,
		ObjectID:    cfg.Device.ObjectID,
		TopicPrefix: cfg.Topic.Prefix,
	}
}

func proxyConfig(cfg *config.Config) proxy.Config {
	return proxy.Config{
		PollInterval: cfg.CEC.PollInterval,
		Sources:      cfg.CEC.Sources,
	}
}
