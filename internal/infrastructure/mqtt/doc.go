// Package mqtt provides the broker connection for the CEC proxy.
//
// This package manages:
//   - Connection to the MQTT broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, either callback based or routed into an
//     ordered event stream (Events)
//   - Availability reporting through a retained online/offline topic and
//     the Last Will
//
// # Architecture
//
// Home Assistant and the proxy never talk directly; the broker sits between
// them:
//
//	cec-client ↔ proxy ↔ MQTT broker ↔ Home Assistant
//
// The hass.Broker consumes Events on a single goroutine. Incoming messages
// are buffered in an unbounded queue so that a slow consumer never blocks
// paho's router (and therefore acknowledgements and keep-alives).
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.SubscribeEvents("homeassistant/status", 1); err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range client.Events() {
//	    log.Printf("%s %s = %s", ev.Kind, ev.Topic, ev.Payload)
//	}
package mqtt
