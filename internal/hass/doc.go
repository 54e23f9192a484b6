// Package hass exposes entities to Home Assistant through MQTT discovery.
//
// An Entity is derived from a Device and gains optional capabilities:
//
//	tv := device.Entity("tv", hass.EntitySwitch, hass.DeviceClassSwitch).
//	    WithState(func(sm hass.StateManager) { /* keep sm, call sm.UpdateState */ }).
//	    WithCommands(hass.CommandFunc(func(payload string) { /* "ON" / "OFF" */ }))
//
// Topics are derived, never set:
//
//	{prefix}/{class}/{object_id}_{name}/config   discovery
//	{prefix}/{class}/{object_id}_{name}/state    only with WithState
//	{prefix}/{class}/{object_id}_{name}/set      only with WithCommands
//
// The Broker registers entities (publishing discovery and subscribing command
// topics), republishes discovery whenever Home Assistant announces "online"
// on its status topic, and routes incoming command payloads to entities.
// Broker.Listen is the proxy's main loop.
package hass
