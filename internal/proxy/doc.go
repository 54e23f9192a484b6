// Package proxy wires the TV's CEC controls to Home Assistant entities.
//
// Entities exposed for one TV:
//
//	tv           switch  state ON/OFF/UNKNOWN, commands ON/OFF
//	volume_up    button
//	volume_down  button
//	mute         button
//	source_N     button  one per configured HDMI input
//
// The tv switch's state comes from cec-client's power status reports, which
// a poller requests at a fixed interval.
package proxy
