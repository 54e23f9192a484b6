// Package cec translates between the proxy and the HDMI-CEC bus as seen
// through cec-client's line protocol.
//
// Outgoing, it holds the fixed command strings cec-client understands
// ("on 0.0.0.0", "standby 0.0.0.0", "volup", ...). Incoming, it recognises
// power status reports:
//
//	power status: on        -> ON
//	power status: standby   -> OFF
//	power status: <other>   -> UNKNOWN
//
// Every other line cec-client prints is ignored.
//
// A Controller pairs the two over a LineDriver (normally a *process.Process),
// and a Poller asks the TV for its power status at a fixed interval, since
// not every TV announces power changes on its own.
package cec
