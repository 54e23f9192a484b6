package hass

// DefaultSupportURL is advertised in the origin block of discovery payloads.
const DefaultSupportURL = "https://github.com/o080o/ha-cec-proxy"

// softwareName is the origin name shown in Home Assistant.
const softwareName = "hdmi-cec-proxy"

// Origin identifies the software that published a discovery payload.
type Origin struct {
	Name       string `json:"name"`
	SWVersion  string `json:"sw_version"`
	SupportURL string `json:"support_url"`
}

// NewOrigin returns the proxy's origin block for the given version.
func NewOrigin(version string) Origin {
	return Origin{
		Name:       softwareName,
		SWVersion:  version,
		SupportURL: DefaultSupportURL,
	}
}

// DeviceInfo is the device block of a discovery payload.
type DeviceInfo struct {
	Name        string   `json:"name"`
	Identifiers []string `json:"identifiers"`
}

// ConfigPayload is the MQTT discovery document for one entity.
// Optional fields are omitted when empty.
type ConfigPayload struct {
	Name              string     `json:"name"`
	StateTopic        string     `json:"state_topic,omitempty"`
	CommandTopic      string     `json:"command_topic,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	UniqueID          string     `json:"unique_id"`
	Device            DeviceInfo `json:"device"`
	Origin            Origin     `json:"origin"`
}

// ConfigPayload builds the entity's discovery document. availabilityTopic
// may be empty.
func (e *Entity) ConfigPayload(origin Origin, availabilityTopic string) ConfigPayload {
	payload := ConfigPayload{
		Name:              e.name,
		AvailabilityTopic: availabilityTopic,
		UniqueID:          e.UniqueID(),
		Device: DeviceInfo{
			Name:        e.device.DisplayName(),
			Identifiers: []string{e.device.UniqueID},
		},
		Origin: origin,
	}

	if topic, ok := e.StateTopic(); ok {
		payload.StateTopic = topic
	}
	if topic, ok := e.CommandTopic(); ok {
		payload.CommandTopic = topic
	}
	if e.deviceClass != DeviceClassNone {
		payload.DeviceClass = string(e.deviceClass)
	}

	return payload
}
