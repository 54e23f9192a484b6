package hass

// EntityClass is the Home Assistant integration an entity belongs to.
// It is also the class segment of the entity's topics.
type EntityClass string

const (
	EntitySwitch       EntityClass = "switch"
	EntityButton       EntityClass = "button"
	EntitySensor       EntityClass = "sensor"
	EntityBinarySensor EntityClass = "binary_sensor"
)

// Valid reports whether c is one of the supported entity classes.
func (c EntityClass) Valid() bool {
	switch c {
	case EntitySwitch, EntityButton, EntitySensor, EntityBinarySensor:
		return true
	}
	return false
}

// DeviceClass is the hub-side semantic hint for an entity.
// DeviceClassNone is left out of discovery payloads.
type DeviceClass string

const (
	DeviceClassSwitch DeviceClass = "switch"
	DeviceClassMotion DeviceClass = "motion"
	DeviceClassNone   DeviceClass = "none"
)

// Valid reports whether c is one of the supported device classes.
func (c DeviceClass) Valid() bool {
	switch c {
	case DeviceClassSwitch, DeviceClassMotion, DeviceClassNone:
		return true
	}
	return false
}
