package daikin_bridge

import "time"

// HVAC operating modes reported and accepted by the unit.
const (
	ModeOff  = "OFF"
	ModeHeat = "HEAT"
	ModeCool = "COOL"
	ModeAuto = "AUTO"
	ModeFan  = "FAN"
	ModeDry  = "DRY"
)

// Fan speed settings. Levels map to the unit's 1..5 scale.
const (
	FanAuto   = "auto"
	FanQuiet  = "quiet"
	FanLevel1 = "level_1"
	FanLevel2 = "level_2"
	FanLevel3 = "level_3"
	FanLevel4 = "level_4"
	FanLevel5 = "level_5"
)

// Swing settings.
const (
	SwingOff        = "off"
	SwingVertical   = "vertical"
	SwingHorizontal = "horizontal"
	SwingBoth       = "both"
)

// DeviceSnapshot is the unit's reported state at one point in time.
// A snapshot is immutable once constructed; a refresh builds a new one
// and swaps it in, it never mutates the old snapshot in place.
type DeviceSnapshot struct {
	Power             bool               `json:"power"`
	Mode              string             `json:"mode"`                         // OFF | HEAT | COOL | AUTO | FAN | DRY
	TargetTemperature float64            `json:"target_temperature,omitempty"` // °C, 0.5° steps; 0 when mode has no set-point
	FanMode           string             `json:"fan_mode,omitempty"`
	SwingMode         string             `json:"swing_mode,omitempty"`
	SensorReadings    map[string]float64 `json:"sensor_readings,omitempty"` // inside_temp, outside_temp, humidity, runtime_today, energy_today
	FetchedAt         time.Time          `json:"fetched_at"`
}

// Sensor reading keys present in DeviceSnapshot.SensorReadings when the
// unit reports them.
const (
	SensorInsideTemp   = "inside_temp"   // °C
	SensorOutsideTemp  = "outside_temp"  // °C
	SensorHumidity     = "humidity"      // %
	SensorRuntimeToday = "runtime_today" // minutes
	SensorEnergyToday  = "energy_today"  // kWh
)

// DeviceEvent is a single journal entry for a command or refresh outcome.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // POWER | MODE_CHANGE | FAN_CHANGE | SWING_CHANGE | SET_TEMPERATURE | REFRESH_ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// TemperatureResult reports what the unit actually accepted for a
// set-temperature command. Adjusted is true when the accepted set-point
// differs from the requested one (the unit clipped the request).
type TemperatureResult struct {
	Requested  float64 `json:"requested"`
	Accepted   float64 `json:"accepted"`
	Adjusted   bool    `json:"adjusted"`
	RoundTrips int     `json:"round_trips"`
	Message    string  `json:"message,omitempty"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never exposed
}
