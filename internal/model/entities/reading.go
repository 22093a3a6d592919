package entities

import "time"

// PumpState is the actuator state reported by the field sensor and accepted as a command.
type PumpState string

const (
	PumpOn  PumpState = "ON"
	PumpOff PumpState = "OFF"
)

// Valid reports whether p is one of the two wire values.
func (p PumpState) Valid() bool {
	return p == PumpOn || p == PumpOff
}

// SensorReading is one ingested sample. It is created once and never mutated.
type SensorReading struct {
	ID         int64      `json:"id"`
	WaterTemp  float64    `json:"water_temp"`
	AirTemp    float64    `json:"air_temp"`
	Humidity   float64    `json:"humidity"`
	TDS        float64    `json:"tds"`
	PH         *float64   `json:"ph"`
	PumpState  *PumpState `json:"pump_state"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Value returns the reading's value for a monitored parameter, nil when the
// parameter is unknown or was not reported.
func (r SensorReading) Value(p Parameter) *float64 {
	switch p {
	case ParamPH:
		return r.PH
	case ParamTDS:
		v := r.TDS
		return &v
	case ParamWaterTemp:
		v := r.WaterTemp
		return &v
	case ParamAirTemp:
		v := r.AirTemp
		return &v
	case ParamHumidity:
		v := r.Humidity
		return &v
	default:
		return nil
	}
}
