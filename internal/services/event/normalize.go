package event

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

const Measurement = "hydro_reading"

// ReadingToPoint maps a persisted reading onto the hydro_reading measurement.
// pH is written only when reported, the pump tag only when known.
func ReadingToPoint(r model.SensorReading) *write.Point {
	tags := map[string]string{}
	if r.PumpState != nil {
		tags["pump"] = string(*r.PumpState)
	}

	fields := map[string]interface{}{
		"water_temp": r.WaterTemp,
		"air_temp":   r.AirTemp,
		"humidity":   r.Humidity,
		"tds":        r.TDS,
		"reading_id": r.ID,
	}
	if r.PH != nil {
		fields["ph"] = *r.PH
	}

	return influxdb2.NewPoint(Measurement, tags, fields, r.CapturedAt)
}
