package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

const opParse = "parse payload"

// bound is the physically plausible range of one payload field. Values
// outside it are sensor faults, not breaches.
type bound struct {
	key    string
	lo, hi float64
}

var (
	waterTempBound = bound{"suhu_air", -20, 100}
	airTempBound   = bound{"suhu_udara", -50, 70}
	humidityBound  = bound{"kelembapan", 0, 100}
	tdsBound       = bound{"tds", 0, 50000}
	phBound        = bound{"ph", 0, 14}
)

func (b bound) check(v *float64) error {
	if v == nil {
		return nil
	}
	if !(*v >= b.lo && *v <= b.hi) {
		return fmt.Errorf("%s out of range [%g, %g]: %g", b.key, b.lo, b.hi, *v)
	}
	return nil
}

// ParsePayload decodes the sensor JSON. The four environmental keys are
// required; ph and pompa are optional. pompa is normalised to upper case.
// Numeric values outside their plausible range are rejected.
func ParsePayload(data []byte) (model.SensorPayload, error) {
	var p model.SensorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.SensorPayload{}, model.E(model.KindParse, opParse, err)
	}

	var missing []string
	if p.WaterTemp == nil {
		missing = append(missing, "suhu_air")
	}
	if p.AirTemp == nil {
		missing = append(missing, "suhu_udara")
	}
	if p.Humidity == nil {
		missing = append(missing, "kelembapan")
	}
	if p.TDS == nil {
		missing = append(missing, "tds")
	}
	if len(missing) > 0 {
		return model.SensorPayload{}, model.E(model.KindParse, opParse,
			fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	for _, c := range []struct {
		b bound
		v *float64
	}{
		{waterTempBound, p.WaterTemp},
		{airTempBound, p.AirTemp},
		{humidityBound, p.Humidity},
		{tdsBound, p.TDS},
		{phBound, p.PH},
	} {
		if err := c.b.check(c.v); err != nil {
			return model.SensorPayload{}, model.E(model.KindParse, opParse, err)
		}
	}

	if p.Pump != nil {
		state := entities.PumpState(strings.ToUpper(strings.TrimSpace(*p.Pump)))
		if !state.Valid() {
			return model.SensorPayload{}, model.E(model.KindParse, opParse,
				fmt.Errorf("invalid pompa value %q", *p.Pump))
		}
		s := string(state)
		p.Pump = &s
	}
	return p, nil
}

// toReading builds the reading to persist; the caller stamps CapturedAt.
func toReading(p model.SensorPayload) model.SensorReading {
	r := model.SensorReading{
		WaterTemp: *p.WaterTemp,
		AirTemp:   *p.AirTemp,
		Humidity:  *p.Humidity,
		TDS:       *p.TDS,
		PH:        p.PH,
	}
	for _, c := range []struct {
		b bound
		v *float64
	}{
		{waterTempBound, p.WaterTemp},
		{airTempBound, p.AirTemp},
		{humidityBound, p.Humidity},
		{tdsBound, p.TDS},
		{phBound, p.PH},
	} {
		if err := c.b.check(c.v); err != nil {
			return model.SensorPayload{}, model.E(model.KindParse, opParse, err)
		}
	}

	if p.Pump != nil {
		state := entities.PumpState(*p.Pump)
		r.PumpState = &state
	}
	return r
}
