package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

// ====== Tunables ======
const (
	// per-minute pull of each quantity toward its target
	reversionPerMin = 0.05

	// water cools toward this while the pump circulates the reservoir
	circulatedWaterTemp = 21.0

	// nutrient strength the dosing loop aims for while the pump is ON
	dosedTDS = 900.0
	dosedPH  = 6.0

	// with the pump OFF the reservoir concentrates and pH creeps up
	tdsRisePerMin = 1.5
	phRisePerMin  = 0.004
)

// Conditions is the ambient state the generator drifts around.
type Conditions struct {
	AirTemp  float64
	Humidity float64
}

// DataGenerator keeps the reservoir state and advances it on every Next.
type DataGenerator struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	ambient   Conditions
	last      time.Time
	seeded    bool
	waterTemp float64
	airTemp   float64
	humidity  float64
	tds       float64
	ph        float64
	noise     float64
}

// NewDataGenerator builds a generator with a deterministic random source.
// noise is the standard deviation of the per-sample jitter.
func NewDataGenerator(seed int64, ambient Conditions, noise float64) *DataGenerator {
	return &DataGenerator{
		rnd:     rand.New(rand.NewSource(seed)),
		ambient: ambient,
		noise:   math.Max(0, noise),
	}
}

// Next advances the state to now and returns the payload to publish.
func (g *DataGenerator) Next(now time.Time, pump model.PumpState) model.SensorPayload {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.seeded {
		g.waterTemp = g.ambient.AirTemp - 2
		g.airTemp = g.ambient.AirTemp
		g.humidity = g.ambient.Humidity
		g.tds = dosedTDS
		g.ph = dosedPH
		g.last = now
		g.seeded = true
	}

	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	g.last = now
	k := 1 - math.Exp(-reversionPerMin*dtMin)

	g.airTemp += (g.ambient.AirTemp - g.airTemp) * k
	g.humidity += (g.ambient.Humidity - g.humidity) * k

	switch pump {
	case entities.PumpOn:
		g.waterTemp += (circulatedWaterTemp - g.waterTemp) * k
		g.tds += (dosedTDS - g.tds) * k
		g.ph += (dosedPH - g.ph) * k
	default:
		g.waterTemp += (g.airTemp - g.waterTemp) * k
		g.tds += tdsRisePerMin * dtMin
		g.ph += phRisePerMin * dtMin
	}

	g.tds = clamp(g.tds, 0, 5000)
	g.ph = clamp(g.ph, 0, 14)
	g.humidity = clamp(g.humidity, 0, 100)

	water := round2(g.waterTemp + g.jitter())
	air := round2(g.airTemp + g.jitter())
	hum := round2(clamp(g.humidity+g.jitter(), 0, 100))
	tds := math.Round(g.tds + g.jitter()*10)
	ph := round2(clamp(g.ph+g.jitter()/10, 0, 14))
	state := string(pump)

	return model.SensorPayload{
		WaterTemp: &water,
		AirTemp:   &air,
		Humidity:  &hum,
		TDS:       &tds,
		PH:        &ph,
		Pump:      &state,
	}
}

// Excursion pushes the reservoir off balance so downstream alerting has
// something to react to.
func (g *DataGenerator) Excursion(waterDelta, tdsDelta, phDelta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waterTemp += waterDelta
	g.tds = clamp(g.tds+tdsDelta, 0, 5000)
	g.ph = clamp(g.ph+phDelta, 0, 14)
}

func (g *DataGenerator) jitter() float64 {
	if g.noise == 0 {
		return 0
	}
	return g.rnd.NormFloat64() * g.noise
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
