package entities

import "time"

// Parameter is the display name of a monitored quantity. It is also the
// parameter_name stored on alerts.
type Parameter string

const (
	ParamPH        Parameter = "pH"
	ParamTDS       Parameter = "TDS"
	ParamWaterTemp Parameter = "Water Temperature"
	ParamAirTemp   Parameter = "Air Temperature"
	ParamHumidity  Parameter = "Humidity"
)

// Parameters lists the monitored quantities in evaluation order.
var Parameters = []Parameter{ParamPH, ParamTDS, ParamWaterTemp, ParamAirTemp, ParamHumidity}

// Range is an inclusive [Min, Max] optimal interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Valid() bool { return r.Min <= r.Max }

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// OptimalRanges holds one Range per monitored parameter.
type OptimalRanges struct {
	PH        Range `json:"ph"`
	TDS       Range `json:"tds"`
	WaterTemp Range `json:"water_temp"`
	AirTemp   Range `json:"air_temp"`
	Humidity  Range `json:"humidity"`
}

// For returns the range configured for p.
func (o OptimalRanges) For(p Parameter) (Range, bool) {
	switch p {
	case ParamPH:
		return o.PH, true
	case ParamTDS:
		return o.TDS, true
	case ParamWaterTemp:
		return o.WaterTemp, true
	case ParamAirTemp:
		return o.AirTemp, true
	case ParamHumidity:
		return o.Humidity, true
	default:
		return Range{}, false
	}
}

// PlantProfile is a species template, seeded at startup.
type PlantProfile struct {
	ID                 int64         `json:"id"`
	Name               string        `json:"name"`
	Ranges             OptimalRanges `json:"optimal_ranges"`
	GrowthDurationDays int           `json:"growth_duration_days"`
}

type GrowthPhase string

const (
	PhaseSeedling   GrowthPhase = "seedling"
	PhaseVegetative GrowthPhase = "vegetative"
	PhaseFlowering  GrowthPhase = "flowering"
	PhaseHarvest    GrowthPhase = "harvest"
)

// UserPlantAssignment links a user to a profile. Deactivation only flips Active.
type UserPlantAssignment struct {
	ID                int64       `json:"id"`
	UserID            int64       `json:"user_id"`
	ProfileID         int64       `json:"profile_id"`
	GrowthPhase       GrowthPhase `json:"growth_phase"`
	PlantedAt         time.Time   `json:"planted_at"`
	ExpectedHarvestAt time.Time   `json:"expected_harvest_at"`
	Active            bool        `json:"active"`
}
