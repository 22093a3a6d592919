package alerting

import (
	"math"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

const (
	criticalDeviationPct = 20.0
	highDeviationPct     = 10.0
	// DefaultMarginPct is the width of the warning band inside a range, as a
	// percentage of the range width.
	DefaultMarginPct = 10.0
)

// DeviationPercent is |current - threshold| / |threshold| * 100. A zero
// threshold yields +Inf for any non-zero current value.
func DeviationPercent(current, threshold float64) float64 {
	if threshold == 0 {
		if current == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(current-threshold) / math.Abs(threshold) * 100
}

// ClassifySeverity maps a breach to medium, high or critical. Low is never
// returned here; it only exists for the margin band of ParameterStatus.
func ClassifySeverity(current, threshold float64) model.Severity {
	dev := DeviationPercent(current, threshold)
	switch {
	case dev > criticalDeviationPct:
		return entities.SeverityCritical
	case dev > highDeviationPct:
		return entities.SeverityHigh
	default:
		return entities.SeverityMedium
	}
}

// Assessment is the user-facing state of one parameter.
type Assessment struct {
	Optimal   bool
	Breach    bool
	Severity  model.Severity  // empty when Optimal
	Direction model.Direction // empty when Optimal
	Threshold float64         // the bound the value is closest to or beyond
}

// ParameterStatus grades value against rng. Values beyond the range get the
// breach severity; values within marginPct of the range width from a bound
// are low severity; anything else is optimal.
func ParameterStatus(value float64, rng model.Range, marginPct float64) Assessment {
	switch {
	case value > rng.Max:
		return Assessment{Breach: true, Severity: ClassifySeverity(value, rng.Max), Direction: entities.DirectionHigh, Threshold: rng.Max}
	case value < rng.Min:
		return Assessment{Breach: true, Severity: ClassifySeverity(value, rng.Min), Direction: entities.DirectionLow, Threshold: rng.Min}
	}

	band := (rng.Max - rng.Min) * marginPct / 100
	switch {
	case value < rng.Min+band:
		return Assessment{Severity: entities.SeverityLow, Direction: entities.DirectionLow, Threshold: rng.Min}
	case value > rng.Max-band:
		return Assessment{Severity: entities.SeverityLow, Direction: entities.DirectionHigh, Threshold: rng.Max}
	}
	return Assessment{Optimal: true}
}
