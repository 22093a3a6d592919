package entities

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so they can be compared; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

type Direction string

const (
	DirectionLow  Direction = "low"
	DirectionHigh Direction = "high"
)

// Alert is a parameter breach. Only resolution mutates it; at most one
// unresolved alert exists per (UserID, ParameterName).
type Alert struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	PlantAssignmentID *int64     `json:"plant_assignment_id"` // nil for system-default thresholds
	ParameterName     Parameter  `json:"parameter_name"`
	Severity          Severity   `json:"severity"`
	CurrentValue      float64    `json:"current_value"`
	ThresholdValue    float64    `json:"threshold_value"`
	Direction         Direction  `json:"deviation_direction"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	ActionRequired    string     `json:"action_required"`
	IsResolved        bool       `json:"is_resolved"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	ResolvedBy        *string    `json:"resolved_by"`
	SourceReadingID   int64      `json:"source_reading_id"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AlertFilter narrows an alert listing. Zero values mean "any".
type AlertFilter struct {
	Resolved  *bool
	Severity  Severity
	Parameter Parameter
	Limit     int
}
