package messages

import "time"

// AlertEvent is published on the alert notification topic when a new alert is
// created. Delivery channels (push, email) consume it downstream.
type AlertEvent struct {
	AlertID           int64     `json:"alert_id"`
	UserID            int64     `json:"user_id"`
	PlantAssignmentID *int64    `json:"plant_assignment_id,omitempty"`
	Parameter         string    `json:"parameter"`
	Severity          string    `json:"severity"`
	Direction         string    `json:"deviation_direction"`
	CurrentValue      float64   `json:"current_value"`
	ThresholdValue    float64   `json:"threshold_value"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	ActionRequired    string    `json:"action_required"`
	ReadingID         int64     `json:"source_reading_id"`
	Timestamp         time.Time `json:"timestamp"`
}
