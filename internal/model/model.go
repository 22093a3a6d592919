package model

import (
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/messages"
)

// Aliases exposing the common types to the services

type (
	SensorReading       = entities.SensorReading
	PlantProfile        = entities.PlantProfile
	UserPlantAssignment = entities.UserPlantAssignment
	Alert               = entities.Alert
	AlertFilter         = entities.AlertFilter
	Range               = entities.Range
	OptimalRanges       = entities.OptimalRanges
	Parameter           = entities.Parameter
	Severity            = entities.Severity
	Direction           = entities.Direction
	PumpState           = entities.PumpState
	SensorPayload       = messages.SensorPayload
	AlertEvent          = messages.AlertEvent
)

const (
	PumpOn  = entities.PumpOn
	PumpOff = entities.PumpOff
)
