package alerting

import (
	"fmt"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

// Text is the human readable part of an alert.
type Text struct {
	Title          string
	Message        string
	ActionRequired string
}

type textEntry struct {
	unit       string
	lowTitle   string
	highTitle  string
	lowAction  string
	highAction string
}

var catalog = map[model.Parameter]textEntry{
	entities.ParamPH: {
		lowTitle:   "pH too low",
		highTitle:  "pH too high",
		lowAction:  "Add pH Up solution in small doses and re-test after 15 minutes.",
		highAction: "Add pH Down solution in small doses and re-test after 15 minutes.",
	},
	entities.ParamTDS: {
		unit:       " ppm",
		lowTitle:   "Nutrient concentration too low",
		highTitle:  "Nutrient concentration too high",
		lowAction:  "Add nutrient concentrate to the reservoir following the feeding chart.",
		highAction: "Dilute the reservoir with fresh water or replace part of the solution.",
	},
	entities.ParamWaterTemp: {
		unit:       " °C",
		lowTitle:   "Water temperature too low",
		highTitle:  "Water temperature too high",
		lowAction:  "Use an aquarium heater or move the reservoir to a warmer spot.",
		highAction: "Shade the reservoir, add frozen water bottles or use a chiller.",
	},
	entities.ParamAirTemp: {
		unit:       " °C",
		lowTitle:   "Air temperature too low",
		highTitle:  "Air temperature too high",
		lowAction:  "Close vents or add heating around the grow area.",
		highAction: "Increase ventilation or shading around the grow area.",
	},
	entities.ParamHumidity: {
		unit:       "%",
		lowTitle:   "Humidity too low",
		highTitle:  "Humidity too high",
		lowAction:  "Run a humidifier or mist the area around the plants.",
		highAction: "Improve air circulation or run a dehumidifier.",
	},
}

// Describe returns the alert text for a breach of p. Unknown parameters get a
// generic text.
func Describe(p model.Parameter, dir model.Direction, current, threshold float64) Text {
	entry, ok := catalog[p]
	if !ok {
		return genericText(p, dir, current, threshold)
	}

	if dir == entities.DirectionHigh {
		return Text{
			Title:          entry.highTitle,
			Message:        fmt.Sprintf("%s is %.2f%s, above the maximum of %.2f%s.", p, current, entry.unit, threshold, entry.unit),
			ActionRequired: entry.highAction,
		}
	}
	return Text{
		Title:          entry.lowTitle,
		Message:        fmt.Sprintf("%s is %.2f%s, below the minimum of %.2f%s.", p, current, entry.unit, threshold, entry.unit),
		ActionRequired: entry.lowAction,
	}
}

func genericText(p model.Parameter, dir model.Direction, current, threshold float64) Text {
	return Text{
		Title:          fmt.Sprintf("%s out of range", p),
		Message:        fmt.Sprintf("%s is %.2f, %s the threshold of %.2f.", p, current, relation(dir), threshold),
		ActionRequired: "Check the system and bring the value back into its optimal range.",
	}
}

func relation(dir model.Direction) string {
	if dir == entities.DirectionHigh {
		return "above"
	}
	return "below"
}
