package alerting

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

// DefaultThresholds is the system-wide table used for users without an
// active plant.
func DefaultThresholds() model.OptimalRanges {
	return model.OptimalRanges{
		PH:        model.Range{Min: 5.5, Max: 7.5},
		TDS:       model.Range{Min: 500, Max: 1500},
		WaterTemp: model.Range{Min: 18, Max: 28},
		AirTemp:   model.Range{Min: 20, Max: 30},
		Humidity:  model.Range{Min: 40, Max: 80},
	}
}

// LoadThresholds reads a JSON threshold table. Parameters missing from the
// file keep their default range.
func LoadThresholds(path string) (model.OptimalRanges, error) {
	t := DefaultThresholds()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read thresholds %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return DefaultThresholds(), fmt.Errorf("decode thresholds %s: %w", path, err)
	}
	for _, p := range entities.Parameters {
		r, _ := t.For(p)
		if !r.Valid() {
			return DefaultThresholds(), model.Validation("load thresholds", "%s: min %.2f > max %.2f", p, r.Min, r.Max)
		}
	}
	return t, nil
}
