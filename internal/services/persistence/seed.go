package persistence

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

// ProfileUpserter is satisfied by *Store.
type ProfileUpserter interface {
	UpsertProfile(ctx context.Context, p *model.PlantProfile) error
}

// DefaultProfiles is the catalogue seeded at startup.
func DefaultProfiles() []model.PlantProfile {
	return []model.PlantProfile{
		{
			Name: "lettuce",
			Ranges: model.OptimalRanges{
				PH:        model.Range{Min: 5.5, Max: 6.5},
				TDS:       model.Range{Min: 560, Max: 840},
				WaterTemp: model.Range{Min: 18, Max: 24},
				AirTemp:   model.Range{Min: 15, Max: 24},
				Humidity:  model.Range{Min: 50, Max: 70},
			},
			GrowthDurationDays: 45,
		},
		{
			Name: "tomato",
			Ranges: model.OptimalRanges{
				PH:        model.Range{Min: 5.5, Max: 6.5},
				TDS:       model.Range{Min: 1400, Max: 3500},
				WaterTemp: model.Range{Min: 18, Max: 26},
				AirTemp:   model.Range{Min: 18, Max: 29},
				Humidity:  model.Range{Min: 60, Max: 80},
			},
			GrowthDurationDays: 90,
		},
		{
			Name: "basil",
			Ranges: model.OptimalRanges{
				PH:        model.Range{Min: 5.5, Max: 6.5},
				TDS:       model.Range{Min: 700, Max: 1120},
				WaterTemp: model.Range{Min: 18, Max: 26},
				AirTemp:   model.Range{Min: 20, Max: 30},
				Humidity:  model.Range{Min: 40, Max: 60},
			},
			GrowthDurationDays: 60,
		},
		{
			Name: "strawberry",
			Ranges: model.OptimalRanges{
				PH:        model.Range{Min: 5.5, Max: 6.2},
				TDS:       model.Range{Min: 500, Max: 1000},
				WaterTemp: model.Range{Min: 18, Max: 24},
				AirTemp:   model.Range{Min: 15, Max: 26},
				Humidity:  model.Range{Min: 60, Max: 75},
			},
			GrowthDurationDays: 120,
		},
	}
}

// SeedProfiles upserts profiles by name. Running it twice changes nothing.
func SeedProfiles(ctx context.Context, store ProfileUpserter, profiles []model.PlantProfile, log zerolog.Logger) error {
	for i := range profiles {
		if err := store.UpsertProfile(ctx, &profiles[i]); err != nil {
			return err
		}
		log.Debug().Str("profile", profiles[i].Name).Int64("id", profiles[i].ID).Msg("plant profile seeded")
	}
	log.Info().Int("count", len(profiles)).Msg("plant profiles seeded")
	return nil
}
