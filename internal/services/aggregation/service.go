// Package aggregation answers read-time queries over stored readings. Nothing
// here is materialised; every call recomputes from the store.
package aggregation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

const (
	HistoryLimit     = 1000
	DailyScanLimit   = 5000
	DefaultDailyDays = 30
	dateLayout       = "2006-01-02"
)

type Store interface {
	// LatestReading returns model.ErrNotFound when nothing was ingested yet.
	LatestReading(ctx context.Context) (model.SensorReading, error)
	// RecentReadings returns at most limit readings, newest first.
	RecentReadings(ctx context.Context, limit int) ([]model.SensorReading, error)
	// ReadingsBetween returns readings with from <= captured_at < to in
	// ascending order, at most limit when limit > 0.
	ReadingsBetween(ctx context.Context, from, to time.Time, limit int) ([]model.SensorReading, error)
}

// Cache holds the most recent reading.
type Cache interface {
	Latest(ctx context.Context) (model.SensorReading, bool, error)
}

// HourBucket is one hour-of-day slot of the hourly view.
type HourBucket struct {
	Hour        string    `json:"hour"`
	WaterTemp   *Decimal2 `json:"water_temp"`
	AirTemp     *Decimal2 `json:"air_temp"`
	Humidity    *Decimal2 `json:"humidity"`
	PH          *Decimal2 `json:"ph"`
	TDS         *int64    `json:"tds"`
	RecordCount int       `json:"record_count"`
}

type Service struct {
	store Store
	cache Cache
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store Store, cache Cache, log zerolog.Logger) *Service {
	return &Service{store: store, cache: cache, log: log, now: time.Now}
}

// Latest serves the cached reading when there is one.
func (s *Service) Latest(ctx context.Context) (model.SensorReading, error) {
	if s.cache != nil {
		r, ok, err := s.cache.Latest(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("latest cache read failed, using store")
		} else if ok {
			return r, nil
		}
	}
	r, err := s.store.LatestReading(ctx)
	if err != nil {
		return model.SensorReading{}, model.E(model.KindPersistence, "latest reading", err)
	}
	return r, nil
}

// History returns the last HistoryLimit readings, oldest first.
func (s *Service) History(ctx context.Context) ([]model.SensorReading, error) {
	rs, err := s.store.RecentReadings(ctx, HistoryLimit)
	if err != nil {
		return nil, model.E(model.KindPersistence, "history", err)
	}
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return rs, nil
}

type accumulator struct {
	sum   [5]float64
	n     [5]int
	count int
}

const (
	idxWaterTemp = iota
	idxAirTemp
	idxHumidity
	idxPH
	idxTDS
)

func (a *accumulator) add(r model.SensorReading) {
	a.count++
	a.put(idxWaterTemp, &r.WaterTemp)
	a.put(idxAirTemp, &r.AirTemp)
	a.put(idxHumidity, &r.Humidity)
	a.put(idxPH, r.PH)
	a.put(idxTDS, &r.TDS)
}

func (a *accumulator) put(i int, v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	a.sum[i] += *v
	a.n[i]++
}

func (a *accumulator) mean(i int) (float64, bool) {
	if a.n[i] == 0 {
		return 0, false
	}
	return a.sum[i] / float64(a.n[i]), true
}

func (a *accumulator) decimal(i int) *Decimal2 {
	m, ok := a.mean(i)
	if !ok || math.IsInf(m, 0) {
		return nil
	}
	d := round2(m)
	return &d
}

// Hourly buckets the readings of one UTC calendar day by hour of day. All 24
// buckets are returned; empty ones carry nulls and a zero record count.
func (s *Service) Hourly(ctx context.Context, date string) ([]HourBucket, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, model.Validation("hourly", "invalid date %q, want YYYY-MM-DD", date)
	}
	rs, err := s.store.ReadingsBetween(ctx, day, day.Add(24*time.Hour), 0)
	if err != nil {
		return nil, model.E(model.KindPersistence, "hourly", err)
	}

	var acc [24]accumulator
	for _, r := range rs {
		acc[r.CapturedAt.UTC().Hour()].add(r)
	}

	out := make([]HourBucket, 24)
	for h := range out {
		a := &acc[h]
		b := HourBucket{
			Hour:        fmt.Sprintf("%02d:00", h),
			WaterTemp:   a.decimal(idxWaterTemp),
			AirTemp:     a.decimal(idxAirTemp),
			Humidity:    a.decimal(idxHumidity),
			PH:          a.decimal(idxPH),
			RecordCount: a.count,
		}
		if m, ok := a.mean(idxTDS); ok && !math.IsInf(m, 0) {
			tds := int64(math.Round(m))
			b.TDS = &tds
		}
		out[h] = b
	}
	return out, nil
}

// Daily keeps the first reading of each UTC day in the trailing window.
// days == 0 means DefaultDailyDays.
func (s *Service) Daily(ctx context.Context, days int) ([]model.SensorReading, error) {
	if days < 0 {
		return nil, model.Validation("daily", "days must not be negative, got %d", days)
	}
	if days == 0 {
		days = DefaultDailyDays
	}
	now := s.now().UTC()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	rs, err := s.store.ReadingsBetween(ctx, since, now.Add(time.Nanosecond), DailyScanLimit)
	if err != nil {
		return nil, model.E(model.KindPersistence, "daily", err)
	}

	out := make([]model.SensorReading, 0, days+1)
	seen := make(map[string]bool, days+1)
	for _, r := range rs {
		day := r.CapturedAt.UTC().Format(dateLayout)
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, r)
	}
	return out, nil
}
