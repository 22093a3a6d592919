package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

//go:embed schema.sql
var schema string

// Store is the PostgreSQL backed store for readings, profiles, assignments
// and alerts.
type Store struct {
	db *sql.DB
}

// Connect opens and pings the database.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewStore(db), nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// EnsureSchema creates missing tables and indexes. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const readingColumns = `id, water_temp, air_temp, humidity, tds, ph, pump_state, captured_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (model.SensorReading, error) {
	var (
		r    model.SensorReading
		ph   sql.NullFloat64
		pump sql.NullString
	)
	if err := row.Scan(&r.ID, &r.WaterTemp, &r.AirTemp, &r.Humidity, &r.TDS, &ph, &pump, &r.CapturedAt); err != nil {
		return model.SensorReading{}, err
	}
	if ph.Valid {
		v := ph.Float64
		r.PH = &v
	}
	if pump.Valid {
		st := entities.PumpState(pump.String)
		r.PumpState = &st
	}
	r.CapturedAt = r.CapturedAt.UTC()
	return r, nil
}

func (s *Store) InsertReading(ctx context.Context, r *model.SensorReading) error {
	var pump sql.NullString
	if r.PumpState != nil {
		pump = sql.NullString{String: string(*r.PumpState), Valid: true}
	}
	var ph sql.NullFloat64
	if r.PH != nil {
		ph = sql.NullFloat64{Float64: *r.PH, Valid: true}
	}
	query := `
		INSERT INTO sensor_readings (water_temp, air_temp, humidity, tds, ph, pump_state, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query, r.WaterTemp, r.AirTemp, r.Humidity, r.TDS, ph, pump, r.CapturedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (s *Store) LatestReading(ctx context.Context) (model.SensorReading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+readingColumns+` FROM sensor_readings ORDER BY captured_at DESC, id DESC LIMIT 1`)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SensorReading{}, model.ErrNotFound
	}
	if err != nil {
		return model.SensorReading{}, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return r, nil
}

func (s *Store) RecentReadings(ctx context.Context, limit int) ([]model.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingColumns+` FROM sensor_readings ORDER BY captured_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	return collectReadings(rows)
}

func (s *Store) ReadingsBetween(ctx context.Context, from, to time.Time, limit int) ([]model.SensorReading, error) {
	query := `SELECT ` + readingColumns + ` FROM sensor_readings
		WHERE captured_at >= $1 AND captured_at < $2
		ORDER BY captured_at ASC, id ASC`
	args := []any{from, to}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	return collectReadings(rows)
}

func collectReadings(rows *sql.Rows) ([]model.SensorReading, error) {
	defer rows.Close()
	var out []model.SensorReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ActiveAssignments(ctx context.Context, userID int64) ([]model.UserPlantAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, profile_id, growth_phase, planted_at, expected_harvest_at, active
		FROM user_plant_assignments
		WHERE user_id = $1 AND active
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()
	var out []model.UserPlantAssignment
	for rows.Next() {
		var a model.UserPlantAssignment
		var phase string
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProfileID, &phase, &a.PlantedAt, &a.ExpectedHarvestAt, &a.Active); err != nil {
			return nil, err
		}
		a.GrowthPhase = entities.GrowthPhase(phase)
		out = append(out, a)
	}
	return out, rows.Err()
}

const profileColumns = `id, name, ph_min, ph_max, tds_min, tds_max, water_temp_min, water_temp_max,
	air_temp_min, air_temp_max, humidity_min, humidity_max, growth_duration_days`

func (s *Store) Profile(ctx context.Context, profileID int64) (model.PlantProfile, error) {
	var p model.PlantProfile
	o := &p.Ranges
	err := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM plant_profiles WHERE id = $1`, profileID).Scan(
		&p.ID, &p.Name,
		&o.PH.Min, &o.PH.Max, &o.TDS.Min, &o.TDS.Max,
		&o.WaterTemp.Min, &o.WaterTemp.Max, &o.AirTemp.Min, &o.AirTemp.Max,
		&o.Humidity.Min, &o.Humidity.Max, &p.GrowthDurationDays)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlantProfile{}, fmt.Errorf("profile %d: %w", profileID, model.ErrNotFound)
	}
	if err != nil {
		return model.PlantProfile{}, fmt.Errorf("failed to get profile %d: %w", profileID, err)
	}
	return p, nil
}

// UpsertProfile inserts p or updates the ranges of the profile with the same name.
func (s *Store) UpsertProfile(ctx context.Context, p *model.PlantProfile) error {
	o := p.Ranges
	query := `
		INSERT INTO plant_profiles (name, ph_min, ph_max, tds_min, tds_max, water_temp_min, water_temp_max,
			air_temp_min, air_temp_max, humidity_min, humidity_max, growth_duration_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (name) DO UPDATE SET
			ph_min = EXCLUDED.ph_min, ph_max = EXCLUDED.ph_max,
			tds_min = EXCLUDED.tds_min, tds_max = EXCLUDED.tds_max,
			water_temp_min = EXCLUDED.water_temp_min, water_temp_max = EXCLUDED.water_temp_max,
			air_temp_min = EXCLUDED.air_temp_min, air_temp_max = EXCLUDED.air_temp_max,
			humidity_min = EXCLUDED.humidity_min, humidity_max = EXCLUDED.humidity_max,
			growth_duration_days = EXCLUDED.growth_duration_days
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query, p.Name,
		o.PH.Min, o.PH.Max, o.TDS.Min, o.TDS.Max,
		o.WaterTemp.Min, o.WaterTemp.Max, o.AirTemp.Min, o.AirTemp.Max,
		o.Humidity.Min, o.Humidity.Max, p.GrowthDurationDays).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.Name, err)
	}
	return nil
}

const alertColumns = `id, user_id, plant_assignment_id, parameter_name, severity, current_value, threshold_value,
	deviation_direction, title, message, action_required, is_resolved, resolved_at, resolved_by,
	source_reading_id, created_at`

func scanAlert(row rowScanner) (model.Alert, error) {
	var (
		a          model.Alert
		assignment sql.NullInt64
		param      string
		severity   string
		direction  string
		resolvedAt sql.NullTime
		resolvedBy sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &assignment, &param, &severity, &a.CurrentValue, &a.ThresholdValue,
		&direction, &a.Title, &a.Message, &a.ActionRequired, &a.IsResolved, &resolvedAt, &resolvedBy,
		&a.SourceReadingID, &a.CreatedAt)
	if err != nil {
		return model.Alert{}, err
	}
	a.ParameterName = entities.Parameter(param)
	a.Severity = entities.Severity(severity)
	a.Direction = entities.Direction(direction)
	if assignment.Valid {
		v := assignment.Int64
		a.PlantAssignmentID = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		a.ResolvedAt = &t
	}
	if resolvedBy.Valid {
		v := resolvedBy.String
		a.ResolvedBy = &v
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (s *Store) FindOpenAlert(ctx context.Context, userID int64, p model.Parameter) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = $1 AND parameter_name = $2 AND NOT is_resolved LIMIT 1`,
		userID, string(p))
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}
	return &a, nil
}

// InsertAlert relies on alerts_one_open_per_param: a conflicting row makes
// the insert a no-op and false is returned.
func (s *Store) InsertAlert(ctx context.Context, a *model.Alert) (bool, error) {
	var assignment sql.NullInt64
	if a.PlantAssignmentID != nil {
		assignment = sql.NullInt64{Int64: *a.PlantAssignmentID, Valid: true}
	}
	query := `
		INSERT INTO alerts (user_id, plant_assignment_id, parameter_name, severity, current_value, threshold_value,
			deviation_direction, title, message, action_required, source_reading_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, parameter_name) WHERE NOT is_resolved DO NOTHING
		RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		a.UserID, assignment, string(a.ParameterName), string(a.Severity), a.CurrentValue, a.ThresholdValue,
		string(a.Direction), a.Title, a.Message, a.ActionRequired, a.SourceReadingID,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return true, nil
}

func (s *Store) ListAlerts(ctx context.Context, userID int64, f model.AlertFilter) ([]model.Alert, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if f.Resolved != nil {
		args = append(args, *f.Resolved)
		where = append(where, fmt.Sprintf("is_resolved = $%d", len(args)))
	}
	if f.Severity != "" {
		args = append(args, string(f.Severity))
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	if f.Parameter != "" {
		args = append(args, string(f.Parameter))
		where = append(where, fmt.Sprintf("parameter_name = $%d", len(args)))
	}
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()
	out := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAlert(ctx context.Context, alertID int64) (model.Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Alert{}, model.ErrNotFound
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("failed to get alert %d: %w", alertID, err)
	}
	return a, nil
}

// ResolveAlert closes an open alert. An alert that is already resolved is
// returned as stored, keeping the first resolver.
func (s *Store) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string, at time.Time) (model.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE alerts SET is_resolved = TRUE, resolved_at = $2, resolved_by = $3
		WHERE id = $1 AND NOT is_resolved
		RETURNING `+alertColumns, alertID, at, resolvedBy)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s.GetAlert(ctx, alertID)
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("failed to resolve alert %d: %w", alertID, err)
	}
	return a, nil
}
