// Package alerting evaluates readings against plant and default thresholds
// and keeps at most one open alert per user and parameter.
package alerting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
	"github.com/LeonardoBeccarini/hydro_monitor/pkg/dedup"
)

// Store is the persistence the engine needs.
type Store interface {
	ActiveAssignments(ctx context.Context, userID int64) ([]model.UserPlantAssignment, error)
	Profile(ctx context.Context, profileID int64) (model.PlantProfile, error)
	// FindOpenAlert returns nil when the user has no unresolved alert for p.
	FindOpenAlert(ctx context.Context, userID int64, p model.Parameter) (*model.Alert, error)
	// InsertAlert sets ID and CreatedAt. It returns false when an unresolved
	// alert for the same user and parameter already exists.
	InsertAlert(ctx context.Context, a *model.Alert) (bool, error)
}

// Notifier announces newly created alerts.
type Notifier interface {
	Notify(ctx context.Context, a model.Alert) error
}

type Option func(*Engine)

// WithDefaults replaces the system-wide threshold table.
func WithDefaults(t model.OptimalRanges) Option { return func(e *Engine) { e.defaults = t } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

type Engine struct {
	store    Store
	defaults model.OptimalRanges
	locks    *dedup.KeyedMutex
	notifier Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		defaults: DefaultThresholds(),
		locks:    dedup.New(),
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// thresholdSource is one set of ranges a reading is checked against.
type thresholdSource struct {
	assignmentID *int64
	profileName  string
	ranges       model.OptimalRanges
}

// Evaluate checks r for userID and only logs failures.
func (e *Engine) Evaluate(ctx context.Context, r model.SensorReading, userID int64) {
	if _, err := e.EvaluateReading(ctx, r, userID); err != nil {
		e.log.Error().Err(err).Int64("user_id", userID).Int64("reading_id", r.ID).Msg("alert evaluation failed")
	}
}

// EvaluateReading checks r against every active plant of userID, or the
// default table when there is none, and returns the alerts it created.
// Per-parameter failures are logged and do not stop the other checks.
func (e *Engine) EvaluateReading(ctx context.Context, r model.SensorReading, userID int64) ([]model.Alert, error) {
	sources, err := e.sources(ctx, userID)
	if err != nil {
		return nil, err
	}

	var created []model.Alert
	for _, src := range sources {
		for _, p := range entities.Parameters {
			a, err := e.checkParameter(ctx, r, userID, src, p)
			if err != nil {
				e.evaluationError()
				e.log.Error().Err(err).
					Int64("user_id", userID).
					Str("parameter", string(p)).
					Str("profile", src.profileName).
					Msg("parameter check failed")
				continue
			}
			if a != nil {
				created = append(created, *a)
			}
		}
	}

	for _, a := range created {
		e.notify(ctx, a)
	}
	return created, nil
}

func (e *Engine) sources(ctx context.Context, userID int64) ([]thresholdSource, error) {
	assignments, err := e.store.ActiveAssignments(ctx, userID)
	if err != nil {
		return nil, model.E(model.KindPersistence, "load assignments", err)
	}

	var out []thresholdSource
	for _, a := range assignments {
		profile, err := e.store.Profile(ctx, a.ProfileID)
		if err != nil {
			e.evaluationError()
			e.log.Warn().Err(err).
				Int64("user_id", userID).
				Int64("assignment_id", a.ID).
				Int64("profile_id", a.ProfileID).
				Msg("profile lookup failed, skipping assignment")
			continue
		}
		id := a.ID
		out = append(out, thresholdSource{assignmentID: &id, profileName: profile.Name, ranges: profile.Ranges})
	}
	if len(out) == 0 {
		out = append(out, thresholdSource{profileName: "default", ranges: e.defaults})
	}
	return out, nil
}

func (e *Engine) checkParameter(ctx context.Context, r model.SensorReading, userID int64, src thresholdSource, p model.Parameter) (a *model.Alert, err error) {
	op := "check " + string(p)
	defer func() {
		if rec := recover(); rec != nil {
			a, err = nil, model.E(model.KindEvaluation, op, fmt.Errorf("panic: %v", rec))
		}
	}()

	v := r.Value(p)
	if v == nil {
		return nil, nil
	}
	rng, ok := src.ranges.For(p)
	if !ok {
		return nil, model.E(model.KindEvaluation, op, fmt.Errorf("no range for parameter"))
	}
	if !rng.Valid() {
		return nil, model.E(model.KindEvaluation, op, fmt.Errorf("malformed range: min %.2f > max %.2f", rng.Min, rng.Max))
	}
	if rng.Contains(*v) {
		return nil, nil
	}

	dir, threshold := entities.DirectionLow, rng.Min
	if *v > rng.Max {
		dir, threshold = entities.DirectionHigh, rng.Max
	}
	return e.raise(ctx, r, userID, src, p, *v, threshold, dir)
}

// raise creates the alert unless one is already open. The lookup and the
// insert run under a per-(user, parameter) lock.
func (e *Engine) raise(ctx context.Context, r model.SensorReading, userID int64, src thresholdSource, p model.Parameter, current, threshold float64, dir model.Direction) (*model.Alert, error) {
	unlock := e.locks.Lock(lockKey(userID, p))
	defer unlock()

	open, err := e.store.FindOpenAlert(ctx, userID, p)
	if err != nil {
		return nil, model.E(model.KindPersistence, "find open alert", err)
	}
	if open != nil {
		e.suppressed(p)
		e.log.Debug().Int64("user_id", userID).Str("parameter", string(p)).Int64("open_alert_id", open.ID).Msg("open alert exists, breach suppressed")
		return nil, nil
	}

	text := Describe(p, dir, current, threshold)
	a := &model.Alert{
		UserID:            userID,
		PlantAssignmentID: src.assignmentID,
		ParameterName:     p,
		Severity:          ClassifySeverity(current, threshold),
		CurrentValue:      current,
		ThresholdValue:    threshold,
		Direction:         dir,
		Title:             text.Title,
		Message:           text.Message,
		ActionRequired:    text.ActionRequired,
		SourceReadingID:   r.ID,
	}
	inserted, err := e.store.InsertAlert(ctx, a)
	if err != nil {
		return nil, model.E(model.KindPersistence, "insert alert", err)
	}
	if !inserted {
		e.suppressed(p)
		return nil, nil
	}

	if e.metrics != nil {
		e.metrics.AlertsCreated.WithLabelValues(string(p), string(a.Severity)).Inc()
	}
	e.log.Info().
		Int64("alert_id", a.ID).
		Int64("user_id", userID).
		Str("parameter", string(p)).
		Str("severity", string(a.Severity)).
		Str("direction", string(dir)).
		Float64("value", current).
		Float64("threshold", threshold).
		Msg("alert created")
	return a, nil
}

func (e *Engine) notify(ctx context.Context, a model.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, a); err != nil {
		e.log.Warn().Err(err).Int64("alert_id", a.ID).Msg("alert notification failed")
	}
}

// StatusReport grades the reading against each threshold source of userID.
func (e *Engine) StatusReport(ctx context.Context, r model.SensorReading, userID int64) ([]SourceStatus, error) {
	sources, err := e.sources(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SourceStatus, 0, len(sources))
	for _, src := range sources {
		st := SourceStatus{AssignmentID: src.assignmentID, Profile: src.profileName}
		for _, p := range entities.Parameters {
			ps := ParameterState{Parameter: p, Value: r.Value(p), State: "unknown"}
			rng, _ := src.ranges.For(p)
			ps.Range = rng
			if ps.Value != nil && rng.Valid() {
				as := ParameterStatus(*ps.Value, rng, DefaultMarginPct)
				ps.Severity, ps.Direction = as.Severity, as.Direction
				switch {
				case as.Optimal:
					ps.State = "optimal"
				case as.Breach:
					ps.State = "out_of_range"
				default:
					ps.State = "warning"
				}
			}
			st.Parameters = append(st.Parameters, ps)
		}
		out = append(out, st)
	}
	return out, nil
}

type SourceStatus struct {
	AssignmentID *int64           `json:"plant_assignment_id"`
	Profile      string           `json:"profile"`
	Parameters   []ParameterState `json:"parameters"`
}

type ParameterState struct {
	Parameter model.Parameter `json:"parameter"`
	Value     *float64        `json:"value"`
	Range     model.Range     `json:"range"`
	State     string          `json:"state"`
	Severity  model.Severity  `json:"severity,omitempty"`
	Direction model.Direction `json:"direction,omitempty"`
}

func (e *Engine) evaluationError() {
	if e.metrics != nil {
		e.metrics.EvaluationErrors.Inc()
	}
}

func (e *Engine) suppressed(p model.Parameter) {
	if e.metrics != nil {
		e.metrics.AlertsSuppressed.WithLabelValues(string(p)).Inc()
	}
}

func lockKey(userID int64, p model.Parameter) string {
	return strconv.FormatInt(userID, 10) + "|" + string(p)
}
