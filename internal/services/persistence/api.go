package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/aggregation"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/alerting"
)

type ReadingQueries interface {
	Latest(ctx context.Context) (model.SensorReading, error)
	History(ctx context.Context) ([]model.SensorReading, error)
	Hourly(ctx context.Context, date string) ([]aggregation.HourBucket, error)
	Daily(ctx context.Context, days int) ([]model.SensorReading, error)
}

type AlertQueries interface {
	ListAlerts(ctx context.Context, userID int64, f model.AlertFilter) ([]model.Alert, error)
	Resolve(ctx context.Context, userID, alertID int64, resolvedBy string) (model.Alert, error)
}

type StatusReporter interface {
	StatusReport(ctx context.Context, r model.SensorReading, userID int64) ([]alerting.SourceStatus, error)
}

type PumpCommander interface {
	SendCommand(ctx context.Context, status string) error
}

// APIConfig wires the query surface. Nil handlers are not routed.
type APIConfig struct {
	Readings       ReadingQueries
	Alerts         AlertQueries
	Status         StatusReporter
	Pump           PumpCommander
	Health         http.Handler
	Ready          http.Handler
	Metrics        http.Handler
	AllowedOrigins []string
	Timeout        time.Duration
	Log            zerolog.Logger
}

type api struct {
	cfg APIConfig
}

// NewHTTPHandler returns the router wrapped in CORS.
func NewHTTPHandler(cfg APIConfig) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	a := &api{cfg: cfg}

	r := mux.NewRouter()
	r.HandleFunc("/readings/latest", a.latest).Methods(http.MethodGet)
	r.HandleFunc("/readings/history", a.history).Methods(http.MethodGet)
	r.HandleFunc("/readings/hourly", a.hourly).Methods(http.MethodGet)
	r.HandleFunc("/readings/daily", a.daily).Methods(http.MethodGet)
	r.HandleFunc("/users/{userID:[0-9]+}/alerts", a.listAlerts).Methods(http.MethodGet)
	r.HandleFunc("/users/{userID:[0-9]+}/alerts/{alertID:[0-9]+}/resolve", a.resolveAlert).Methods(http.MethodPost)
	r.HandleFunc("/users/{userID:[0-9]+}/status", a.status).Methods(http.MethodGet)
	r.HandleFunc("/pump", a.pump).Methods(http.MethodPost)
	if cfg.Health != nil {
		r.Handle("/healthz", cfg.Health).Methods(http.MethodGet)
	}
	if cfg.Ready != nil {
		r.Handle("/readyz", cfg.Ready).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

func (a *api) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), a.cfg.Timeout)
}

func (a *api) latest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	reading, err := a.cfg.Readings.Latest(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	rs, err := a.cfg.Readings.History(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if rs == nil {
		rs = []model.SensorReading{}
	}
	respondJSON(w, http.StatusOK, rs)
}

func (a *api) hourly(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	buckets, err := a.cfg.Readings.Hourly(ctx, date)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}

func (a *api) daily(w http.ResponseWriter, r *http.Request) {
	days := 0
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			a.fail(w, r, model.Validation("daily", "days must be an integer, got %q", s))
			return
		}
		days = n
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	samples, err := a.cfg.Readings.Daily(ctx, days)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, samples)
}

func (a *api) listAlerts(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(mux.Vars(r)["userID"], 10, 64)
	f, err := alertFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	alerts, err := a.cfg.Alerts.ListAlerts(ctx, userID, f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	respondJSON(w, http.StatusOK, alerts)
}

func alertFilter(r *http.Request) (model.AlertFilter, error) {
	q := r.URL.Query()
	f := model.AlertFilter{
		Severity:  model.Severity(strings.ToLower(q.Get("severity"))),
		Parameter: model.Parameter(q.Get("parameter")),
	}
	if s := q.Get("resolved"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, model.Validation("list alerts", "resolved must be a boolean, got %q", s)
		}
		f.Resolved = &b
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, model.Validation("list alerts", "limit must be an integer, got %q", s)
		}
		f.Limit = n
	}
	return f, nil
}

func (a *api) resolveAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, _ := strconv.ParseInt(vars["userID"], 10, 64)
	alertID, _ := strconv.ParseInt(vars["alertID"], 10, 64)

	var body struct {
		ResolvedBy string `json:"resolved_by"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			a.fail(w, r, model.Validation("resolve alert", "invalid body: %v", err))
			return
		}
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	alert, err := a.cfg.Alerts.Resolve(ctx, userID, alertID, body.ResolvedBy)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(mux.Vars(r)["userID"], 10, 64)
	ctx, cancel := a.ctx(r)
	defer cancel()
	reading, err := a.cfg.Readings.Latest(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	report, err := a.cfg.Status.StatusReport(ctx, reading, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"reading": reading,
		"plants":  report,
	})
}

func (a *api) pump(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, r, model.Validation("send pump command", "invalid body: %v", err))
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.cfg.Pump.SendCommand(ctx, body.Status); err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": strings.ToUpper(strings.TrimSpace(body.Status))})
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, status := classify(err)
	if status >= http.StatusInternalServerError {
		a.cfg.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondJSON(w, status, apiError{Code: code, Message: err.Error()})
}

// classify maps the error taxonomy to HTTP.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		return "forbidden", http.StatusForbidden
	case model.IsKind(err, model.KindValidation):
		return "validation_failed", http.StatusBadRequest
	case model.IsKind(err, model.KindTransport):
		return "transport_unavailable", http.StatusServiceUnavailable
	default:
		return "internal_server_error", http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
