package event

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

type ConnChecker interface {
	IsConnected() bool
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type PumpReporter interface {
	LastCommand() (model.PumpState, time.Time, bool)
}

// HealthDeps lists what the probes look at. Cache, Mirror and Pump are optional.
type HealthDeps struct {
	Transport ConnChecker
	Database  Pinger
	Cache     Pinger
	Mirror    *Writer
	Pump      PumpReporter
}

type healthStatus struct {
	Status          string     `json:"status"`
	MQTTConnected   bool       `json:"mqtt_connected"`
	DatabaseOK      bool       `json:"database_ok"`
	CacheOK         *bool      `json:"cache_ok,omitempty"`
	MirrorBreaker   string     `json:"mirror_breaker"`
	MirrorWrites    int64      `json:"mirror_writes"`
	LastWriteErrorS float64    `json:"last_write_error_age_sec"`
	LastPumpCommand string     `json:"last_pump_command,omitempty"`
	LastPumpAt      *time.Time `json:"last_pump_command_at,omitempty"`
}

type healthHandler struct {
	deps    HealthDeps
	timeout time.Duration
}

func NewHealthHandler(deps HealthDeps) http.Handler {
	return &healthHandler{deps: deps, timeout: 2 * time.Second}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	d := h.deps
	st := healthStatus{
		MQTTConnected:   d.Transport != nil && d.Transport.IsConnected(),
		DatabaseOK:      d.Database != nil && d.Database.Ping(ctx) == nil,
		MirrorBreaker:   d.Mirror.BreakerState(),
		MirrorWrites:    d.Mirror.Written(),
		LastWriteErrorS: d.Mirror.LastErrorAge().Seconds(),
	}
	cacheOK := true
	if d.Cache != nil {
		cacheOK = d.Cache.Ping(ctx) == nil
		st.CacheOK = &cacheOK
	}
	if d.Pump != nil {
		if state, at, ok := d.Pump.LastCommand(); ok {
			st.LastPumpCommand = string(state)
			st.LastPumpAt = &at
		}
	}

	// the database is the only hard dependency of ingestion
	switch {
	case !st.DatabaseOK:
		st.Status = "down"
	case st.MQTTConnected && cacheOK && d.Mirror.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	default:
		st.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, st)
}

// readyHandler answers 200 only when every dependency is usable.
type readyHandler struct {
	deps     HealthDeps
	minError time.Duration
	timeout  time.Duration
}

func NewReadyHandler(deps HealthDeps, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{deps: deps, minError: minOkErrorAge, timeout: 2 * time.Second}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	d := h.deps
	ready := d.Transport != nil && d.Transport.IsConnected() &&
		d.Database != nil && d.Database.Ping(ctx) == nil &&
		d.Mirror.LastErrorAge() > h.minError

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, struct {
		Ready bool `json:"ready"`
	}{ready})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
