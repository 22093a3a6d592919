package event

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

type stubConn bool

func (s stubConn) IsConnected() bool { return bool(s) }

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubPump struct{ at time.Time }

func (s stubPump) LastCommand() (model.PumpState, time.Time, bool) { return model.PumpOn, s.at, true }

func serve(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestHealth_Status(t *testing.T) {
	failing := newWriter(&fakePointWriter{err: errors.New("down")}, zerolog.Nop())
	_ = failing.WriteReading(context.Background(), model.SensorReading{})

	tests := []struct {
		name string
		deps HealthDeps
		want string
	}{
		{"ok", HealthDeps{Transport: stubConn(true), Database: stubPinger{}, Cache: stubPinger{}}, "ok"},
		{"mqtt down", HealthDeps{Transport: stubConn(false), Database: stubPinger{}}, "degraded"},
		{"cache down", HealthDeps{Transport: stubConn(true), Database: stubPinger{}, Cache: stubPinger{errors.New("x")}}, "degraded"},
		{"recent mirror error", HealthDeps{Transport: stubConn(true), Database: stubPinger{}, Mirror: failing}, "degraded"},
		{"database down", HealthDeps{Transport: stubConn(true), Database: stubPinger{errors.New("x")}}, "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(NewHealthHandler(tt.deps))
			require.Equal(t, http.StatusOK, rec.Code)
			var st healthStatus
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
			assert.Equal(t, tt.want, st.Status)
		})
	}
}

func TestHealth_ReportsPump(t *testing.T) {
	at := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	rec := serve(NewHealthHandler(HealthDeps{Transport: stubConn(true), Database: stubPinger{}, Pump: stubPump{at}}))

	var st healthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "ON", st.LastPumpCommand)
	require.NotNil(t, st.LastPumpAt)
	assert.True(t, at.Equal(*st.LastPumpAt))
	assert.Equal(t, "disabled", st.MirrorBreaker)
}

func TestReady(t *testing.T) {
	ok := HealthDeps{Transport: stubConn(true), Database: stubPinger{}}
	assert.Equal(t, http.StatusOK, serve(NewReadyHandler(ok, 30*time.Second)).Code)

	down := HealthDeps{Transport: stubConn(false), Database: stubPinger{}}
	rec := serve(NewReadyHandler(down, 30*time.Second))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ready":false}`, rec.Body.String())
}
