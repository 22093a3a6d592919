package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer mirrors readings to InfluxDB and tracks the last write error for
// /healthz and /readyz.
type Writer struct {
	api     pointWriter
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

func NewWriter(client influxdb2.Client, org, bucket string, log zerolog.Logger) *Writer {
	return newWriter(client.WriteAPIBlocking(org, bucket), log)
}

func newWriter(pw pointWriter, log zerolog.Logger) *Writer {
	w := &Writer{api: pw, timeout: 3 * time.Second, log: log, now: time.Now}
	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "influx-mirror",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return w
}

// WriteReading writes one point. While the breaker is open the write is
// skipped and gobreaker.ErrOpenState is returned.
func (w *Writer) WriteReading(ctx context.Context, r model.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.api.WritePoint(ctx, ReadingToPoint(r))
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.lastErr = w.now()
		return model.E(model.KindPersistence, "mirror reading", fmt.Errorf("influx write: %w", err))
	}
	w.written++
	return nil
}

// LastErrorAge reports how long ago the last write failed. A writer that
// never failed, or a nil writer, reports a very large age.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	if t.IsZero() {
		return 99999 * time.Hour
	}
	return w.now().Sub(t)
}

func (w *Writer) Written() int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}

func (w *Writer) BreakerState() string {
	if w == nil {
		return "disabled"
	}
	return w.cb.State().String()
}
