// Package pump sends ON/OFF commands to the field pump over MQTT and exposes
// them on a small gRPC service.
package pump

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
	"github.com/LeonardoBeccarini/hydro_monitor/pkg/transport"
)

// ErrTransportUnavailable means the command was valid but the broker
// connection is down. Callers may retry later.
var ErrTransportUnavailable = errors.New("transport unavailable")

const opSend = "send pump command"

// ParseStatus accepts ON or OFF, ignoring surrounding space and case.
func ParseStatus(status string) (model.PumpState, error) {
	s := entities.PumpState(strings.ToUpper(strings.TrimSpace(status)))
	if !s.Valid() {
		return "", model.Validation(opSend, "invalid pump status %q, want ON or OFF", status)
	}
	return s, nil
}

type Dispatcher struct {
	pub     transport.IPublisher
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	last   model.PumpState
	lastAt time.Time
}

func NewDispatcher(pub transport.IPublisher, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, metrics: m, log: log, now: time.Now}
}

// SendCommand validates status and publishes it as the bare string. It does
// not queue: a down transport fails with ErrTransportUnavailable.
func (d *Dispatcher) SendCommand(ctx context.Context, status string) error {
	state, err := ParseStatus(status)
	if err != nil {
		d.count("invalid", "rejected")
		return err
	}
	if err := ctx.Err(); err != nil {
		return model.E(model.KindTransport, opSend, err)
	}

	if err := d.pub.PublishMessage(string(state)); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			d.count(string(state), "unavailable")
			d.log.Warn().Str("status", string(state)).Msg("pump command rejected, transport down")
			return model.E(model.KindTransport, opSend, fmt.Errorf("%w: %w", ErrTransportUnavailable, err))
		}
		d.count(string(state), "error")
		return model.E(model.KindTransport, opSend, err)
	}

	d.mu.Lock()
	d.last, d.lastAt = state, d.now().UTC()
	d.mu.Unlock()
	d.count(string(state), "ok")
	d.log.Info().Str("status", string(state)).Msg("pump command sent")
	return nil
}

// LastCommand returns the last successfully published state.
func (d *Dispatcher) LastCommand() (model.PumpState, time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.lastAt, d.last != ""
}

func (d *Dispatcher) count(status, result string) {
	if d.metrics != nil {
		d.metrics.PumpCommands.WithLabelValues(status, result).Inc()
	}
}
