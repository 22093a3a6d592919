package pump

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/pkg/transport"
)

type fakePublisher struct {
	err  error
	sent []string
}

func (p *fakePublisher) PublishMessage(message string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, message)
	return nil
}

func TestSendCommand(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New()
	d := NewDispatcher(pub, m, zerolog.Nop())

	require.NoError(t, d.SendCommand(context.Background(), "ON"))
	require.NoError(t, d.SendCommand(context.Background(), " off "))
	assert.Equal(t, []string{"ON", "OFF"}, pub.sent)

	last, _, ok := d.LastCommand()
	assert.True(t, ok)
	assert.Equal(t, model.PumpOff, last)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PumpCommands.WithLabelValues("ON", "ok")))
}

func TestSendCommand_Invalid(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, nil, zerolog.Nop())

	for _, s := range []string{"", "AUTO", "1", "ONN"} {
		err := d.SendCommand(context.Background(), s)
		assert.Equal(t, model.KindValidation, model.KindOf(err), s)
	}
	assert.Empty(t, pub.sent)
	_, _, ok := d.LastCommand()
	assert.False(t, ok)
}

func TestSendCommand_TransportDown(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("failed to publish message: %w", transport.ErrNotConnected)}
	d := NewDispatcher(pub, nil, zerolog.Nop())

	err := d.SendCommand(context.Background(), "ON")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.Equal(t, model.KindTransport, model.KindOf(err))
}

func TestSendCommand_OtherPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not authorized")}
	d := NewDispatcher(pub, nil, zerolog.Nop())

	err := d.SendCommand(context.Background(), "OFF")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransportUnavailable))
	assert.Equal(t, model.KindTransport, model.KindOf(err))
}
