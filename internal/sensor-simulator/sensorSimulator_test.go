package sensor_simulator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/ingestion"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (p *recordingPublisher) PublishMessage(m string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

func newTestSimulator(maxOn time.Duration) (*SensorSimulator, *recordingPublisher) {
	pub := &recordingPublisher{}
	sim := NewSensorSimulator(pub, NewDataGenerator(7, ambient, 0.1), maxOn, zerolog.Nop())
	sim.now = func() time.Time { return time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC) }
	return sim, pub
}

func TestSimulator_PublishesIngestiblePayload(t *testing.T) {
	sim, pub := newTestSimulator(0)

	require.NoError(t, sim.PublishOnce())
	require.Len(t, pub.msgs, 1)

	payload, err := ingestion.ParsePayload([]byte(pub.msgs[0]))
	require.NoError(t, err)
	require.NotNil(t, payload.Pump)
	assert.Equal(t, "OFF", *payload.Pump)
	assert.NotNil(t, payload.PH)
}

func TestSimulator_PublishError(t *testing.T) {
	sim, pub := newTestSimulator(0)
	pub.err = errors.New("not connected")

	assert.Error(t, sim.PublishOnce())
}

func TestSimulator_HandleCommand(t *testing.T) {
	sim, pub := newTestSimulator(0)

	require.NoError(t, sim.HandleCommand("hydro/pump", []byte(" on\n")))
	assert.Equal(t, entities.PumpOn, sim.Pump())

	require.NoError(t, sim.PublishOnce())
	assert.Contains(t, pub.msgs[0], `"pompa":"ON"`)

	assert.Error(t, sim.HandleCommand("hydro/pump", []byte("MAYBE")))
	assert.Equal(t, entities.PumpOn, sim.Pump())

	require.NoError(t, sim.HandleCommand("hydro/pump", []byte("OFF")))
	assert.Equal(t, entities.PumpOff, sim.Pump())
}

func TestSimulator_AutoOff(t *testing.T) {
	sim, _ := newTestSimulator(20 * time.Millisecond)

	require.NoError(t, sim.HandleCommand("hydro/pump", []byte("ON")))
	assert.Equal(t, entities.PumpOn, sim.Pump())

	assert.Eventually(t, func() bool {
		return sim.Pump() == entities.PumpOff
	}, time.Second, 5*time.Millisecond)
}

func TestSimulator_OffCancelsAutoOff(t *testing.T) {
	sim, _ := newTestSimulator(30 * time.Millisecond)

	require.NoError(t, sim.HandleCommand("hydro/pump", []byte("ON")))
	require.NoError(t, sim.HandleCommand("hydro/pump", []byte("OFF")))
	require.NoError(t, sim.HandleCommand("hydro/pump", []byte("ON")))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, entities.PumpOn, sim.Pump())
	sim.stopTimer()
}
