package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

type fakeWriter struct {
	err  error
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func sampleAlert() model.Alert {
	assignment := int64(70)
	return model.Alert{
		ID:                12,
		UserID:            7,
		PlantAssignmentID: &assignment,
		ParameterName:     entities.ParamTDS,
		Severity:          entities.SeverityHigh,
		CurrentValue:      1700,
		ThresholdValue:    1500,
		Direction:         entities.DirectionHigh,
		Title:             "Nutrient concentration too high",
		SourceReadingID:   99,
		CreatedAt:         time.Date(2025, 1, 15, 14, 32, 0, 0, time.UTC),
	}
}

func TestKafkaNotifier_PublishesEvent(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, zerolog.Nop())

	require.NoError(t, n.Notify(context.Background(), sampleAlert()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "7-TDS", string(w.msgs[0].Key))

	var ev model.AlertEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, int64(12), ev.AlertID)
	assert.Equal(t, "TDS", ev.Parameter)
	assert.Equal(t, "high", ev.Direction)
	assert.Equal(t, int64(99), ev.ReadingID)
	require.NotNil(t, ev.PlantAssignmentID)
	assert.Equal(t, int64(70), *ev.PlantAssignmentID)
}

func TestKafkaNotifier_BreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unreachable")}
	n := newKafkaNotifier(w, zerolog.Nop())

	for i := 0; i < 3; i++ {
		err := n.Notify(context.Background(), sampleAlert())
		require.Error(t, err)
		assert.Equal(t, model.KindTransport, model.KindOf(err))
	}
	err := n.Notify(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
