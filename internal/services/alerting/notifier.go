package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes new alerts as AlertEvent JSON, keyed by
// user and parameter so one user's alerts stay on one partition.
type KafkaNotifier struct {
	writer  messageWriter
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     zerolog.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log zerolog.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newKafkaNotifier(w, log)
}

func newKafkaNotifier(w messageWriter, log zerolog.Logger) *KafkaNotifier {
	n := &KafkaNotifier{writer: w, timeout: 5 * time.Second, log: log}
	n.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-alerts",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			n.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return n
}

func (n *KafkaNotifier) Notify(ctx context.Context, a model.Alert) error {
	value, err := json.Marshal(toEvent(a))
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err = n.cb.Execute(func() (interface{}, error) {
		return nil, n.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(fmt.Sprintf("%d-%s", a.UserID, a.ParameterName)),
			Value: value,
			Time:  a.CreatedAt,
		})
	})
	if err != nil {
		return model.E(model.KindTransport, "notify alert", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func toEvent(a model.Alert) model.AlertEvent {
	return model.AlertEvent{
		AlertID:           a.ID,
		UserID:            a.UserID,
		PlantAssignmentID: a.PlantAssignmentID,
		Parameter:         string(a.ParameterName),
		Severity:          string(a.Severity),
		Direction:         string(a.Direction),
		CurrentValue:      a.CurrentValue,
		ThresholdValue:    a.ThresholdValue,
		Title:             a.Title,
		Message:           a.Message,
		ActionRequired:    a.ActionRequired,
		ReadingID:         a.SourceReadingID,
		Timestamp:         a.CreatedAt,
	}
}
