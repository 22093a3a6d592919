package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
	"github.com/LeonardoBeccarini/hydro_monitor/pkg/transport"
)

type SensorSimulator struct {
	mu        sync.Mutex
	pump      model.PumpState
	timer     *time.Timer // auto-off, single timer
	gen       int
	maxOn     time.Duration
	generator *DataGenerator
	publisher transport.IPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewSensorSimulator starts with the pump OFF. A positive maxOn switches the
// pump back OFF after that long without a new command.
func NewSensorSimulator(publisher transport.IPublisher, gen *DataGenerator, maxOn time.Duration, log zerolog.Logger) *SensorSimulator {
	return &SensorSimulator{
		pump:      entities.PumpOff,
		maxOn:     maxOn,
		generator: gen,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Start publishes a reading every interval until ctx is done.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PublishOnce(); err != nil {
				s.log.Warn().Err(err).Msg("publish error")
			}
		}
	}
}

// PublishOnce generates and publishes a single reading.
func (s *SensorSimulator) PublishOnce() error {
	payload := s.generator.Next(s.now().UTC(), s.Pump())
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	s.log.Debug().RawJSON("payload", data).Msg("sensor: pub reading")
	return s.publisher.PublishMessage(string(data))
}

func (s *SensorSimulator) Pump() model.PumpState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pump
}

// HandleCommand is the consumer callback for the command topic. The payload
// is the bare ON or OFF string.
func (s *SensorSimulator) HandleCommand(_ string, payload []byte) error {
	state := entities.PumpState(strings.ToUpper(strings.TrimSpace(string(payload))))
	if !state.Valid() {
		return fmt.Errorf("invalid pump command %q", payload)
	}
	s.apply(state)
	return nil
}

func (s *SensorSimulator) apply(state model.PumpState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a repeated command keeps the running auto-off timer
	if state == s.pump {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pump = state
	s.gen++
	s.log.Info().Str("pump", string(state)).Msg("pump state changed")

	if state == entities.PumpOn && s.maxOn > 0 {
		gen := s.gen
		s.timer = time.AfterFunc(s.maxOn, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.gen != gen {
				return
			}
			s.pump = entities.PumpOff
			s.timer = nil
			s.log.Info().Dur("after", s.maxOn).Msg("pump auto-off")
		})
	}
}

func (s *SensorSimulator) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
