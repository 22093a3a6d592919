package alerting

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

// UserLister returns every registered user.
type UserLister interface {
	UserIDs(ctx context.Context) ([]int64, error)
}

// Evaluator is satisfied by *Engine.
type Evaluator interface {
	Evaluate(ctx context.Context, r model.SensorReading, userID int64)
}

type DispatcherConfig struct {
	QueueSize int
	Workers   int
}

// Dispatcher decouples ingestion from alert evaluation with a bounded queue.
// Every dequeued reading is evaluated once per registered user.
type Dispatcher struct {
	users   UserLister
	engine  Evaluator
	jobs    chan model.SensorReading
	workers int
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(users UserLister, engine Evaluator, cfg DispatcherConfig, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		users:   users,
		engine:  engine,
		jobs:    make(chan model.SensorReading, cfg.QueueSize),
		workers: cfg.Workers,
		metrics: m,
		log:     log,
	}
}

// Start launches the workers. They run until Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			for r := range d.jobs {
				d.process(ctx, r)
			}
			d.log.Debug().Int("worker", id).Msg("alert worker stopped")
		}(i)
	}
}

// Enqueue hands r to the workers without blocking. It returns false when the
// queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(r model.SensorReading) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- r:
		return true
	default:
		if d.metrics != nil {
			d.metrics.AlertQueueDropped.Inc()
		}
		d.log.Warn().Int64("reading_id", r.ID).Int("capacity", cap(d.jobs)).Msg("alert queue full, dropping reading")
		return false
	}
}

// Stop rejects new readings, drains the queue and waits for the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, r model.SensorReading) {
	users, err := d.users.UserIDs(ctx)
	if err != nil {
		d.log.Error().Err(err).Int64("reading_id", r.ID).Msg("cannot list users, reading not evaluated")
		return
	}
	for _, uid := range users {
		d.engine.Evaluate(ctx, r, uid)
	}
}
