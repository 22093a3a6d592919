// Package ingestion turns sensor messages into persisted readings and hands
// them to the alert queue.
package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

type ReadingStore interface {
	// InsertReading persists r and sets its ID.
	InsertReading(ctx context.Context, r *model.SensorReading) error
}

type LatestCache interface {
	SetLatest(ctx context.Context, r model.SensorReading) error
	// Invalidate drops the cached reading so readers fall back to the store.
	Invalidate(ctx context.Context) error
}

type Mirror interface {
	WriteReading(ctx context.Context, r model.SensorReading) error
}

// Queue receives persisted readings for alert evaluation. Enqueue must not block.
type Queue interface {
	Enqueue(r model.SensorReading) bool
}

type Option func(*Handler)

func WithCache(c LatestCache) Option { return func(h *Handler) { h.cache = c } }

func WithMirror(m Mirror) Option { return func(h *Handler) { h.mirror = m } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

func WithLogger(l zerolog.Logger) Option { return func(h *Handler) { h.log = l } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// WithTimeout bounds the storage work done for one message.
func WithTimeout(d time.Duration) Option { return func(h *Handler) { h.timeout = d } }

type Handler struct {
	store   ReadingStore
	queue   Queue
	cache   LatestCache
	mirror  Mirror
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewHandler(store ReadingStore, queue Queue, opts ...Option) *Handler {
	h := &Handler{
		store:   store,
		queue:   queue,
		log:     zerolog.Nop(),
		now:     time.Now,
		timeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandleMessage is the transport callback for the ingestion topic.
func (h *Handler) HandleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	_, err := h.Ingest(ctx, payload)
	if err != nil {
		h.log.Warn().Err(err).Str("topic", topic).Msg("sensor message dropped")
	}
	return err
}

// Ingest parses, stores and enqueues one payload. A reading that failed to
// persist is never enqueued.
func (h *Handler) Ingest(ctx context.Context, payload []byte) (model.SensorReading, error) {
	p, err := ParsePayload(payload)
	if err != nil {
		h.reject("parse")
		return model.SensorReading{}, err
	}

	r := toReading(p)
	r.CapturedAt = h.now().UTC()
	if err := h.store.InsertReading(ctx, &r); err != nil {
		h.reject("persistence")
		return model.SensorReading{}, model.E(model.KindPersistence, "insert reading", err)
	}
	if h.metrics != nil {
		h.metrics.ReadingsIngested.Inc()
	}

	if h.cache != nil {
		if err := h.cache.SetLatest(ctx, r); err != nil {
			h.log.Warn().Err(err).Int64("reading_id", r.ID).Msg("latest cache update failed")
			if err := h.cache.Invalidate(ctx); err != nil {
				h.log.Error().Err(err).Int64("reading_id", r.ID).Msg("stale latest reading left in cache")
			}
		}
	}
	if h.mirror != nil {
		if err := h.mirror.WriteReading(ctx, r); err != nil {
			h.log.Warn().Err(err).Int64("reading_id", r.ID).Msg("influx mirror write failed")
		}
	}

	if !h.queue.Enqueue(r) {
		h.log.Warn().Int64("reading_id", r.ID).Msg("alert queue full, reading not evaluated")
	}
	h.log.Debug().Int64("reading_id", r.ID).Time("captured_at", r.CapturedAt).Msg("reading ingested")
	return r, nil
}

func (h *Handler) reject(reason string) {
	if h.metrics != nil {
		h.metrics.ReadingsRejected.WithLabelValues(reason).Inc()
	}
}
