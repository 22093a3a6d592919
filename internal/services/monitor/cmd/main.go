package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/aggregation"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/alerting"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/event"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/ingestion"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/persistence"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/services/pump"
	"github.com/LeonardoBeccarini/hydro_monitor/pkg/transport"
)

func main() {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("monitor stopped")
	}
}

func run(cfg *Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// === Postgres ===
	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStart()
	store, err := persistence.Connect(startCtx, cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(startCtx); err != nil {
		return err
	}
	if err := persistence.SeedProfiles(startCtx, store, persistence.DefaultProfiles(), log); err != nil {
		return fmt.Errorf("seed profiles: %w", err)
	}

	// === Redis ===
	var (
		ingestOpts = []ingestion.Option{
			ingestion.WithMetrics(m),
			ingestion.WithLogger(log.With().Str("component", "ingestion").Logger()),
		}
		latestCache aggregation.Cache
		cachePinger event.Pinger
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		cache := persistence.NewLatestCache(rdb, cfg.Redis.LatestTTL)
		if err := cache.Ping(startCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable, cache calls will fail until it is")
		}
		ingestOpts = append(ingestOpts, ingestion.WithCache(cache))
		latestCache, cachePinger = cache, cache
	}

	// === InfluxDB ===
	var mirror *event.Writer
	if cfg.Influx.Token != "" {
		influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer influx.Close()
		mirror = event.NewWriter(influx, cfg.Influx.Org, cfg.Influx.Bucket, log.With().Str("component", "influx").Logger())
		ingestOpts = append(ingestOpts, ingestion.WithMirror(mirror))
	}

	// === Alerting ===
	thresholds := alerting.DefaultThresholds()
	if cfg.Alerting.ThresholdsPath != "" {
		t, err := alerting.LoadThresholds(cfg.Alerting.ThresholdsPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Alerting.ThresholdsPath).Msg("using default thresholds")
		}
		thresholds = t
	}
	alertLog := log.With().Str("component", "alerting").Logger()
	engineOpts := []alerting.Option{
		alerting.WithDefaults(thresholds),
		alerting.WithMetrics(m),
		alerting.WithLogger(alertLog),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		notifier := alerting.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic, alertLog)
		defer notifier.Close()
		engineOpts = append(engineOpts, alerting.WithNotifier(notifier))
	}
	engine := alerting.NewEngine(store, engineOpts...)

	// workers outlive the signal context so the queue can drain on shutdown
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	dispatcher := alerting.NewDispatcher(store, engine, alerting.DispatcherConfig{
		QueueSize: cfg.Alerting.QueueSize,
		Workers:   cfg.Alerting.Workers,
	}, m, alertLog)
	dispatcher.Start(workCtx)

	// === MQTT ===
	mqttLog := log.With().Str("component", "transport").Logger()
	client := transport.New(transport.Config{
		Host:           cfg.MQTT.Host,
		Port:           cfg.MQTT.Port,
		User:           cfg.MQTT.User,
		Password:       cfg.MQTT.Password,
		ClientIDPrefix: cfg.MQTT.ClientIDPrefix,
		SubscribeTopic: cfg.MQTT.SensorTopic,
		QoS:            byte(cfg.MQTT.QoS),
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		ReconnectDelay: cfg.MQTT.ReconnectDelay,
		MaxReconnects:  cfg.MQTT.MaxReconnects,
	}, transport.WithLogger(mqttLog), transport.WithReconnectCounter(m.TransportReconnects))
	m.TrackTransport(client.IsConnected)

	ingest := ingestion.NewHandler(store, dispatcher, ingestOpts...)
	transport.NewConsumer(client, ingest.HandleMessage, mqttLog)
	if err := client.Connect(ctx); err != nil {
		log.Warn().Err(err).Str("broker", cfg.MQTT.Host).Msg("initial broker connection failed, retrying in background")
	}

	pumpDispatcher := pump.NewDispatcher(
		transport.NewPublisher(client, cfg.MQTT.CommandTopic, mqttLog),
		m, log.With().Str("component", "pump").Logger())

	// === gRPC ===
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}
	grpcServer := grpc.NewServer()
	pump.RegisterPumpServiceServer(grpcServer, pump.NewGrpcHandler(pumpDispatcher))

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC listening")
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// === HTTP ===
	health := event.HealthDeps{
		Transport: client,
		Database:  store,
		Cache:     cachePinger,
		Mirror:    mirror,
		Pump:      pumpDispatcher,
	}
	hs := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: persistence.NewHTTPHandler(persistence.APIConfig{
			Readings:       aggregation.NewService(store, latestCache, log.With().Str("component", "aggregation").Logger()),
			Alerts:         alerting.NewService(store),
			Status:         engine,
			Pump:           pumpDispatcher,
			Health:         event.NewHealthHandler(health),
			Ready:          event.NewReadyHandler(health, 30*time.Second),
			Metrics:        m.Handler(),
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Timeout:        cfg.HTTP.RequestTimeout,
			Log:            log.With().Str("component", "http").Logger(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	grpcServer.GracefulStop()
	client.Close()
	dispatcher.Stop()
	return runErr
}
