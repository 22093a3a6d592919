package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	sensorSimulator "github.com/LeonardoBeccarini/hydro_monitor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/hydro_monitor/pkg/transport"
)

func main() {
	_ = godotenv.Load()

	host := flag.String("host", envOr("MQTT_HOST", "localhost"), "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	user := flag.String("user", envOr("MQTT_USER", ""), "MQTT user")
	pass := flag.String("password", envOr("MQTT_PASSWORD", ""), "MQTT password")
	sensorTopic := flag.String("sensor-topic", "hydro/sensor", "topic readings are published on")
	commandTopic := flag.String("command-topic", "hydro/pump", "topic pump commands are received on")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	maxOn := flag.Duration("max-on", 15*time.Minute, "switch the pump OFF after this long, 0 to disable")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	airTemp := flag.Float64("air-temp", 25, "ambient air temperature (°C)")
	humidity := flag.Float64("humidity", 60, "ambient relative humidity (%)")
	noise := flag.Float64("noise", 0.2, "per-sample jitter")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "sensor-simulator").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := transport.New(transport.Config{
		Host:           *host,
		Port:           *port,
		User:           *user,
		Password:       *pass,
		ClientIDPrefix: "hydro-sensor",
		SubscribeTopic: *commandTopic,
		QoS:            1,
	}, transport.WithLogger(log))
	defer client.Close()

	generator := sensorSimulator.NewDataGenerator(*seed, sensorSimulator.Conditions{AirTemp: *airTemp, Humidity: *humidity}, *noise)
	sim := sensorSimulator.NewSensorSimulator(transport.NewPublisher(client, *sensorTopic, log), generator, *maxOn, log)
	transport.NewConsumer(client, sim.HandleCommand, log)

	if err := client.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("broker not reachable yet, retrying in background")
	}
	log.Info().Str("topic", *sensorTopic).Dur("interval", *interval).Msg("sensor simulator started")
	sim.Start(ctx, *interval)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
