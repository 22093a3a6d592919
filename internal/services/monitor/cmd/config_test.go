package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hydro/sensor", cfg.MQTT.SensorTopic)
	assert.Equal(t, "hydro/pump", cfg.MQTT.CommandTopic)
	assert.Equal(t, 4*time.Second, cfg.MQTT.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.MQTT.ReconnectDelay)
	assert.Equal(t, 5, cfg.MQTT.MaxReconnects)
	assert.Equal(t, 256, cfg.Alerting.QueueSize)
	assert.Equal(t, 1, cfg.Alerting.Workers)
	assert.Equal(t, "hydro.alerts", cfg.Kafka.AlertsTopic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_RECONNECT_DELAY", "2s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "http://a.local,http://b.local")
	t.Setenv("ALERT_WORKERS", "4")
	t.Setenv("DB_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, 2*time.Second, cfg.MQTT.ReconnectDelay)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 4, cfg.Alerting.Workers)
	assert.Contains(t, cfg.Postgres.DSN(), "host=db port=5432")
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("MQTT_PORT", "not-a-port")
	t.Setenv("MQTT_CONNECT_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, 4*time.Second, cfg.MQTT.ConnectTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"MQTT_QOS":         "3",
		"ALERT_QUEUE_SIZE": "0",
		"ALERT_WORKERS":    "-1",
		"LOG_LEVEL":        "loud",
		"LOG_FORMAT":       "xml",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	l := newLogger(LogConfig{Level: "warn", Format: "json"})
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())
}
