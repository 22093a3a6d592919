package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Log      LogConfig
	MQTT     MQTTConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Influx   InfluxConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Alerting AlertingConfig
}

type LogConfig struct {
	Level  string
	Format string // json | console
}

type MQTTConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	ClientIDPrefix string
	SensorTopic    string
	CommandTopic   string
	QoS            int
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// RedisConfig with an empty Addr disables the latest-reading cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	LatestTTL time.Duration
}

// KafkaConfig with no brokers disables alert notifications.
type KafkaConfig struct {
	Brokers     []string
	AlertsTopic string
}

// InfluxConfig with an empty token disables the reading mirror.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration
}

type GRPCConfig struct {
	Addr string
}

type AlertingConfig struct {
	QueueSize      int
	Workers        int
	ThresholdsPath string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
		MQTT: MQTTConfig{
			Host:           getenv("MQTT_HOST", "localhost"),
			Port:           getenvInt("MQTT_PORT", 1883),
			User:           getenv("MQTT_USER", ""),
			Password:       getenv("MQTT_PASSWORD", ""),
			ClientIDPrefix: getenv("MQTT_CLIENT_ID_PREFIX", "hydro-monitor"),
			SensorTopic:    getenv("MQTT_SENSOR_TOPIC", "hydro/sensor"),
			CommandTopic:   getenv("MQTT_COMMAND_TOPIC", "hydro/pump"),
			QoS:            getenvInt("MQTT_QOS", 1),
			ConnectTimeout: getenvDuration("MQTT_CONNECT_TIMEOUT", 4*time.Second),
			ReconnectDelay: getenvDuration("MQTT_RECONNECT_DELAY", 5*time.Second),
			MaxReconnects:  getenvInt("MQTT_MAX_RECONNECTS", 5),
		},
		Postgres: PostgresConfig{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenvInt("DB_PORT", 5432),
			User:     getenv("DB_USER", "hydro"),
			Password: getenv("DB_PASSWORD", "hydro"),
			DBName:   getenv("DB_NAME", "hydro"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getenv("REDIS_ADDR", ""),
			Password:  getenv("REDIS_PASSWORD", ""),
			DB:        getenvInt("REDIS_DB", 0),
			LatestTTL: getenvDuration("REDIS_LATEST_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     getenvList("KAFKA_BROKERS"),
			AlertsTopic: getenv("KAFKA_TOPIC_ALERTS", "hydro.alerts"),
		},
		Influx: InfluxConfig{
			URL:    getenv("INFLUX_URL", "http://localhost:8086"),
			Token:  getenv("INFLUX_TOKEN", ""),
			Org:    getenv("INFLUX_ORG", "hydro"),
			Bucket: getenv("INFLUX_BUCKET", "readings"),
		},
		HTTP: HTTPConfig{
			Addr:           getenv("HTTP_ADDR", ":8080"),
			AllowedOrigins: getenvList("HTTP_ALLOWED_ORIGINS"),
			RequestTimeout: getenvDuration("HTTP_REQUEST_TIMEOUT", 5*time.Second),
			ShutdownGrace:  getenvDuration("HTTP_SHUTDOWN_GRACE", 5*time.Second),
		},
		GRPC: GRPCConfig{
			Addr: getenv("GRPC_ADDR", ":50051"),
		},
		Alerting: AlertingConfig{
			QueueSize:      getenvInt("ALERT_QUEUE_SIZE", 256),
			Workers:        getenvInt("ALERT_WORKERS", 1),
			ThresholdsPath: getenv("THRESHOLDS_PATH", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.MQTT.SensorTopic == "" || c.MQTT.CommandTopic == "" {
		return fmt.Errorf("MQTT_SENSOR_TOPIC and MQTT_COMMAND_TOPIC are required")
	}
	if c.Alerting.QueueSize <= 0 {
		return fmt.Errorf("ALERT_QUEUE_SIZE must be positive, got %d", c.Alerting.QueueSize)
	}
	if c.Alerting.Workers <= 0 {
		return fmt.Errorf("ALERT_WORKERS must be positive, got %d", c.Alerting.Workers)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	return nil
}

func newLogger(c LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if c.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "hydro-monitor").Logger()
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := getenv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := getenv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getenvList splits a comma separated variable, dropping empty items.
func getenvList(key string) []string {
	raw := getenv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
