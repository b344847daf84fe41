package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime configuration for the engine service.
type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	LogLevel       string        `yaml:"log_level"`
	ThresholdsFile string        `yaml:"thresholds_file"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	BatchSize      int           `yaml:"batch_size"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	RowConcurrency int           `yaml:"row_concurrency"`

	// Args applied to every envelope that does not carry its own.
	Args map[string]string `yaml:"args"`

	Kafka    KafkaConfig    `yaml:"kafka"`
	Influx   InfluxConfig   `yaml:"influx"`
	Cooldown CooldownConfig `yaml:"cooldown"`
	Postgres PostgresConfig `yaml:"postgres"`
	NATS     NATSConfig     `yaml:"nats"`
	Notify   NotifyConfig   `yaml:"notify"`
	Energy   EnergyConfig   `yaml:"energy"`
	Health   HealthConfig   `yaml:"health"`
}

// KafkaConfig configures the write-envelope consumer and the alert fact producer.
type KafkaConfig struct {
	Brokers      []string       `yaml:"brokers"`
	WritesTopic  string         `yaml:"writes_topic"`
	GroupID      string         `yaml:"group_id"`
	HistoryTopic string         `yaml:"history_topic"`
	Producer     ProducerConfig `yaml:"producer"`
}

// ProducerConfig tunes the Kafka writer pool.
type ProducerConfig struct {
	PoolSize     int           `yaml:"pool_size"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Compression  string        `yaml:"compression"`
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// CooldownConfig selects the cooldown store. RedisAddr empty means in-memory.
type CooldownConfig struct {
	Window     time.Duration `yaml:"window"`
	MaxEntries int           `yaml:"max_entries"`
	RedisAddr  string        `yaml:"redis_addr"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NotifyConfig holds channel timeouts and the API retry policy.
type NotifyConfig struct {
	APITimeout     time.Duration `yaml:"api_timeout"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
}

// EnergyConfig tunes the energy optimization trigger.
type EnergyConfig struct {
	PeakDemandKW  float64  `yaml:"peak_demand_kw"`
	SheddingOrder []string `yaml:"shedding_order"`
	RollupAlerts  bool     `yaml:"rollup_alerts"`
}

type HealthConfig struct {
	HistorySize int `yaml:"history_size"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		Workers:        4,
		QueueSize:      1000,
		BatchSize:      10,
		BatchTimeout:   100 * time.Millisecond,
		RowConcurrency: 8,
		Args:           map[string]string{},
		Kafka: KafkaConfig{
			WritesTopic:  "bms.writes",
			GroupID:      "bmsengine",
			HistoryTopic: "bms.alert-history",
			Producer: ProducerConfig{
				PoolSize:     2,
				BatchSize:    100,
				BatchTimeout: 50 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: 1,
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
				Compression:  "snappy",
			},
		},
		Influx: InfluxConfig{
			Bucket: "MaintenanceAnalytics",
		},
		Cooldown: CooldownConfig{
			Window:     5 * time.Minute,
			MaxEntries: 10000,
			KeyPrefix:  "bmsengine:cooldown:",
		},
		NATS: NATSConfig{
			SubjectPrefix: "bms.alerts",
		},
		Notify: NotifyConfig{
			APITimeout:     15 * time.Second,
			WebhookTimeout: 10 * time.Second,
			RetryAttempts:  3,
			RetryBackoff:   time.Second,
		},
		Energy: EnergyConfig{
			PeakDemandKW: 500,
		},
		Health: HealthConfig{
			HistorySize: 100,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ThresholdsFile = getEnv("THRESHOLDS_FILE", c.ThresholdsFile)
	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.RowConcurrency = getEnvInt("ROW_CONCURRENCY", c.RowConcurrency)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.WritesTopic = getEnv("KAFKA_WRITES_TOPIC", c.Kafka.WritesTopic)
	c.Kafka.HistoryTopic = getEnv("KAFKA_HISTORY_TOPIC", c.Kafka.HistoryTopic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.Influx.URL = getEnv("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getEnv("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getEnv("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getEnv("INFLUX_BUCKET", c.Influx.Bucket)

	c.Cooldown.Window = getEnvDuration("COOLDOWN_WINDOW", c.Cooldown.Window)
	c.Cooldown.RedisAddr = getEnv("REDIS_ADDR", c.Cooldown.RedisAddr)

	c.Postgres.DSN = getEnv("POSTGRES_DSN", c.Postgres.DSN)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	if order := getEnv("ENERGY_SHEDDING_ORDER", ""); order != "" {
		c.Energy.SheddingOrder = splitList(order)
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.Cooldown.Window < 0 {
		return fmt.Errorf("%w: cooldown window cannot be negative", ErrInvalidConfig)
	}
	if c.Energy.PeakDemandKW < 0 {
		return fmt.Errorf("%w: energy peak_demand_kw cannot be negative", ErrInvalidConfig)
	}
	if c.Notify.RetryAttempts <= 0 {
		return fmt.Errorf("%w: notify retry_attempts must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
