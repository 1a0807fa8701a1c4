// Package config provides configuration management for the landslide
// monitoring ingestion service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Postgres   PostgresConfig  `yaml:"postgres"`
	Redis      RedisConfig     `yaml:"redis"`
	Influx     InfluxConfig    `yaml:"influx"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Risk       RiskConfig      `yaml:"risk"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodySize     int64         `yaml:"max_body_size"`
}

// PostgresConfig holds settings for the mapping and record store.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	DSNEnv       string        `yaml:"dsn_env"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// RedisConfig holds settings for the latest-reading cache.
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	LatestTTL   time.Duration `yaml:"latest_ttl"`
	Timeout     time.Duration `yaml:"timeout"`
}

// InfluxConfig holds settings for the time-series forwarder.
type InfluxConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	TokenEnv    string        `yaml:"token_env"`
	Org         string        `yaml:"org"`
	Bucket      string        `yaml:"bucket"`
	Measurement string        `yaml:"measurement"`
	Timeout     time.Duration `yaml:"timeout"`
}

// KafkaConfig holds settings for the anomaly alert publisher.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MQTTConfig holds settings for the optional direct-ingest source.
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BrokerURL      string        `yaml:"broker_url"`
	ClientID       string        `yaml:"client_id"`
	UsernameEnv    string        `yaml:"username_env"`
	PasswordEnv    string        `yaml:"password_env"`
	Topic          string        `yaml:"topic"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ThresholdConfig enumerates anomaly-detection trigger conditions per metric.
type ThresholdConfig struct {
	Temperature  RangeThreshold `yaml:"temperature"`
	Humidity     RangeThreshold `yaml:"humidity"`
	Acceleration TotalThreshold `yaml:"acceleration"`
	Gyroscope    TotalThreshold `yaml:"gyroscope"`
	RiskLevel    RiskThreshold  `yaml:"risk_level"`
	Vibration    MaxThreshold   `yaml:"vibration"`
}

// RangeThreshold triggers outside [Min, Max].
type RangeThreshold struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// TotalThreshold triggers above TotalMax.
type TotalThreshold struct {
	TotalMax float64 `yaml:"total_max"`
}

// RiskThreshold triggers above Critical.
type RiskThreshold struct {
	Critical float64 `yaml:"critical"`
}

// MaxThreshold triggers above Max.
type MaxThreshold struct {
	Max float64 `yaml:"max"`
}

// RiskConfig holds the secondary bounds and weights for server-side risk
// scoring. These are deliberately independent of ThresholdConfig: both
// react to the same metrics but at different levels.
type RiskConfig struct {
	AccelerationBound  float64 `yaml:"acceleration_bound"`
	AccelerationWeight float64 `yaml:"acceleration_weight"`
	GyroscopeBound     float64 `yaml:"gyroscope_bound"`
	GyroscopeWeight    float64 `yaml:"gyroscope_weight"`
	VibrationBound     float64 `yaml:"vibration_bound"`
	VibrationWeight    float64 `yaml:"vibration_weight"`
	HumidityBound      float64 `yaml:"humidity_bound"`
	HumidityWeight     float64 `yaml:"humidity_weight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults tuned for outdoor landslide
// monitoring stations.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5100,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
		},
		Postgres: PostgresConfig{
			DSNEnv:       "DATABASE_URL",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			QueryTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:     true,
			Addr:        "localhost:6379",
			PasswordEnv: "REDIS_PASSWORD",
			DB:          0,
			PoolSize:    10,
			LatestTTL:   1 * time.Hour,
			Timeout:     3 * time.Second,
		},
		Influx: InfluxConfig{
			Enabled:     false,
			URL:         "http://localhost:8086",
			TokenEnv:    "INFLUX_TOKEN",
			Org:         "landslide",
			Bucket:      "iot-data",
			Measurement: "sensor_reading",
			Timeout:     5 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:      false,
			Brokers:      []string{"localhost:9092"},
			Topic:        "landslide.anomalies",
			BatchTimeout: 100 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled:        false,
			BrokerURL:      "tcp://localhost:1883",
			ClientID:       "landslide-ingest",
			UsernameEnv:    "MQTT_USERNAME",
			PasswordEnv:    "MQTT_PASSWORD",
			Topic:          "$oc/devices/+/sys/properties/report",
			QoS:            0,
			ConnectTimeout: 10 * time.Second,
		},
		Thresholds: ThresholdConfig{
			Temperature:  RangeThreshold{Min: -10, Max: 45},
			Humidity:     RangeThreshold{Min: 10, Max: 95},
			Acceleration: TotalThreshold{TotalMax: 1500},
			Gyroscope:    TotalThreshold{TotalMax: 800},
			RiskLevel:    RiskThreshold{Critical: 0.8},
			Vibration:    MaxThreshold{Max: 5},
		},
		Risk: RiskConfig{
			AccelerationBound:  1500,
			AccelerationWeight: 0.3,
			GyroscopeBound:     800,
			GyroscopeWeight:    0.2,
			VibrationBound:     3.0,
			VibrationWeight:    0.2,
			HumidityBound:      90,
			HumidityWeight:     0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// PostgresDSN resolves the connection string, preferring the environment
// variable when set so credentials stay out of config files.
func (c *Config) PostgresDSN() string {
	if c.Postgres.DSNEnv != "" {
		if dsn := os.Getenv(c.Postgres.DSNEnv); dsn != "" {
			return dsn
		}
	}
	return c.Postgres.DSN
}
