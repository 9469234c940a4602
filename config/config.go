package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	CrewTrack     CrewTrackConfig     `yaml:"crewtrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"CREWTRACK_DB_HOST"`
	Port     int    `yaml:"port" env:"CREWTRACK_DB_PORT"`
	Username string `yaml:"username" env:"CREWTRACK_DB_USER"`
	Password string `yaml:"password" env:"CREWTRACK_DB_PASSWORD"`
	DBName   string `yaml:"name" env:"CREWTRACK_DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"CREWTRACK_DB_SSL_MODE"`
}

// ConnString builds the pgx DSN.
func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                string `yaml:"host" env:"CREWTRACK_KAFKA_HOST"`
	Port                int    `yaml:"port" env:"CREWTRACK_KAFKA_PORT"`
	LiveEventsTopicName string `yaml:"live_events_topic_name" env:"CREWTRACK_KAFKA_LIVE_TOPIC"`
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"CREWTRACK_REDIS_HOST"`
	Port     int    `yaml:"port" env:"CREWTRACK_REDIS_PORT"`
	Password string `yaml:"password" env:"CREWTRACK_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"CREWTRACK_REDIS_DB"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig points at the S3-compatible bucket holding signature artifacts.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" env:"CREWTRACK_S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"CREWTRACK_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"CREWTRACK_S3_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"CREWTRACK_S3_USE_SSL"`
	Region    string `yaml:"region" env:"CREWTRACK_S3_REGION"`
	Bucket    string `yaml:"bucket" env:"CREWTRACK_S3_BUCKET"`
}

type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret" env:"CREWTRACK_JWT_SECRET"`
	Issuer                string `yaml:"issuer" env:"CREWTRACK_JWT_ISSUER"`
	TrackingTokenTTLHours int    `yaml:"tracking_token_ttl_hours" env:"CREWTRACK_TRACKING_TOKEN_TTL_HOURS"`
}

type NotificationsConfig struct {
	WebhookURL    string `yaml:"webhook_url" env:"CREWTRACK_NOTIFY_WEBHOOK_URL"`
	WebhookAPIKey string `yaml:"webhook_api_key" env:"CREWTRACK_NOTIFY_WEBHOOK_API_KEY"`
	OpsEmail      string `yaml:"ops_email" env:"CREWTRACK_NOTIFY_OPS_EMAIL"`
	Queue         string `yaml:"queue" env:"CREWTRACK_NOTIFY_QUEUE"`
	HandoffBuffer int    `yaml:"handoff_buffer" env:"CREWTRACK_NOTIFY_HANDOFF_BUFFER"`
	MaxRetry      int    `yaml:"max_retry" env:"CREWTRACK_NOTIFY_MAX_RETRY"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"CREWTRACK_OTEL_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"CREWTRACK_OTEL_SERVICE_NAME"`
}

type CrewTrackConfig struct {
	GRPCAddr string `yaml:"grpc_addr" env:"CREWTRACK_GRPC_ADDR"`
	HTTPAddr string `yaml:"http_addr" env:"CREWTRACK_HTTP_ADDR"`
	// LiveMode is "local" (single instance, in-process hub) or "kafka"
	// (events relayed through Kafka to every API instance).
	LiveMode string `yaml:"live_mode" env:"CREWTRACK_LIVE_MODE"`

	SnapshotTTLSeconds       int     `yaml:"snapshot_ttl_seconds" env:"CREWTRACK_SNAPSHOT_TTL_SECONDS"`
	PollIntervalSeconds      int     `yaml:"poll_interval_seconds" env:"CREWTRACK_POLL_INTERVAL_SECONDS"`
	AverageSpeedKmh          float64 `yaml:"average_speed_kmh" env:"CREWTRACK_AVERAGE_SPEED_KMH"`
	StreamBuffer             int     `yaml:"stream_buffer" env:"CREWTRACK_STREAM_BUFFER"`
	LocationPublishPerMinute int     `yaml:"location_publish_per_minute" env:"CREWTRACK_LOCATION_PUBLISH_PER_MINUTE"`

	WorkerHTTPAddr        string `yaml:"worker_http_addr" env:"CREWTRACK_WORKER_HTTP_ADDR"`
	WorkerConcurrency     int    `yaml:"worker_concurrency" env:"CREWTRACK_WORKER_CONCURRENCY"`
	WarmerIntervalSeconds int    `yaml:"warmer_interval_seconds" env:"CREWTRACK_WARMER_INTERVAL_SECONDS"`
	WarmerConcurrency     int    `yaml:"warmer_concurrency" env:"CREWTRACK_WARMER_CONCURRENCY"`
}

// LoadConfig reads the YAML file and then applies CREWTRACK_* environment
// overrides on top of it.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	return &config, nil
}
