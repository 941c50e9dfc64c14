package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wms-platform/reconciliation-service/internal/matching"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/mongodb"
	"github.com/wms-platform/reconciliation-service/pkg/temporal"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

// ServiceName identifies the service in logs, metrics, traces and events
const ServiceName = "reconciliation-service"

// Store backends
const (
	StoreMongoDB = "mongodb"
	StoreFile    = "file"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	// Server
	ServerAddr  string `mapstructure:"SERVER_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Environment string `mapstructure:"ENVIRONMENT"`

	// Store
	StoreBackend  string `mapstructure:"STORE_BACKEND"` // mongodb | file
	StoreFilePath string `mapstructure:"STORE_FILE_PATH"`
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	// Redis backs the write lock when set; otherwise the lock is in-process
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`
	LockWait      time.Duration `mapstructure:"LOCK_WAIT_TIMEOUT"`

	// Kafka
	KafkaEnabled        bool   `mapstructure:"KAFKA_ENABLED"`
	KafkaBrokers        string `mapstructure:"KAFKA_BROKERS"`
	KafkaConsumerGroup  string `mapstructure:"KAFKA_CONSUMER_GROUP"`
	PurchaseOrdersTopic string `mapstructure:"KAFKA_PURCHASE_ORDERS_TOPIC"`
	InventoryTopic      string `mapstructure:"KAFKA_INVENTORY_TOPIC"`

	// Temporal
	TemporalHost      string `mapstructure:"TEMPORAL_HOST"`
	TemporalNamespace string `mapstructure:"TEMPORAL_NAMESPACE"`
	TemporalTaskQueue string `mapstructure:"TEMPORAL_TASK_QUEUE"`

	// Tracing
	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Matching
	MatchingConfigPath string `mapstructure:"MATCHING_CONFIG_PATH"`
}

// Load reads configuration from the environment and an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	// A missing .env file is fine
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDR", ":8020")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "development")

	v.SetDefault("STORE_BACKEND", StoreMongoDB)
	v.SetDefault("STORE_FILE_PATH", "data/reconciliation.json")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "reconciliation_db")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("LOCK_WAIT_TIMEOUT", "10s")

	v.SetDefault("KAFKA_ENABLED", true)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CONSUMER_GROUP", ServiceName)
	v.SetDefault("KAFKA_PURCHASE_ORDERS_TOPIC", kafka.Topics.PurchaseOrders)
	v.SetDefault("KAFKA_INVENTORY_TOPIC", kafka.Topics.InventoryEvents)

	v.SetDefault("TEMPORAL_HOST", "localhost:7233")
	v.SetDefault("TEMPORAL_NAMESPACE", "default")
	v.SetDefault("TEMPORAL_TASK_QUEUE", temporal.TaskQueues.Reconciliation)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("MATCHING_CONFIG_PATH", "")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no safe fallback
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMongoDB:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("mongodb store requires MONGODB_URI and MONGODB_DATABASE")
		}
	case StoreFile:
		if c.StoreFilePath == "" {
			return fmt.Errorf("file store requires STORE_FILE_PATH")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, StoreMongoDB, StoreFile)
	}
	if c.KafkaEnabled && len(c.Brokers()) == 0 {
		return fmt.Errorf("kafka is enabled but KAFKA_BROKERS is empty")
	}
	return nil
}

// Brokers splits the comma separated broker list
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// MongoDB returns the MongoDB client configuration
func (c *Config) MongoDB() *mongodb.Config {
	cfg := mongodb.DefaultConfig()
	cfg.URI = c.MongoURI
	cfg.Database = c.MongoDatabase
	return cfg
}

// Kafka returns the Kafka producer and consumer configuration
func (c *Config) Kafka() *kafka.Config {
	cfg := kafka.DefaultConfig()
	cfg.Brokers = c.Brokers()
	cfg.ConsumerGroup = c.KafkaConsumerGroup
	cfg.ClientID = ServiceName
	return cfg
}

// Temporal returns the Temporal client configuration
func (c *Config) Temporal(identity string) *temporal.Config {
	cfg := temporal.DefaultConfig()
	cfg.HostPort = c.TemporalHost
	cfg.Namespace = c.TemporalNamespace
	cfg.TaskQueue = c.TemporalTaskQueue
	if identity != "" {
		cfg.Identity = identity
	}
	return cfg
}

// Tracing returns the OpenTelemetry configuration
func (c *Config) Tracing() *tracing.Config {
	cfg := tracing.DefaultConfig(ServiceName)
	cfg.Enabled = c.TracingEnabled
	cfg.OTLPEndpoint = c.OTLPEndpoint
	cfg.Environment = c.Environment
	return cfg
}

// MatchingOptions loads matcher tuning from MATCHING_CONFIG_PATH, falling
// back to the built-in defaults when no path is set
func (c *Config) MatchingOptions() (matching.Options, error) {
	return matching.LoadOptions(c.MatchingConfigPath)
}
