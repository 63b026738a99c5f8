package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Kafka
	KafkaBrokers       string
	KafkaMutationTopic string
	KafkaGroupID       string

	// API Configuration
	APIPort string
	APIHost string

	// Shopify
	ShopifyClientID     string
	ShopifyClientSecret string
	ShopifyAPIVersion   string

	// Unleashed
	UnleashedBaseURL  string
	UnleashedPageSize int

	Sync SyncConfig

	// Environment
	Env      string
	LogLevel string
}

// SyncConfig controls how mutation phases are executed.
type SyncConfig struct {
	BatchSize        int
	BatchDelay       time.Duration
	BulkThreshold    int
	BulkPollInterval time.Duration
	BulkTimeout      time.Duration
	Strategy         string
	LockTTL          time.Duration
}

var validStrategies = map[string]bool{
	"direct": true,
	"queue":  true,
	"bulk":   true,
	"auto":   true,
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.SetDefault("SYNC_BATCH_SIZE", 10)
	viper.SetDefault("SYNC_BATCH_DELAY_MS", 500)
	viper.SetDefault("SYNC_BULK_POLL_INTERVAL_MS", 2000)
	viper.SetDefault("SYNC_BULK_TIMEOUT_S", 600)
	viper.SetDefault("SYNC_STRATEGY", "auto")
	viper.SetDefault("SYNC_LOCK_TTL_S", 1800)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", "sqlite://stocksync.db"),
		RedisURL:            getEnv("REDIS_URL", ""),
		KafkaBrokers:        getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaMutationTopic:  getEnv("KAFKA_MUTATION_TOPIC", "stocksync-mutations"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "stocksync-worker"),
		APIPort:             getEnv("API_PORT", "8080"),
		APIHost:             getEnv("API_HOST", "0.0.0.0"),
		ShopifyClientID:     getEnv("SHOPIFY_CLIENT_ID", ""),
		ShopifyClientSecret: getEnv("SHOPIFY_CLIENT_SECRET", ""),
		ShopifyAPIVersion:   getEnv("SHOPIFY_API_VERSION", "2025-01"),
		UnleashedBaseURL:    getEnv("UNLEASHED_BASE_URL", "https://api.unleashedsoftware.com"),
		UnleashedPageSize:   getEnvAsInt("UNLEASHED_PAGE_SIZE", 200),
		Sync: SyncConfig{
			BatchSize:        getEnvAsInt("SYNC_BATCH_SIZE", 10),
			BatchDelay:       time.Duration(getEnvAsInt("SYNC_BATCH_DELAY_MS", 500)) * time.Millisecond,
			BulkThreshold:    getEnvAsInt("SYNC_BULK_THRESHOLD", 250),
			BulkPollInterval: time.Duration(getEnvAsInt("SYNC_BULK_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			BulkTimeout:      time.Duration(getEnvAsInt("SYNC_BULK_TIMEOUT_S", 600)) * time.Second,
			Strategy:         strings.ToLower(getEnv("SYNC_STRATEGY", "auto")),
			LockTTL:          time.Duration(getEnvAsInt("SYNC_LOCK_TTL_S", 1800)) * time.Second,
		},
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.Sync.BatchSize)
	}
	if !validStrategies[c.Sync.Strategy] {
		return fmt.Errorf("SYNC_STRATEGY must be one of direct, queue, bulk, auto; got %q", c.Sync.Strategy)
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if viper.IsSet(key) {
		if v := viper.GetString(key); v != "" {
			return v
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
