package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Gateway  GatewayConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// GatewayConfig selects and configures the messaging gateway. Mode "http"
// talks to a generic vendor endpoint with a bearer token; mode "fcm" uses
// the Firebase Messaging SDK with a service-account credentials file.
type GatewayConfig struct {
	Mode               string
	URL                string
	BearerToken        string
	FCMCredentialsFile string
	Timeout            time.Duration
}

// DatabaseConfig configures the optional delivery log. An empty URL
// disables it.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the optional suppression list and rate limiter.
// An empty URL disables both.
type RedisConfig struct {
	URL          string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type DispatchConfig struct {
	Concurrency     int
	MaxRetries      int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	SendTimeout     time.Duration
	MaxTokenLength  int
	MaxBatchSize    int
	SuppressionTTL  time.Duration
	RateLimitPerSec int
}

// Load creates a new Config from environment variables
func Load() *Config {
	return &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Gateway: GatewayConfig{
			Mode:               getEnv("GATEWAY_MODE", "http"),
			URL:                getEnv("GATEWAY_URL", "https://gateway.example.com/v1/send"),
			BearerToken:        getEnv("GATEWAY_BEARER_TOKEN", ""),
			FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),
			Timeout:            getDurationEnv("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			MaxRetries:   getIntEnv("REDIS_MAX_RETRIES", 3),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 5),
		},
		Dispatch: DispatchConfig{
			Concurrency:     getIntEnv("DISPATCH_CONCURRENCY", 10),
			MaxRetries:      getIntEnv("DISPATCH_MAX_RETRIES", 3),
			BaseBackoff:     getDurationEnv("DISPATCH_BASE_BACKOFF", 500*time.Millisecond),
			MaxBackoff:      getDurationEnv("DISPATCH_MAX_BACKOFF", 4*time.Second),
			SendTimeout:     getDurationEnv("DISPATCH_SEND_TIMEOUT", 10*time.Second),
			MaxTokenLength:  getIntEnv("DISPATCH_MAX_TOKEN_LENGTH", 4096),
			MaxBatchSize:    getIntEnv("DISPATCH_MAX_BATCH_SIZE", 1000),
			SuppressionTTL:  getDurationEnv("DISPATCH_SUPPRESSION_TTL", 30*24*time.Hour),
			RateLimitPerSec: getIntEnv("DISPATCH_RATE_LIMIT_PER_SEC", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
