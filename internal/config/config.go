package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel string

	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	APIBaseURL string
	APITimeout time.Duration

	// StoreBackend is one of "redis", "mongo" or "memory".
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDBName   string

	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
	MaxSessions          int

	KafkaBrokers  []string
	NotifyTopic   string
	CheckoutTopic string
}

func Load() Config {
	return Config{
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:3333"),
		APITimeout:           getEnvDuration("API_TIMEOUT", 3*time.Second),
		StoreBackend:         getEnv("STORE_BACKEND", "redis"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:          getEnv("MONGO_DB_NAME", "cartdb"),
		SessionIdleTTL:       getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		MaxSessions:          getEnvInt("MAX_SESSIONS", 10000),
		KafkaBrokers:         getEnvList("KAFKA_BROKERS"),
		NotifyTopic:          getEnv("NOTIFY_TOPIC", "cart-notifications"),
		CheckoutTopic:        getEnv("CHECKOUT_TOPIC", "checkout-completed"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
