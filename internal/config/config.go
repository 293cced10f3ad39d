package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string
	OTLPProtocol string
	TraceEnabled bool

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMetricsEnabled  bool

	Worker WorkerConfig

	SeedDemoData bool
}

type LoggerConfig struct {
	Level string
}

// WorkerConfig tunes the background task runner.
type WorkerConfig struct {
	Enabled      bool
	PollInterval time.Duration
	TaskTimeout  time.Duration
	DeptParallel int
	ClaimBatch   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "valuemed"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol: strings.ToLower(getenv("OTLP_PROTOCOL", "grpc")),
		TraceEnabled: getenvBool("TRACE_ENABLED", false),

		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "valuemed"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		DBMetricsEnabled:  getenvBool("DATABASE_METRICS_ENABLED", false),

		Worker: WorkerConfig{
			Enabled:      getenvBool("WORKER_ENABLED", true),
			PollInterval: getenvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			TaskTimeout:  getenvDuration("WORKER_TASK_TIMEOUT", 30*time.Minute),
			DeptParallel: getenvInt("WORKER_DEPT_PARALLEL", 4),
			ClaimBatch:   getenvInt("WORKER_CLAIM_BATCH", 1),
		},

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid bool for %s: %q", key, raw)
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid int for %s: %q", key, raw)
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid duration for %s: %q", key, raw)
		return def
	}
	return parsed
}
