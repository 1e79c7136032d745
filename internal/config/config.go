// Package config loads process configuration from the environment,
// the same getEnv(key, fallback) idiom the rest of the stack uses.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven knob the server needs.
type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBDriver   string // "mysql" or "sqlite"

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP / websocket
	BindAddr       string
	Environment    string
	AllowedOrigins []string

	// Auth
	SessionSecret string

	// Timings (§5 Timeouts)
	HeartbeatInterval   time.Duration
	ClientIdleTimeout   time.Duration
	PingInterval        time.Duration
	ScheduleSweepPeriod time.Duration
	TournamentPollPeriod time.Duration

	// Worker pool sizing for handler dispatch (§5 Scheduling model)
	HandlerWorkers int
}

// Load reads configuration from the environment, loading a .env file
// first if one is present.
func Load() Config {
	godotenv.Load()

	return Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "hive"),
		DBDriver:   getEnv("DB_DRIVER", "mysql"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		BindAddr:       getEnv("BIND_ADDR", ":8080"),
		Environment:    getEnv("ENV", "development"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		SessionSecret: getEnv("SESSION_SECRET", "dev-secret-change-me"),

		HeartbeatInterval:    getEnvDuration("HEARTBEAT_INTERVAL", 5*time.Second),
		ClientIdleTimeout:    getEnvDuration("CLIENT_IDLE_TIMEOUT", 10*time.Second),
		PingInterval:         getEnvDuration("PING_INTERVAL", 5*time.Second),
		ScheduleSweepPeriod:  getEnvDuration("SCHEDULE_SWEEP_INTERVAL", 1*time.Minute),
		TournamentPollPeriod: getEnvDuration("TOURNAMENT_START_POLL_INTERVAL", 5*time.Second),

		HandlerWorkers: getEnvInt("HANDLER_WORKERS", 32),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
