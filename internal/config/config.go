package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Conferencing provider
	MeetAPIBaseURL     string
	MeetAPIKey         string
	MeetTimeoutSeconds int
	MeetMaxRetries     int

	// Presence
	JoinGraceMinutes      int
	HeartbeatStaleSeconds int
	AutoLeaveSweepSeconds int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		MeetAPIBaseURL:     mustGetEnv("MEET_API_BASE_URL"),
		MeetAPIKey:         mustGetEnv("MEET_API_KEY"),
		MeetTimeoutSeconds: getEnvAsIntOrDefault("MEET_TIMEOUT_SECONDS", 15),
		MeetMaxRetries:     getEnvAsIntOrDefault("MEET_MAX_RETRIES", 2),

		JoinGraceMinutes:      getEnvAsIntOrDefault("JOIN_GRACE_MINUTES", 5),
		HeartbeatStaleSeconds: getEnvAsIntOrDefault("HEARTBEAT_STALE_SECONDS", 120),
		AutoLeaveSweepSeconds: getEnvAsIntOrDefault("AUTO_LEAVE_SWEEP_SECONDS", 60),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
