package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process settings read from the environment.
type Config struct {
	Port               string
	CORSAllowedOrigins string
	StaticDir          string
	ShutdownTimeout    time.Duration

	// SendBuffer is the number of frames queued per socket before the
	// client is considered too slow and disconnected.
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	MaxFrameBytes   int64
	PingInterval    time.Duration
	PongWait        time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, relying on system environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		StaticDir:          getEnv("STATIC_DIR", ""),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		SendBuffer:         getEnvInt("SEND_BUFFER", 256),
		EventsPerSecond:    getEnvFloat("EVENTS_PER_SECOND", 10),
		EventBurst:         getEnvInt("EVENT_BURST", 20),
		MaxFrameBytes:      getEnvInt64("MAX_FRAME_BYTES", 10<<20),
		PingInterval:       getEnvDuration("PING_INTERVAL", 30*time.Second),
		PongWait:           getEnvDuration("PONG_WAIT", 60*time.Second),
	}

	if cfg.PongWait <= cfg.PingInterval {
		log.Printf("[config] PONG_WAIT %s must exceed PING_INTERVAL %s, using %s",
			cfg.PongWait, cfg.PingInterval, 2*cfg.PingInterval)
		cfg.PongWait = 2 * cfg.PingInterval
	}
	return cfg
}

// getEnv returns environment variable or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
		log.Printf("[config] Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil && intVal > 0 {
			return intVal
		}
		log.Printf("[config] Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvFloat returns environment variable as float64 or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
		log.Printf("[config] Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
		log.Printf("[config] Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
