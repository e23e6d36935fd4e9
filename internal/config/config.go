package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Server   ServerConfig
	Liveness LivenessConfig
	Events   EventsConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type LivenessConfig struct {
	// Interval is the sweep period. A participant is stale after three
	// intervals without a health check.
	Interval time.Duration
}

type EventsConfig struct {
	BufferSize int
}

type AuthConfig struct {
	PasswordCost int
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	DefaultPort                = 3000
	DefaultHealthCheckInterval = 10 * time.Second
	DefaultEventBuffer         = 64
)

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("error loading .env file: %v", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvOrDefault("HUB_HOST", "0.0.0.0"),
			Port:            getIntOrDefault("PORT", DefaultPort),
			ReadTimeout:     getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout:    getDurationOrDefault("WRITE_TIMEOUT", "0s"),
			ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", "5s"),
			CORSOrigins:     getListOrDefault("CORS_ORIGINS", []string{"*"}),
		},
		Liveness: LivenessConfig{
			Interval: getDurationOrDefault("HEALTH_CHECK_INTERVAL", DefaultHealthCheckInterval.String()),
		},
		Events: EventsConfig{
			BufferSize: getIntOrDefault("EVENT_BUFFER", DefaultEventBuffer),
		},
		Auth: AuthConfig{
			PasswordCost: getIntOrDefault("PASSWORD_COST", 0),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Validate rejects settings the hub cannot run with.
func (c *Config) Validate() error {
	if c.Liveness.Interval <= 0 {
		return errors.Errorf("health check interval must be positive, got %s", c.Liveness.Interval)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Server.Port)
	}
	return nil
}

// Default returns the configuration used when no environment is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Liveness: LivenessConfig{Interval: DefaultHealthCheckInterval},
		Events:   EventsConfig{BufferSize: DefaultEventBuffer},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ParticipantTimeout is the staleness threshold derived from the sweep interval.
func (c *Config) ParticipantTimeout() time.Duration {
	return 3 * c.Liveness.Interval
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
