package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the simulator.
type Config struct {
	Port            int
	LogLevel        string
	DefaultSymbol   string
	Seed            int64
	TotalSteps      int
	BookDepth       int
	RecentTrades    int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with a .env
// overlay, applies defaults, and validates values. It returns an error
// for any invalid value.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment wins on conflicts.
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	defaultSymbol := getStr("DEFAULT_SYMBOL", "AAPL")

	seed, err := getInt64("SEED", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED: %w", err)
	}

	totalSteps, err := getInt("TOTAL_STEPS", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid TOTAL_STEPS: %w", err)
	}
	if totalSteps <= 0 {
		return nil, fmt.Errorf("invalid TOTAL_STEPS: must be positive, got %d", totalSteps)
	}

	bookDepth, err := getInt("BOOK_DEPTH", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOK_DEPTH: %w", err)
	}
	if bookDepth <= 0 {
		return nil, fmt.Errorf("invalid BOOK_DEPTH: must be positive, got %d", bookDepth)
	}

	recentTrades, err := getInt("RECENT_TRADES", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RECENT_TRADES: %w", err)
	}
	if recentTrades <= 0 {
		return nil, fmt.Errorf("invalid RECENT_TRADES: must be positive, got %d", recentTrades)
	}

	origins := strings.Split(getStr("ALLOWED_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		DefaultSymbol:   defaultSymbol,
		Seed:            seed,
		TotalSteps:      totalSteps,
		BookDepth:       bookDepth,
		RecentTrades:    recentTrades,
		AllowedOrigins:  origins,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
