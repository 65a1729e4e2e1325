package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	WSURL             string
	CredFile          string
	SendAckTimeout    time.Duration
	TypingStartWindow time.Duration
	TypingStopWindow  time.Duration
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
	HTTPTimeout       time.Duration
	ProfileCacheTTL   time.Duration
}

func Load() (*Config, error) {
	// Optional .env next to the binary; real env wins.
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:        getEnv("POSTO_API_URL", "http://localhost:8080"),
		WSURL:             getEnv("POSTO_WS_URL", "ws://localhost:8080/ws"),
		CredFile:          getEnv("POSTO_CRED_FILE", "posto.db"),
		SendAckTimeout:    10 * time.Second,
		TypingStartWindow: 500 * time.Millisecond,
		TypingStopWindow:  time.Second,
		ReconnectMin:      time.Second,
		ReconnectMax:      30 * time.Second,
		HTTPTimeout:       15 * time.Second,
		ProfileCacheTTL:   5 * time.Minute,
	}

	var err error
	if cfg.SendAckTimeout, err = getDuration("POSTO_SEND_TIMEOUT", cfg.SendAckTimeout); err != nil {
		return nil, err
	}
	if cfg.TypingStartWindow, err = getDuration("POSTO_TYPING_START_WINDOW", cfg.TypingStartWindow); err != nil {
		return nil, err
	}
	if cfg.TypingStopWindow, err = getDuration("POSTO_TYPING_STOP_WINDOW", cfg.TypingStopWindow); err != nil {
		return nil, err
	}
	if cfg.ReconnectMin, err = getDuration("POSTO_RECONNECT_MIN", cfg.ReconnectMin); err != nil {
		return nil, err
	}
	if cfg.ReconnectMax, err = getDuration("POSTO_RECONNECT_MAX", cfg.ReconnectMax); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("POSTO_API_URL is required")
	}
	if c.WSURL == "" {
		return fmt.Errorf("POSTO_WS_URL is required")
	}
	if c.SendAckTimeout <= 0 {
		return fmt.Errorf("POSTO_SEND_TIMEOUT must be greater than 0")
	}
	if c.TypingStartWindow <= 0 || c.TypingStopWindow <= 0 {
		return fmt.Errorf("typing windows must be greater than 0")
	}
	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("reconnect bounds are invalid")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
