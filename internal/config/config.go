package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Feed.
	NWSBaseURL      string
	NWSUserAgent    string
	Zones           []string
	FetchTimeout    time.Duration
	FetchMaxRetries int

	// Cycle driver.
	PollInterval    time.Duration
	CycleTimeout    time.Duration
	RetentionPeriod time.Duration

	// HTTP, logging, shutdown.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Storage.
	SQLitePath string

	// Optional transition event stream.
	KafkaEnabled          bool
	KafkaBrokers          []string
	KafkaTransitionsTopic string

	// Notification channels.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	PushAPIURL   string
	PushAppToken string

	// Dispatcher.
	DispatchWorkers    int
	DispatchMaxRetries int
	DeliveryTimeout    time.Duration

	// Spoken descriptions. TTSCommand empty disables synthesis.
	TTSCommand     string
	AudioDir       string
	AudioCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{
		NWSBaseURL:   envOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent: envOrDefault("NWS_USER_AGENT", "storm-alert-dispatch (ops@couchcryptid.dev)"),
		Zones:        splitCSV(os.Getenv("ZONES")),

		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		SQLitePath: envOrDefault("SQLITE_PATH", "alerts.db"),

		KafkaBrokers:          splitCSV(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTransitionsTopic: envOrDefault("KAFKA_TRANSITIONS_TOPIC", "alert-transitions"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		PushAPIURL:   envOrDefault("PUSH_API_URL", "https://api.pushover.net/1/messages.json"),
		PushAppToken: os.Getenv("PUSH_APP_TOKEN"),

		TTSCommand: os.Getenv("TTS_COMMAND"),
		AudioDir:   envOrDefault("AUDIO_DIR", "audio"),
	}

	var err error
	if cfg.PollInterval, err = parseDuration("POLL_INTERVAL", "2m"); err != nil {
		return nil, err
	}
	if cfg.CycleTimeout, err = parseDuration("CYCLE_TIMEOUT", "90s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parseDuration("FETCH_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.RetentionPeriod, err = parseDuration("RETENTION_PERIOD", "1h"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchMaxRetries, err = parseInt("FETCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = parseInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.DispatchWorkers, err = parseInt("DISPATCH_WORKERS", 8); err != nil {
		return nil, err
	}
	if cfg.DispatchMaxRetries, err = parseInt("DISPATCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.AudioCacheSize, err = parseInt("AUDIO_CACHE_SIZE", 32); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = parseDuration("DELIVERY_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.KafkaEnabled = os.Getenv("KAFKA_ENABLED") == "true"

	if len(cfg.Zones) == 0 {
		return nil, errors.New("ZONES is required (comma-separated UGC zone codes, e.g. TXC039,TXZ159)")
	}
	if cfg.PollInterval < 30*time.Second {
		return nil, errors.New("POLL_INTERVAL must be at least 30s; the NWS API rate-limits aggressive pollers")
	}
	if cfg.CycleTimeout >= cfg.PollInterval {
		return nil, errors.New("CYCLE_TIMEOUT must be shorter than POLL_INTERVAL")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTransitionsTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TRANSITIONS_TOPIC is not set")
	}

	return cfg, nil
}

// SMTPEnabled reports whether the email channel is configured.
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" && c.SMTPFrom != "" }

// PushEnabled reports whether the push channel is configured.
func (c *Config) PushEnabled() bool { return c.PushAppToken != "" }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := envOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}
