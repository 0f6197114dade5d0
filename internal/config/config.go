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
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DBPath is the SQLite database file; ":memory:" is accepted for
	// throwaway runs.
	DBPath string

	// Diseases lists the identifiers the engine processes, one pipeline
	// run per disease.
	Diseases []string

	HighRiskThreshold float64
	SeasonalBoost     bool
	Horizon           int
	Granularity       string
	ForecastModel     string
	Workers           int
	FitTimeout        time.Duration

	// RunMode is "once" for a single pass or "cron" for scheduled runs.
	RunMode  string
	CronSpec string
	Reset    bool

	// Kafka alert dispatch configuration.
	KafkaBrokers    []string
	KafkaAlertTopic string
	AlertsEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fitTimeout, err := parseDuration("FORECAST_FIT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	threshold, err := parseFloat("HIGH_RISK_THRESHOLD", 0.70)
	if err != nil {
		return nil, err
	}
	horizon, err := parseInt("FORECAST_HORIZON", 4)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("PIPELINE_WORKERS", 8)
	if err != nil {
		return nil, err
	}

	brokers := parseList(os.Getenv("KAFKA_BROKERS"))
	alertsEnabled := len(brokers) > 0
	if v := os.Getenv("ALERTS_ENABLED"); v != "" {
		alertsEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: envOrDefault("DB_PATH", "outbreak.db"),

		Diseases: parseList(envOrDefault("DISEASES", "dengue")),

		HighRiskThreshold: threshold,
		SeasonalBoost:     os.Getenv("SEASONAL_BOOST") == "true",
		Horizon:           horizon,
		Granularity:       envOrDefault("FORECAST_GRANULARITY", "weekly"),
		ForecastModel:     envOrDefault("FORECAST_MODEL", "auto"),
		Workers:           workers,
		FitTimeout:        fitTimeout,

		RunMode:  envOrDefault("RUN_MODE", "once"),
		CronSpec: envOrDefault("CRON_SPEC", "0 6 * * *"),
		Reset:    os.Getenv("RESET_BEFORE_RUN") == "true",

		KafkaBrokers:    brokers,
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "outbreak-alerts"),
		AlertsEnabled:   alertsEnabled,
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if len(cfg.Diseases) == 0 {
		return nil, errors.New("DISEASES is required")
	}
	if cfg.HighRiskThreshold <= 0 || cfg.HighRiskThreshold > 1 {
		return nil, errors.New("HIGH_RISK_THRESHOLD must be in (0, 1]")
	}
	if cfg.Horizon < 1 {
		return nil, errors.New("FORECAST_HORIZON must be positive")
	}
	if cfg.Workers < 1 {
		return nil, errors.New("PIPELINE_WORKERS must be positive")
	}
	if cfg.RunMode != "once" && cfg.RunMode != "cron" {
		return nil, fmt.Errorf("invalid RUN_MODE %q (want once or cron)", cfg.RunMode)
	}
	if cfg.RunMode == "cron" && cfg.CronSpec == "" {
		return nil, errors.New("CRON_SPEC is required when RUN_MODE is cron")
	}
	if cfg.AlertsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("ALERTS_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseList splits a comma-separated value, trimming whitespace and dropping
// empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
