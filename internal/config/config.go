package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "PesaInvest"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionTTL      = 24 * time.Hour
	defaultMinPayment      = 25_000 // 250.00 in minor units
	defaultSuccessRate     = 0.85
	defaultBonusMultiplier = 1.10
	defaultDelayMin        = 9 * time.Second
	defaultDelayMax        = 12 * time.Second
	defaultPollInterval    = time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	SessionTTL     time.Duration

	// Settlement tunables. These model the investment offer and must stay
	// adjustable without touching the state machine.
	MinPaymentAmount       int64
	SettlementSuccessRate  float64
	SettlementBonus        float64
	SettlementDelayMin     time.Duration
	SettlementDelayMax     time.Duration
	SettlementPollInterval time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:                getEnv("APP_NAME", defaultAppName),
		AppEnv:                 getEnv("APP_ENV", defaultAppEnv),
		Port:                   getEnv("PORT", defaultPort),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		ShutdownPeriod:         defaultShutdownDelay,
		IdempotencyTTL:         defaultIdempotencyTTL,
		SessionTTL:             defaultSessionTTL,
		MinPaymentAmount:       defaultMinPayment,
		SettlementSuccessRate:  defaultSuccessRate,
		SettlementBonus:        defaultBonusMultiplier,
		SettlementDelayMin:     defaultDelayMin,
		SettlementDelayMax:     defaultDelayMax,
		SettlementPollInterval: defaultPollInterval,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.MinPaymentAmount, err = int64Env("MIN_PAYMENT_AMOUNT", cfg.MinPaymentAmount); err != nil {
		return Config{}, err
	}
	if cfg.SettlementSuccessRate, err = floatEnv("SETTLEMENT_SUCCESS_RATE", cfg.SettlementSuccessRate); err != nil {
		return Config{}, err
	}
	if cfg.SettlementBonus, err = floatEnv("SETTLEMENT_BONUS_MULTIPLIER", cfg.SettlementBonus); err != nil {
		return Config{}, err
	}
	if cfg.SettlementDelayMin, err = durationEnv("SETTLEMENT_DELAY_MIN", cfg.SettlementDelayMin); err != nil {
		return Config{}, err
	}
	if cfg.SettlementDelayMax, err = durationEnv("SETTLEMENT_DELAY_MAX", cfg.SettlementDelayMax); err != nil {
		return Config{}, err
	}
	if cfg.SettlementPollInterval, err = durationEnv("SETTLEMENT_POLL_INTERVAL", cfg.SettlementPollInterval); err != nil {
		return Config{}, err
	}

	if cfg.MinPaymentAmount <= 0 {
		return Config{}, fmt.Errorf("MIN_PAYMENT_AMOUNT must be positive")
	}
	if cfg.SettlementSuccessRate < 0 || cfg.SettlementSuccessRate > 1 {
		return Config{}, fmt.Errorf("SETTLEMENT_SUCCESS_RATE must be between 0 and 1")
	}
	if cfg.SettlementBonus < 1 {
		return Config{}, fmt.Errorf("SETTLEMENT_BONUS_MULTIPLIER must be at least 1")
	}
	if cfg.SettlementDelayMax < cfg.SettlementDelayMin {
		return Config{}, fmt.Errorf("SETTLEMENT_DELAY_MAX must not be below SETTLEMENT_DELAY_MIN")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment, where
// in-memory fallbacks for Postgres and Redis are allowed.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
