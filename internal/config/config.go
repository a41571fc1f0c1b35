package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisAuditKey string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	// geolocation capture
	BrowserGeoEndpoint string
	NativeGeoEndpoint  string
	CaptureTimeout     time.Duration
	SettleDelay        time.Duration

	// optional routing estimates for the mileage report
	OSRMEndpoint string
	ETACacheTTL  time.Duration

	PushEndpoint string
	FCMEndpoint  string
	FCMKey       string

	// callout fee held at creation, captured on completion
	CalloutFeeCents int64
	Currency        string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisAuditKey:   "acceptlog",
		KafkaTopic:      "acceptance-events",
		CaptureTimeout:  10 * time.Second,
		SettleDelay:     500 * time.Millisecond,
		ETACacheTTL:     5 * time.Minute,
		Currency:        "usd",
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisAuditKey, "REDIS_AUDIT_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.BrowserGeoEndpoint, "BROWSER_GEO_ENDPOINT")
	setStringFromEnv(&cfg.NativeGeoEndpoint, "NATIVE_GEO_ENDPOINT")
	setDurationFromEnv(&cfg.CaptureTimeout, "CAPTURE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.SettleDelay, "CAPTURE_SETTLE_DELAY", &errs)

	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	setDurationFromEnv(&cfg.ETACacheTTL, "ETA_CACHE_TTL", &errs)

	setStringFromEnv(&cfg.PushEndpoint, "PUSH_ENDPOINT")
	setStringFromEnv(&cfg.FCMEndpoint, "FCM_ENDPOINT")
	cfg.FCMKey = os.Getenv("FCM_KEY")

	if v := os.Getenv("CALLOUT_FEE_CENTS"); v != "" {
		fee, err := strconv.ParseInt(v, 10, 64)
		if err != nil || fee < 0 {
			errs = append(errs, fmt.Errorf("invalid CALLOUT_FEE_CENTS: %q", v))
		} else {
			cfg.CalloutFeeCents = fee
		}
	}
	setStringFromEnv(&cfg.Currency, "CURRENCY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.CaptureTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CAPTURE_TIMEOUT must be > 0"))
	}
	if cfg.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("CAPTURE_SETTLE_DELAY must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
