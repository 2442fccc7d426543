// Package config holds the runtime settings of the marketplace daemon.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
)

// Store drivers accepted by Config.StoreDriver.
const (
	StoreDriverGorm = "gorm"
	StoreDriverPgx  = "pgx"
)

const (
	defaultListenAddr         = ":8080"
	defaultHealthAddr         = ":8081"
	defaultDatabaseURL        = "sqlite:///tmp/marketplace.db"
	defaultAllowedOrigin      = "http://localhost:8000"
	defaultSessionIssuer      = "tauth"
	defaultSessionCookie      = "app_session"
	defaultTransactionTimeout = 5 * time.Second
	defaultLockTimeout        = 3 * time.Second
	defaultPublishTimeout     = 2 * time.Second
)

var (
	// ErrMissingSetting indicates a required setting was not provided.
	ErrMissingSetting = errors.New("missing setting")
	// ErrInvalidSetting indicates a setting holds an unusable value.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Config aggregates runtime settings for marketd.
type Config struct {
	ListenAddr         string
	HealthAddr         string
	DatabaseURL        string
	StoreDriver        string
	RedisURL           string
	TopicPrefix        string
	AllowedOrigins     []string
	SessionSigningKey  string
	SessionIssuer      string
	SessionCookieName  string
	WebhookSecret      string
	TransactionTimeout time.Duration
	LockTimeout        time.Duration
	PublishTimeout     time.Duration
}

// Validate fills defaults and rejects unusable values.
func (cfg *Config) Validate() error {
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.HealthAddr = defaultIfEmpty(cfg.HealthAddr, defaultHealthAddr)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.TopicPrefix = defaultIfEmpty(cfg.TopicPrefix, marketplace.DefaultTopicPrefix)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = defaultTransactionTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}

	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("%w: session signing key", ErrMissingSetting)
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return fmt.Errorf("%w: webhook secret", ErrMissingSetting)
	}
	if cfg.LockTimeout > cfg.TransactionTimeout {
		return fmt.Errorf("%w: lock timeout %s exceeds transaction timeout %s", ErrInvalidSetting, cfg.LockTimeout, cfg.TransactionTimeout)
	}
	return nil
}

// ValidateStorage fills and checks only the settings needed to reach the database.
func (cfg *Config) ValidateStorage() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.StoreDriver = strings.ToLower(defaultIfEmpty(cfg.StoreDriver, StoreDriverGorm))
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	switch cfg.StoreDriver {
	case StoreDriverGorm:
		return nil
	case StoreDriverPgx:
		if !IsPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("%w: store driver %s requires a postgres database url", ErrInvalidSetting, StoreDriverPgx)
		}
		return nil
	default:
		return fmt.Errorf("%w: store driver %q", ErrInvalidSetting, cfg.StoreDriver)
	}
}

// IsPostgresURL reports whether dsn addresses a PostgreSQL server.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
