package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"libris/internal/lending"
	pkgstrings "libris/pkg/platform/strings"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean; anything unset falls back to a
// development default.
type Server struct {
	Addr string

	// DatabaseURL switches the stores to postgres when set; empty keeps
	// everything in memory for development and tests.
	DatabaseURL string

	// RedisURL enables the role-set cache in front of the role resolver.
	RedisURL string

	// KafkaBrokers enables the audit outbox relay.
	KafkaBrokers    []string
	KafkaAuditTopic string

	JWTSigningKey  string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	LoanPeriod time.Duration
	LoanQuota  int

	RoleCacheTTL time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("LIBRIS_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("LIBRIS_DATABASE_URL"),
		RedisURL:        os.Getenv("LIBRIS_REDIS_URL"),
		KafkaAuditTopic: envOr("LIBRIS_KAFKA_AUDIT_TOPIC", "libris.audit"),
		JWTIssuer:       envOr("LIBRIS_JWT_ISSUER", "libris"),
		AccessTokenTTL:  time.Hour,
		LoanPeriod:      lending.DefaultLoanPeriod,
		LoanQuota:       lending.DefaultLoanQuota,
		RoleCacheTTL:    5 * time.Minute,
	}

	if brokers := os.Getenv("LIBRIS_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pkgstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	cfg.JWTSigningKey = os.Getenv("LIBRIS_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Development default; must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if d, err := time.ParseDuration(os.Getenv("LIBRIS_JWT_TTL")); err == nil && d > 0 {
		cfg.AccessTokenTTL = d
	}
	if d, err := time.ParseDuration(os.Getenv("LIBRIS_LOAN_PERIOD")); err == nil && d > 0 {
		cfg.LoanPeriod = d
	}
	if n, err := strconv.Atoi(os.Getenv("LIBRIS_LOAN_QUOTA")); err == nil && n > 0 {
		cfg.LoanQuota = n
	}
	if d, err := time.ParseDuration(os.Getenv("LIBRIS_ROLE_CACHE_TTL")); err == nil && d > 0 {
		cfg.RoleCacheTTL = d
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
