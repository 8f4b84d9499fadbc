package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// App
	Env string // dev / staging / prod
	// HTTP
	HTTPAddr string
	// Auth / Security
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration

	// Directory (LDAP)
	LDAPURL            string
	LDAPBaseDN         string
	LDAPAdminDN        string
	LDAPAdminPassword  string
	LDAPConnectTimeout time.Duration

	// Infrastructure
	DBAddr  string
	DBDebug bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitURL      string
	RabbitExchange string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Password reset flow
	PasswordResetBaseURL  string
	PasswordResetTokenTTL time.Duration

	// Where the admin guard sends unauthenticated browsers.
	AdminLandingURL string
}

func Load() (*Config, error) {
	// Best-effort .env for local runs; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("ENV", "dev"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:       getEnv("JWT_ISSUER", "identity-service"),
		AdminLandingURL: getEnv("ADMIN_LANDING_URL", "/"),
		RabbitExchange:  getEnv("RABBIT_EXCHANGE", "identity.events"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	// Directory parameters are required: the directory holds the only
	// copy of every credential, so there is no degraded mode without it.
	cfg.LDAPURL = os.Getenv("LDAP_URL")
	if cfg.LDAPURL == "" {
		return nil, fmt.Errorf("missing required env var: LDAP_URL")
	}
	cfg.LDAPBaseDN = os.Getenv("LDAP_BASE_DN")
	if cfg.LDAPBaseDN == "" {
		return nil, fmt.Errorf("missing required env var: LDAP_BASE_DN")
	}
	cfg.LDAPAdminDN = os.Getenv("LDAP_ADMIN_DN")
	if cfg.LDAPAdminDN == "" {
		return nil, fmt.Errorf("missing required env var: LDAP_ADMIN_DN")
	}
	cfg.LDAPAdminPassword = os.Getenv("LDAP_ADMIN_PASSWORD")
	if cfg.LDAPAdminPassword == "" {
		return nil, fmt.Errorf("missing required env var: LDAP_ADMIN_PASSWORD")
	}

	lct, err := getDuration("LDAP_CONNECT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.LDAPConnectTimeout = lct

	// optional with defaults
	ttl, err := getDuration("ACCESS_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.AccessTokenTTL = ttl

	stl, err := getDuration("SESSION_TTL", cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = stl

	// Reset URL sent via the notification exchange.
	// Must include `token=` because the service appends the token.
	cfg.PasswordResetBaseURL = os.Getenv("PASSWORD_RESET_BASE_URL")
	if cfg.PasswordResetBaseURL == "" {
		return nil, fmt.Errorf("missing required env var: PASSWORD_RESET_BASE_URL")
	}
	if !strings.Contains(cfg.PasswordResetBaseURL, "token=") {
		return nil, fmt.Errorf("PASSWORD_RESET_BASE_URL must contain `token=`")
	}

	prt, err := getDuration("PASSWORD_RESET_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.PasswordResetTokenTTL = prt

	// Infrastructure dependencies. The relational store is required at
	// startup; Redis and RabbitMQ degrade to in-process fallbacks in dev.
	cfg.DBAddr = os.Getenv("DB_ADDR")
	if cfg.DBAddr == "" {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}
	cfg.DBDebug = os.Getenv("DB_DEBUG") == "true"

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %q: %w", v, err)
		}
		cfg.RedisDB = n
	}

	cfg.RabbitURL = os.Getenv("RABBIT_URL")
	if cfg.RabbitURL == "" && cfg.Env != "dev" {
		return nil, fmt.Errorf("missing required env var: RABBIT_URL")
	}

	rt, err := getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPReadTimeout = rt

	wt, err := getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPWriteTimeout = wt

	it, err := getDuration("HTTP_IDLE_TIMEOUT", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.HTTPIdleTimeout = it

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}
