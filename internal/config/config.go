// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/efisher/payadmin/internal/domain/model"
)

// AppEnv distinguishes a development deployment from production. Only
// development deployments may fall back to the built-in dev passphrase.
type AppEnv string

const (
	AppEnvDevelopment AppEnv = "development"
	AppEnvProduction  AppEnv = "production"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv       AppEnv
	KeysDir      string
	BaseURLs     map[model.Environment]string
	ListenAddr   string
	DBPath       string
	CacheTTL     time.Duration
	CallTimeout  time.Duration
	masterSecret string
}

// Load reads configuration from environment variables and returns a validated
// Config. Required in production: PAYADMIN_MASTER_PASSPHRASE. Optional
// variables with defaults: PAYADMIN_APP_ENV (development),
// PAYADMIN_KEYS_DIR (.keys), PAYADMIN_LISTEN_ADDR (127.0.0.1:8080),
// PAYADMIN_DB_PATH (payadmin.db), PAYADMIN_CACHE_TTL (5m),
// PAYADMIN_CALL_TIMEOUT (15s), PAYADMIN_PRE_URL, PAYADMIN_PROD_URL.
func Load() (*Config, error) {
	appEnv := AppEnvDevelopment
	if v, ok := os.LookupEnv("PAYADMIN_APP_ENV"); ok {
		switch AppEnv(v) {
		case AppEnvDevelopment, AppEnvProduction:
			appEnv = AppEnv(v)
		default:
			return nil, fmt.Errorf("PAYADMIN_APP_ENV has invalid value %q: expected %q or %q", v, AppEnvDevelopment, AppEnvProduction)
		}
	}

	keysDir := ".keys"
	if v, ok := os.LookupEnv("PAYADMIN_KEYS_DIR"); ok {
		keysDir = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PAYADMIN_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "payadmin.db"
	if v, ok := os.LookupEnv("PAYADMIN_DB_PATH"); ok {
		dbPath = v
	}

	cacheTTL := 5 * time.Minute
	if v, ok := os.LookupEnv("PAYADMIN_CACHE_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PAYADMIN_CACHE_TTL has invalid duration %q: %w", v, err)
		}
		cacheTTL = parsed
	}

	callTimeout := 15 * time.Second
	if v, ok := os.LookupEnv("PAYADMIN_CALL_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PAYADMIN_CALL_TIMEOUT has invalid duration %q: %w", v, err)
		}
		callTimeout = parsed
	}

	baseURLs := map[model.Environment]string{
		model.EnvPre:  "https://pre.backend.example.com/rpc",
		model.EnvProd: "https://backend.example.com/rpc",
	}
	if v, ok := os.LookupEnv("PAYADMIN_PRE_URL"); ok && v != "" {
		baseURLs[model.EnvPre] = v
	}
	if v, ok := os.LookupEnv("PAYADMIN_PROD_URL"); ok && v != "" {
		baseURLs[model.EnvProd] = v
	}

	passphrase := os.Getenv("PAYADMIN_MASTER_PASSPHRASE")
	if passphrase == "" && appEnv == AppEnvProduction {
		return nil, fmt.Errorf("PAYADMIN_MASTER_PASSPHRASE is required when PAYADMIN_APP_ENV=%s", AppEnvProduction)
	}

	return &Config{
		AppEnv:       appEnv,
		KeysDir:      keysDir,
		BaseURLs:     baseURLs,
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		CacheTTL:     cacheTTL,
		CallTimeout:  callTimeout,
		masterSecret: passphrase,
	}, nil
}
