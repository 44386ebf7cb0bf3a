package config

import (
	"errors"

	"github.com/efisher/payadmin/internal/domain/port/driven"
)

// devFallbackPassphrase is the well-known passphrase used when no master
// passphrase is configured in a development deployment. It offers no real
// protection and is refused outside development.
const devFallbackPassphrase = "payadmin-development-only"

// ErrNoMasterPassphrase is returned when no passphrase is configured and the
// development fallback is not permitted.
var ErrNoMasterPassphrase = errors.New("master passphrase not configured: set PAYADMIN_MASTER_PASSPHRASE")

// Compile-time interface satisfaction check.
var _ driven.SecretSource = (*EnvSecretSource)(nil)

// EnvSecretSource supplies the master passphrase captured at config load.
// In development it falls back to devFallbackPassphrase when none is set.
type EnvSecretSource struct {
	appEnv     AppEnv
	passphrase string
}

// SecretSource returns the passphrase source backed by this configuration.
func (c *Config) SecretSource() *EnvSecretSource {
	return &EnvSecretSource{appEnv: c.AppEnv, passphrase: c.masterSecret}
}

// MasterPassphrase returns the configured passphrase. Outside development a
// missing passphrase is an error rather than a silent fallback.
func (s *EnvSecretSource) MasterPassphrase() (string, error) {
	if s.passphrase != "" {
		return s.passphrase, nil
	}
	if s.appEnv == AppEnvDevelopment {
		return devFallbackPassphrase, nil
	}
	return "", ErrNoMasterPassphrase
}
