// Package model defines the domain types shared across the application.
package model

import "fmt"

// Environment names a deployment target of the payment backend. Each
// environment carries its own signing credentials and base URL.
type Environment string

const (
	EnvPre  Environment = "pre"
	EnvProd Environment = "prod"
)

// ParseEnvironment validates a raw environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvPre, EnvProd:
		return Environment(s), nil
	}
	return "", fmt.Errorf("unknown environment %q: expected %q or %q", s, EnvPre, EnvProd)
}

// CredentialRecord holds the signing material for one environment.
// It is only ever persisted in encrypted form; decrypted copies live in
// process memory for the duration of a single signing or test operation.
type CredentialRecord struct {
	// PrivateKey is the RSA private key in PEM form, 2048 bits or more.
	PrivateKey string `json:"privateKey"`
	// SigningSystemID identifies the calling system to the backend.
	SigningSystemID string `json:"signingSystemId"`
	// SigningThumbprint is the lowercase hex SHA-1 of the DER-encoded
	// public key, sent alongside every signed request.
	SigningThumbprint string `json:"signingThumbprint"`
}
