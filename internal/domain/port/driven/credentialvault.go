// Package driven defines the driven ports the application core depends on.
package driven

import (
	"errors"

	"github.com/efisher/payadmin/internal/domain/model"
)

// ErrCredentialsAbsent is returned by CredentialVault.Load for every failure
// mode that leaves the caller without usable credentials: missing file,
// wrong master passphrase, tampered blob, or unparseable plaintext. The
// vault never surfaces partial plaintext or a raw crypto error.
var ErrCredentialsAbsent = errors.New("no usable credentials for environment")

// CredentialVault defines the driven port for encrypted credential
// persistence. Records cross this boundary in plaintext; the adapter owns
// encryption, decryption, and the on-disk format.
type CredentialVault interface {
	// Save encrypts and persists the record for the environment,
	// overwriting any previous record.
	Save(env model.Environment, record model.CredentialRecord) error

	// Load decrypts and returns the record for the environment.
	// Returns ErrCredentialsAbsent when no usable record exists.
	Load(env model.Environment) (model.CredentialRecord, error)

	// Delete removes the stored record. Deleting an absent record is not
	// an error.
	Delete(env model.Environment) error

	// Exists reports whether an encrypted record is present on disk,
	// without attempting decryption.
	Exists(env model.Environment) bool
}
