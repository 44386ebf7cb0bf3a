// Package vault implements the file-based encrypted credential vault and the
// key material validator.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

const (
	saltLen = 64
	ivLen   = 16
	tagLen  = 16
	keyLen  = 32

	// PBKDF2 iteration count. Fixed so existing blobs stay readable.
	kdfIterations = 210_000
)

// Compile-time interface satisfaction check.
var _ driven.CredentialVault = (*FileVault)(nil)

// FileVault stores one encrypted credential record per environment at
// <keysDir>/<environment>.keys.enc. The on-disk blob is
// base64(salt[64] || iv[16] || tag[16] || ciphertext), where the key is
// derived from the master passphrase with PBKDF2-SHA512 and the cipher is
// AES-256-GCM with a 16-byte nonce.
type FileVault struct {
	keysDir string
	secrets driven.SecretSource
}

// NewFileVault creates a vault rooted at keysDir. The directory is created
// lazily on first save.
func NewFileVault(keysDir string, secrets driven.SecretSource) *FileVault {
	return &FileVault{keysDir: keysDir, secrets: secrets}
}

// Save encrypts and writes the record for the environment, overwriting any
// previous record. A fresh salt and IV are generated on every save.
func (v *FileVault) Save(env model.Environment, record model.CredentialRecord) error {
	passphrase, err := v.secrets.MasterPassphrase()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize credential record: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return fmt.Errorf("rand iv: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}

	// Seal appends the tag to the ciphertext; the file format carries the
	// tag before the ciphertext, so split and reorder.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]

	blob := make([]byte, 0, saltLen+ivLen+tagLen+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	if err := os.MkdirAll(v.keysDir, 0o700); err != nil {
		return fmt.Errorf("create keys dir %q: %w", v.keysDir, err)
	}

	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := os.WriteFile(v.path(env), []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write key file for %q: %w", env, err)
	}

	slog.Info("credentials saved", "environment", env, "thumbprint", record.SigningThumbprint)
	return nil
}

// Load reads and decrypts the record for the environment. Every failure mode
// collapses to driven.ErrCredentialsAbsent so callers never see partial
// plaintext or a raw crypto error.
func (v *FileVault) Load(env model.Environment) (model.CredentialRecord, error) {
	passphrase, err := v.secrets.MasterPassphrase()
	if err != nil {
		return model.CredentialRecord{}, err
	}

	encoded, err := os.ReadFile(v.path(env))
	if err != nil {
		return model.CredentialRecord{}, driven.ErrCredentialsAbsent
	}

	blob, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil || len(blob) < saltLen+ivLen+tagLen {
		return model.CredentialRecord{}, driven.ErrCredentialsAbsent
	}

	salt := blob[:saltLen]
	iv := blob[saltLen : saltLen+ivLen]
	tag := blob[saltLen+ivLen : saltLen+ivLen+tagLen]
	ciphertext := blob[saltLen+ivLen+tagLen:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return model.CredentialRecord{}, driven.ErrCredentialsAbsent
	}

	// Reassemble ciphertext || tag, the order Open expects.
	sealed := make([]byte, 0, len(ciphertext)+tagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return model.CredentialRecord{}, driven.ErrCredentialsAbsent
	}

	var record model.CredentialRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return model.CredentialRecord{}, driven.ErrCredentialsAbsent
	}

	return record, nil
}

// Delete removes the stored record. A missing file is not an error.
func (v *FileVault) Delete(env model.Environment) error {
	if err := os.Remove(v.path(env)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete key file for %q: %w", env, err)
	}
	slog.Info("credentials deleted", "environment", env)
	return nil
}

// Exists reports whether an encrypted record is present, without decrypting.
func (v *FileVault) Exists(env model.Environment) bool {
	_, err := os.Stat(v.path(env))
	return err == nil
}

func (v *FileVault) path(env model.Environment) string {
	return filepath.Join(v.keysDir, string(env)+".keys.enc")
}

// newGCM derives the AES-256 key from the passphrase and salt and returns a
// GCM instance with the file format's 16-byte nonce size.
func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keyLen, sha512.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
