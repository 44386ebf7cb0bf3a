package vault

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// minRSABits is the smallest modulus the backend accepts for signing keys.
const minRSABits = 2048

// KeyValidation is the outcome of validating uploaded private key material.
type KeyValidation struct {
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
	Thumbprint string `json:"thumbprint,omitempty"`
}

// CertValidation is the outcome of validating uploaded certificate material.
type CertValidation struct {
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Subject     string `json:"subject,omitempty"`
}

// KeyPair is a freshly generated onboarding key pair. The private half is
// shown to the operator exactly once and never persisted by this package.
type KeyPair struct {
	PrivateKeyPEM string `json:"privateKey"`
	PublicKeyPEM  string `json:"publicKey"`
	Thumbprint    string `json:"thumbprint"`
}

// ValidatePrivateKey checks PEM framing, parses the key, rejects non-RSA
// types and moduli below 2048 bits, and computes the SPKI thumbprint.
// Structural failures are reported in the result, never as an error return.
func ValidatePrivateKey(pemData string) KeyValidation {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return KeyValidation{Error: "not valid PEM data"}
	}

	key, err := parsePrivateKey(block)
	if err != nil {
		return KeyValidation{Error: err.Error()}
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return KeyValidation{Error: fmt.Sprintf("unsupported key type %T: only RSA keys are accepted", key)}
	}

	if bits := rsaKey.N.BitLen(); bits < minRSABits {
		return KeyValidation{Error: fmt.Sprintf("RSA key is %d bits: at least %d bits required", bits, minRSABits)}
	}

	thumbprint, err := Thumbprint(&rsaKey.PublicKey)
	if err != nil {
		return KeyValidation{Error: err.Error()}
	}

	return KeyValidation{Valid: true, Thumbprint: thumbprint}
}

// ValidateCertificate checks PEM framing for a certificate, parses it as
// X.509, and computes its SHA-1 fingerprint (lowercase hex, no separators)
// plus the subject string for display.
func ValidateCertificate(pemData string) CertValidation {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return CertValidation{Error: "not valid PEM data"}
	}
	if block.Type != "CERTIFICATE" {
		return CertValidation{Error: fmt.Sprintf("PEM block is %q: expected CERTIFICATE", block.Type)}
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return CertValidation{Error: fmt.Sprintf("malformed certificate: %v", err)}
	}

	sum := sha1.Sum(cert.Raw)
	return CertValidation{
		Valid:       true,
		Fingerprint: hex.EncodeToString(sum[:]),
		Subject:     cert.Subject.String(),
	}
}

// GenerateKeyPair produces a fresh 2048-bit RSA pair in PKCS8/SPKI PEM form
// together with its thumbprint, for first-time onboarding.
func GenerateKeyPair() (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, minRSABits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate RSA key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal public key: %w", err)
	}

	thumbprint, err := Thumbprint(&key.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}

	return KeyPair{
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		Thumbprint:    thumbprint,
	}, nil
}

// Thumbprint computes the lowercase hex SHA-1 of the DER-encoded SPKI form
// of the public key. The backend uses it to identify the signing key.
func Thumbprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha1.Sum(der)
	return hex.EncodeToString(sum[:]), nil
}

// ParseRSAPrivateKey parses a PEM-framed RSA private key for signing use.
// Unlike ValidatePrivateKey it returns the key itself; callers must not
// retain it beyond the scope of a single signing operation.
func ParseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("not valid PEM data")
	}
	key, err := parsePrivateKey(block)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T: only RSA keys are accepted", key)
	}
	return rsaKey, nil
}

// parsePrivateKey accepts PKCS1 ("RSA PRIVATE KEY") and PKCS8 ("PRIVATE KEY")
// PEM blocks.
func parsePrivateKey(block *pem.Block) (any, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("malformed RSA private key: %v", err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("malformed private key: %v", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("PEM block is %q: expected a private key", block.Type)
	}
}
