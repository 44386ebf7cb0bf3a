package driven

// SecretSource supplies the master passphrase used to derive the vault's
// encryption key. Abstracted so production deployments can swap the
// env-var source for a managed secret store without touching vault logic.
type SecretSource interface {
	// MasterPassphrase returns the passphrase, or an error when none is
	// configured and no fallback is permitted.
	MasterPassphrase() (string, error)
}
