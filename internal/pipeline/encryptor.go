package pipeline

import "io"

// Encryptor encrypts native part files before they are mirrored off-repo.
// The sources are proprietary; STEP outputs are exchange files and are
// mirrored in plaintext. Encryption uses the public key only, so runs on the
// automation machine never need a passphrase.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `partpipe config init`.
	// Generates a key pair, stores the public key in plaintext, and encrypts
	// the private key with the provided passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}
