package walletcrypto

import (
	"crypto/rand"
	"io"
)

// Reader is the cryptographically secure random source supplied by the host.
// Tests may replace it with a deterministic reader.
//
//nolint:gochecknoglobals // Package-level RNG is required for testability
var Reader io.Reader = rand.Reader

// RandomBytes generates cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomSecret generates random bytes directly inside a Secret.
func RandomSecret(n int) (*Secret, error) {
	s := NewSecret(n)
	if _, err := io.ReadFull(Reader, s.Bytes()); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}
