// Package walletcrypto holds the symmetric cryptography of the wallet core:
// the zeroizing Secret container, password stretching, the AES-256-GCM
// wallet-set envelope, and age encryption for user-initiated export.
package walletcrypto

import (
	"runtime"
	"sync"
)

// Secret holds sensitive bytes such as private keys and wrap keys. The
// buffer is mlocked when the platform allows it and overwritten on Destroy.
// A finalizer zeroes buffers that are dropped without Destroy.
type Secret struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// NewSecret allocates a zeroed Secret of the given size.
func NewSecret(size int) *Secret {
	s := &Secret{data: make([]byte, size)}
	s.locked = mlock(s.data)

	runtime.SetFinalizer(s, func(s *Secret) {
		s.Destroy()
	})
	return s
}

// SecretFromBytes copies data into a new Secret. The caller still owns data
// and should zero it.
func SecretFromBytes(data []byte) *Secret {
	s := NewSecret(len(data))
	copy(s.data, data)
	return s
}

// Bytes returns the underlying buffer, or nil after Destroy. The slice must
// not be retained past the Secret's lifetime.
func (s *Secret) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Clone returns an independent copy.
func (s *Secret) Clone() *Secret {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}
	return SecretFromBytes(s.data)
}

// IsLocked reports whether the buffer is mlocked.
func (s *Secret) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Destroyed reports whether Destroy has run.
func (s *Secret) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data == nil
}

// Destroy zeroes and releases the buffer. Safe to call multiple times and
// on a nil Secret.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return
	}

	Zero(s.data)

	if s.locked {
		munlock(s.data)
		s.locked = false
	}

	s.data = nil
	runtime.SetFinalizer(s, nil)
}

// Len returns the length of the buffer, or 0 after Destroy.
func (s *Secret) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
