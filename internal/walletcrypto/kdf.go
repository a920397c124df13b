package walletcrypto

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/pbkdf2"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Password stretching parameters.
const (
	DefaultIterations = 600_000
	SaltSize          = 16
	KeySize           = 32
)

//nolint:gochecknoglobals // Set once at startup from configuration
var iterations = DefaultIterations

// SetIterations overrides the PBKDF2 iteration count used for new verifiers
// and newly sealed envelopes. Existing verifiers and envelopes keep the
// count they were made with.
func SetIterations(n int) {
	if n < 1 {
		n = DefaultIterations
	}
	iterations = n
}

// Iterations returns the iteration count in effect.
func Iterations() int {
	return iterations
}

var errBadVerifier = errors.New("malformed verifier record")

// Verifier is the persisted password check record. Hash is
// PBKDF2-SHA256(password, Salt, Iterations, 32). It is never used as a key.
type Verifier struct {
	Salt       []byte `json:"salt"`
	Iterations int    `json:"iter"`
	Hash       []byte `json:"hash"`
}

// NewVerifier draws a fresh salt and computes the verifier for password.
func NewVerifier(password string) (*Verifier, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, walleterr.Wrap(err, "drawing verifier salt")
	}
	return &Verifier{
		Salt:       salt,
		Iterations: iterations,
		Hash:       stretch(password, salt, iterations),
	}, nil
}

// Check recomputes the hash with the stored salt and iteration count and
// compares it in constant time.
func (v *Verifier) Check(candidate string) bool {
	if v.Validate() != nil {
		return false
	}
	h := stretch(candidate, v.Salt, v.Iterations)
	defer Zero(h)
	return subtle.ConstantTimeCompare(h, v.Hash) == 1
}

// Validate checks the shape of a verifier loaded from storage.
func (v *Verifier) Validate() error {
	if v == nil || len(v.Salt) != SaltSize || len(v.Hash) != KeySize || v.Iterations < 1 {
		return walleterr.WrapAs(walleterr.ErrStorageCorrupt, errBadVerifier)
	}
	return nil
}

// DeriveWrapKey stretches password with the wrap salt into an AES-256 key.
// A non-positive iter means DefaultIterations, the count of envelopes
// written before the count was recorded.
func DeriveWrapKey(password string, salt []byte, iter int) *Secret {
	if iter < 1 {
		iter = DefaultIterations
	}
	k := stretch(password, salt, iter)
	defer Zero(k)
	return SecretFromBytes(k)
}

// NewWrapSalt draws a wrap salt guaranteed to differ from verifierSalt.
func NewWrapSalt(verifierSalt []byte) ([]byte, error) {
	for {
		salt, err := RandomBytes(SaltSize)
		if err != nil {
			return nil, walleterr.Wrap(err, "drawing wrap salt")
		}
		if !bytes.Equal(salt, verifierSalt) {
			return salt, nil
		}
	}
}

func stretch(password string, salt []byte, iter int) []byte {
	return pbkdf2.Key([]byte(password), salt, iter, KeySize, sha256.New)
}
