package walletcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// BlobVersion is the only envelope version this package writes or opens.
const BlobVersion = 1

// NonceSize is the AES-GCM nonce length.
const NonceSize = 12

var (
	errShortKey  = errors.New("wrap key must be 32 bytes")
	errBadBlob   = errors.New("encrypted blob fields have wrong lengths")
	errNilSecret = errors.New("wrap key destroyed")
)

// Blob is the persisted envelope {v, salt, iter, nonce, ct}. Byte fields
// are base64 in JSON. Ciphertext includes the 16-byte GCM tag. Iterations
// is the wrap-key PBKDF2 count; zero reads as DefaultIterations.
type Blob struct {
	Version    int    `json:"v"`
	Salt       []byte `json:"salt"`
	Iterations int    `json:"iter,omitempty"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ct"`
}

// Seal derives a wrap key from password under a fresh salt distinct from
// verifierSalt and encrypts plaintext. The derived key is returned so the
// caller can cache it for later re-encryption; the caller owns it.
func Seal(plaintext []byte, password string, verifierSalt []byte) (*Blob, *Secret, error) {
	salt, err := NewWrapSalt(verifierSalt)
	if err != nil {
		return nil, nil, err
	}
	iter := iterations
	key := DeriveWrapKey(password, salt, iter)
	blob, err := SealWithKey(plaintext, key, salt, iter)
	if err != nil {
		key.Destroy()
		return nil, nil, err
	}
	return blob, key, nil
}

// SealWithKey encrypts plaintext with a cached wrap key. salt and iter are
// the parameters the key was derived with; both are recorded in the
// envelope so the key can be re-derived from the password later.
func SealWithKey(plaintext []byte, key *Secret, salt []byte, iter int) (*Blob, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := RandomBytes(NonceSize)
	if err != nil {
		return nil, walleterr.Wrap(err, "drawing nonce")
	}
	ct := aead.Seal(nil, nonce, plaintext, aad(BlobVersion))
	return &Blob{
		Version:    BlobVersion,
		Salt:       append([]byte(nil), salt...),
		Iterations: iter,
		Nonce:      nonce,
		Ciphertext: ct,
	}, nil
}

// Open derives the wrap key from password and decrypts blob. A wrong
// password surfaces as ErrAuthFailed; the blob is never modified.
func Open(blob *Blob, password string) ([]byte, *Secret, error) {
	if err := blob.Validate(); err != nil {
		return nil, nil, err
	}
	key := DeriveWrapKey(password, blob.Salt, blob.Iterations)
	pt, err := OpenWithKey(blob, key)
	if err != nil {
		key.Destroy()
		if walleterr.Is(err, walleterr.ErrDecryptFailed) {
			return nil, nil, walleterr.WrapAs(walleterr.ErrAuthFailed, err)
		}
		return nil, nil, err
	}
	return pt, key, nil
}

// OpenWithKey decrypts blob with an already derived key.
func OpenWithKey(blob *Blob, key *Secret) ([]byte, error) {
	if err := blob.Validate(); err != nil {
		return nil, err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, aad(byte(blob.Version)))
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrDecryptFailed, err)
	}
	return pt, nil
}

// Validate checks version and field lengths. Envelopes of any other
// version are refused as legacy.
func (b *Blob) Validate() error {
	if b == nil {
		return walleterr.WrapAs(walleterr.ErrStorageCorrupt, errBadBlob)
	}
	if b.Version != BlobVersion {
		return walleterr.ErrLegacyBlob
	}
	if len(b.Salt) != SaltSize || len(b.Nonce) != NonceSize || len(b.Ciphertext) < 16 || b.Iterations < 0 {
		return walleterr.WrapAs(walleterr.ErrStorageCorrupt, errBadBlob)
	}
	return nil
}

// Marshal encodes the envelope as JSON.
func (b *Blob) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// ParseBlob decodes a persisted envelope. Anything that is not a JSON
// object carrying version 1 is reported as ErrLegacyBlob.
func ParseBlob(data []byte) (*Blob, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, walleterr.ErrLegacyBlob
	}
	var b Blob
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrLegacyBlob, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// LooksSealed reports whether data has the shape of an encrypted envelope.
func LooksSealed(data []byte) bool {
	var head struct {
		V  *int   `json:"v"`
		CT []byte `json:"ct"`
	}
	if json.Unmarshal(data, &head) != nil {
		return false
	}
	return head.V != nil && len(head.CT) > 0
}

func aad(version byte) []byte {
	return []byte{version}
}

func newAEAD(key *Secret) (cipher.AEAD, error) {
	if key == nil {
		return nil, walleterr.WrapAs(walleterr.ErrVaultLocked, errNilSecret)
	}
	k := key.Bytes()
	if k == nil {
		return nil, walleterr.WrapAs(walleterr.ErrVaultLocked, errNilSecret)
	}
	if len(k) != KeySize {
		return nil, walleterr.WrapAs(walleterr.ErrInternal, errShortKey)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, walleterr.Wrap(err, "creating cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, walleterr.Wrap(err, "creating GCM")
	}
	return aead, nil
}
