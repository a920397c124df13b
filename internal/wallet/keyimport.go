package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"

	"github.com/x1wallet/walletcore/internal/base58"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

var (
	errKeyLength    = errors.New("secret key must be 32 or 64 bytes")
	errByteArray    = errors.New("byte array must hold 64 values in 0..255")
	errPublicSuffix = errors.New("public half does not match secret")
)

// ParsePrivateKey accepts a base58 64-byte secret key (secret || public), a
// base58 32-byte secret, or a JSON array of 64 byte values, and returns the
// 32-byte secret. For 64-byte forms the public half must match.
func ParsePrivateKey(input string) (*walletcrypto.Secret, error) {
	var raw []byte
	switch DetectInputFormat(input) {
	case FormatByteArray:
		var nums []int
		if err := json.Unmarshal(bytes.TrimSpace([]byte(input)), &nums); err != nil {
			return nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, err)
		}
		if len(nums) != ed25519.PrivateKeySize {
			return nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, errByteArray)
		}
		raw = make([]byte, len(nums))
		for i, n := range nums {
			if n < 0 || n > 255 {
				walletcrypto.Zero(raw)
				return nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, errByteArray)
			}
			raw[i] = byte(n)
			nums[i] = 0
		}
	case FormatBase58Key:
		b, err := base58.Decode(string(bytes.TrimSpace([]byte(input))))
		if err != nil {
			return nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, err)
		}
		raw = b
	default:
		return nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, errKeyLength)
	}
	defer walletcrypto.Zero(raw)

	switch len(raw) {
	case ed25519.SeedSize:
		return walletcrypto.SecretFromBytes(raw), nil
	case ed25519.PrivateKeySize:
		pub, err := PublicKeyFromSecret(raw[:32])
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pub[:], raw[32:]) {
			return nil, walleterr.WrapAs(walleterr.ErrKeyMismatch, errPublicSuffix)
		}
		return walletcrypto.SecretFromBytes(raw[:32]), nil
	default:
		return nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, errKeyLength)
	}
}

// ImportPrivateKey parses input and builds a KeyWallet from it.
func ImportPrivateKey(name, input string) (*KeyWallet, error) {
	secret, err := ParsePrivateKey(input)
	if err != nil {
		return nil, err
	}
	defer secret.Destroy()
	return NewKeyWallet(name, secret.Bytes())
}
