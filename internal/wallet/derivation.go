package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

const (
	// HardenedOffset marks a hardened child index.
	HardenedOffset uint32 = 0x80000000

	// CoinType is the SLIP-44 coin type of the account path.
	CoinType = 501

	// MaxAddressDerivation bounds per-wallet derived addresses.
	MaxAddressDerivation = 100000

	slip10Curve = "ed25519 seed"
)

var (
	errSeedLength     = errors.New("seed must be 16 to 64 bytes")
	errNotHardened    = errors.New("ed25519 admits only hardened children")
	errPathPrefix     = errors.New("path must start with m")
	errSecretLength   = errors.New("secret must be 32 bytes")
	errMalformedIndex = errors.New("malformed path segment")
)

// ExtendedKey is a SLIP-0010 node: a 32-byte secret and its chain code.
type ExtendedKey struct {
	Secret    []byte
	ChainCode []byte
}

// Wipe zeroes the node.
func (k *ExtendedKey) Wipe() {
	walletcrypto.Zero(k.Secret)
	walletcrypto.Zero(k.ChainCode)
}

// DerivationPath returns the canonical account path m/44'/501'/account'/0'.
func DerivationPath(account uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0'", CoinType, account)
}

// MasterKey computes I = HMAC-SHA512("ed25519 seed", seed).
func MasterKey(seed []byte) (*ExtendedKey, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidInput, errSeedLength)
	}
	return split(hmacSHA512([]byte(slip10Curve), seed)), nil
}

// Child derives the hardened child at index, which must carry HardenedOffset.
func (k *ExtendedKey) Child(index uint32) (*ExtendedKey, error) {
	if index < HardenedOffset {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidPath, errNotHardened)
	}
	data := make([]byte, 0, 37)
	data = append(data, 0x00)
	data = append(data, k.Secret...)
	data = binary.BigEndian.AppendUint32(data, index)
	defer walletcrypto.Zero(data)

	return split(hmacSHA512(k.ChainCode, data)), nil
}

// ParsePath parses "m/a'/b'/..." into hardened indices. Unhardened
// segments are rejected.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidPath, errPathPrefix)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h") || strings.HasSuffix(p, "H")
		if !hardened {
			return nil, walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrInvalidPath, errNotHardened), map[string]string{"segment": p})
		}
		n, err := strconv.ParseUint(p[:len(p)-1], 10, 31)
		if err != nil {
			return nil, walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrInvalidPath, errMalformedIndex), map[string]string{"segment": p})
		}
		out = append(out, uint32(n)|HardenedOffset)
	}
	return out, nil
}

// DeriveEd25519 walks path from the master node of seed and returns the
// final secret and chain code. The caller must zero both.
func DeriveEd25519(seed []byte, path string) (secret, chainCode []byte, err error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, nil, err
	}
	node, err := MasterKey(seed)
	if err != nil {
		return nil, nil, err
	}
	for _, idx := range indices {
		child, err := node.Child(idx)
		node.Wipe()
		if err != nil {
			return nil, nil, err
		}
		node = child
	}
	return node.Secret, node.ChainCode, nil
}

// KeypairFromSecret expands a 32-byte Ed25519 secret. The returned 64-byte
// secret key is secret || public and lives in a Secret the caller owns.
func KeypairFromSecret(secret []byte) (solana.PublicKey, *walletcrypto.Secret, error) {
	if len(secret) != ed25519.SeedSize {
		return solana.PublicKey{}, nil, walleterr.WrapAs(walleterr.ErrInvalidPrivateKey, errSecretLength)
	}
	priv := ed25519.NewKeyFromSeed(secret)
	defer walletcrypto.Zero(priv)

	var pub solana.PublicKey
	copy(pub[:], priv[ed25519.SeedSize:])
	return pub, walletcrypto.SecretFromBytes(priv), nil
}

// PublicKeyFromSecret returns only the public half for a 32-byte secret.
func PublicKeyFromSecret(secret []byte) (solana.PublicKey, error) {
	pub, sk, err := KeypairFromSecret(secret)
	if err != nil {
		return solana.PublicKey{}, err
	}
	sk.Destroy()
	return pub, nil
}

// DeriveAccount derives the address secret for account on the canonical
// path. The 32-byte secret is returned in a Secret the caller owns.
func DeriveAccount(seed []byte, account uint32) (solana.PublicKey, *walletcrypto.Secret, error) {
	if account >= MaxAddressDerivation {
		return solana.PublicKey{}, nil, walleterr.WithDetails(walleterr.ErrInvalidPath, map[string]string{"account": strconv.FormatUint(uint64(account), 10)})
	}
	secret, chainCode, err := DeriveEd25519(seed, DerivationPath(account))
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	defer walletcrypto.Zero(secret)
	walletcrypto.Zero(chainCode)

	pub, err := PublicKeyFromSecret(secret)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return pub, walletcrypto.SecretFromBytes(secret), nil
}

func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func split(i []byte) *ExtendedKey {
	return &ExtendedKey{Secret: i[:32], ChainCode: i[32:]}
}
