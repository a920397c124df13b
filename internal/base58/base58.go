// Package base58 encodes and decodes the Bitcoin-alphabet base58 form used for
// account addresses and serialized private keys.
package base58

import (
	"strings"

	mrbase58 "github.com/mr-tron/base58"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Alphabet is the Bitcoin base58 alphabet.
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// AddressLength is the decoded length of an account address.
const AddressLength = 32

// Encode returns the base58 form of b. Leading zero bytes become leading '1's.
func Encode(b []byte) string {
	return mrbase58.Encode(b)
}

// Decode parses a base58 string.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "empty base58 string"})
	}
	if !inAlphabet(s) {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "character outside base58 alphabet"})
	}
	b, err := mrbase58.Decode(s)
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidInput, err)
	}
	return b, nil
}

// IsValidAddress reports whether s is a canonical encoding of a 32-byte key.
// All three checks are needed: the character set, the decoded length, and
// that re-encoding reproduces s exactly.
func IsValidAddress(s string) bool {
	if s == "" || !inAlphabet(s) {
		return false
	}
	b, err := mrbase58.Decode(s)
	if err != nil || len(b) != AddressLength {
		return false
	}
	return mrbase58.Encode(b) == s
}

// DecodeAddress decodes s and returns ErrInvalidAddress unless IsValidAddress holds.
func DecodeAddress(s string) ([AddressLength]byte, error) {
	var out [AddressLength]byte
	if !IsValidAddress(s) {
		return out, walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"address": s})
	}
	b, _ := mrbase58.Decode(s)
	copy(out[:], b)
	return out, nil
}

func inAlphabet(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
