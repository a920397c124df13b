package wallet

import (
	"bytes"
	"crypto/ed25519"

	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/base58"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

type setDoc struct {
	Version int         `json:"version"`
	Active  string      `json:"active"`
	Wallets []recordDoc `json:"wallets"`
}

type recordDoc struct {
	Type Kind `json:"type"`
	Meta
	Mnemonic  string       `json:"mnemonic,omitempty"`
	Device    *Device      `json:"device,omitempty"`
	Addresses []addressDoc `json:"addresses"`
}

type addressDoc struct {
	Index     uint32           `json:"index"`
	PublicKey solana.PublicKey `json:"publicKey"`
	Secret    []byte           `json:"secret,omitempty"`
}

func toDoc(r Record) recordDoc {
	d := recordDoc{Type: r.Kind(), Meta: *r.Meta()}
	for _, a := range r.Addresses() {
		ad := addressDoc{Index: a.Index, PublicKey: a.PublicKey}
		if a.HasSecret() {
			ad.Secret = a.secret.Bytes()
		}
		d.Addresses = append(d.Addresses, ad)
	}
	switch w := r.(type) {
	case *SeedWallet:
		if w.mnemonic != nil {
			d.Mnemonic = string(w.mnemonic.Bytes())
		}
	case *HardwareWallet:
		dev := w.Device
		d.Device = &dev
	}
	return d
}

func fromDoc(d recordDoc) (Record, error) {
	addrs := make([]Address, 0, len(d.Addresses))
	for _, ad := range d.Addresses {
		a := Address{Index: ad.Index, PublicKey: ad.PublicKey}
		if len(ad.Secret) > 0 {
			pub, err := PublicKeyFromSecret(ad.Secret)
			if err != nil {
				return nil, err
			}
			if pub != ad.PublicKey {
				return nil, walleterr.WithDetails(walleterr.ErrKeyMismatch, map[string]string{"address": ad.PublicKey.String()})
			}
			a.secret = walletcrypto.SecretFromBytes(ad.Secret)
			walletcrypto.Zero(ad.Secret)
		}
		addrs = append(addrs, a)
	}

	one := func() (Address, error) {
		if len(addrs) != 1 {
			return Address{}, walleterr.WithDetails(walleterr.ErrStorageCorrupt, map[string]string{"reason": "wallet must hold exactly one address"})
		}
		return addrs[0], nil
	}

	switch d.Type {
	case KindSeed:
		if d.Mnemonic == "" {
			return nil, walleterr.WithDetails(walleterr.ErrStorageCorrupt, map[string]string{"reason": "seed wallet without mnemonic"})
		}
		return &SeedWallet{meta: d.Meta, mnemonic: walletcrypto.SecretFromBytes([]byte(d.Mnemonic)), addresses: addrs}, nil
	case KindPrivateKey:
		a, err := one()
		if err != nil {
			return nil, err
		}
		if !a.HasSecret() {
			return nil, walleterr.WithDetails(walleterr.ErrStorageCorrupt, map[string]string{"reason": "imported wallet without secret"})
		}
		return &KeyWallet{meta: d.Meta, address: a}, nil
	case KindHardware:
		dev := Device{}
		if d.Device != nil {
			dev = *d.Device
		}
		return &HardwareWallet{meta: d.Meta, Device: dev, addresses: publicOnly(addrs)}, nil
	case KindWatchOnly:
		a, err := one()
		if err != nil {
			return nil, err
		}
		return &WatchWallet{meta: d.Meta, address: Address{PublicKey: a.PublicKey}}, nil
	default:
		return nil, walleterr.WithDetails(walleterr.ErrStorageCorrupt, map[string]string{"type": string(d.Type)})
	}
}

func encodeSecretKey(secret []byte, pub solana.PublicKey) string {
	buf := make([]byte, 0, ed25519.PrivateKeySize)
	buf = append(buf, secret...)
	buf = append(buf, pub[:]...)
	defer walletcrypto.Zero(buf)
	return base58.Encode(buf)
}

// InputFormat is the detected form of user-supplied import material.
type InputFormat int

const (
	// FormatUnknown indicates the input format could not be determined.
	FormatUnknown InputFormat = iota
	// FormatMnemonic indicates a BIP39 phrase.
	FormatMnemonic
	// FormatBase58Key indicates a base58 32- or 64-byte secret key.
	FormatBase58Key
	// FormatByteArray indicates a JSON array of 64 byte values.
	FormatByteArray
)

// String returns the string representation of the input format.
func (f InputFormat) String() string {
	switch f {
	case FormatMnemonic:
		return "mnemonic"
	case FormatBase58Key:
		return "base58"
	case FormatByteArray:
		return "byte-array"
	default:
		return "unknown"
	}
}

// DetectInputFormat classifies import input without validating it fully.
func DetectInputFormat(input string) InputFormat {
	input = string(bytes.TrimSpace([]byte(input)))
	switch {
	case input == "":
		return FormatUnknown
	case input[0] == '[':
		return FormatByteArray
	case isMnemonicFormat(input):
		return FormatMnemonic
	default:
		if b, err := base58.Decode(input); err == nil && (len(b) == 32 || len(b) == 64) {
			walletcrypto.Zero(b)
			return FormatBase58Key
		}
		return FormatUnknown
	}
}

// isMnemonicFormat checks if most words of input are wordlist words.
func isMnemonicFormat(input string) bool {
	words := bytes.Fields([]byte(NormalizeMnemonicInput(input)))
	if len(words) < 12 {
		return false
	}
	valid := 0
	for _, w := range words {
		if IsValidWord(string(w)) {
			valid++
		}
	}
	return valid >= len(words)/2
}
