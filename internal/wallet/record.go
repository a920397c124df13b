package wallet

import (
	"crypto/ed25519"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Kind tags a wallet record variant.
type Kind string

// Wallet record variants.
const (
	KindSeed       Kind = "seed"
	KindPrivateKey Kind = "private-key"
	KindHardware   Kind = "hardware"
	KindWatchOnly  Kind = "watch-only"
)

// MaxNameLength bounds display names.
const MaxNameLength = 64

// MaxAvatarBytes bounds avatar images kept in the wallet set.
const MaxAvatarBytes = 256 * 1024

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// Meta holds the attributes common to every variant.
type Meta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      []byte `json:"avatar,omitempty"`
	CreatedAt   int64  `json:"createdAt"` // epoch ms
	ActiveIndex int    `json:"activeIndex"`
}

func newMeta(name string) (Meta, error) {
	name, err := ValidateName(name)
	if err != nil {
		return Meta{}, err
	}
	return Meta{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UnixMilli(),
	}, nil
}

// ValidateName trims and checks a display name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(controlChars.ReplaceAllString(name, ""))
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, "wallet name must be 1-64 printable characters")
	}
	return name, nil
}

// Address is one account of a wallet. Hardware and watch-only addresses
// carry no secret.
type Address struct {
	Index     uint32
	PublicKey solana.PublicKey

	secret *walletcrypto.Secret // 32-byte Ed25519 secret
}

// HasSecret reports whether the address can sign locally.
func (a *Address) HasSecret() bool {
	return a.secret != nil && !a.secret.Destroyed()
}

func (a *Address) wipe() {
	a.secret.Destroy()
	a.secret = nil
}

// sign produces an Ed25519 signature over message. The expanded key exists
// only for the duration of the call.
func (a *Address) sign(message []byte) (solana.Signature, error) {
	if !a.HasSecret() {
		return solana.Signature{}, walleterr.ErrSignerMissing
	}
	priv := ed25519.NewKeyFromSeed(a.secret.Bytes())
	defer walletcrypto.Zero(priv)

	var sig solana.Signature
	copy(sig[:], ed25519.Sign(priv, message))
	if !ed25519.Verify(ed25519.PublicKey(a.PublicKey[:]), message, sig[:]) {
		return solana.Signature{}, walleterr.ErrSignatureInvalid
	}
	return sig, nil
}

// Record is one of SeedWallet, KeyWallet, HardwareWallet or WatchWallet.
type Record interface {
	Kind() Kind
	Meta() *Meta
	Addresses() []Address
	CanSign() bool

	wipe()
	redacted() Record
}

// SeedWallet owns a mnemonic and 0..N addresses derived from it.
type SeedWallet struct {
	meta      Meta
	mnemonic  *walletcrypto.Secret
	addresses []Address
}

// KeyWallet owns exactly one imported keypair.
type KeyWallet struct {
	meta    Meta
	address Address
}

// Device describes a paired hardware signer.
type Device struct {
	Vendor    string `json:"vendor"`
	Model     string `json:"model,omitempty"`
	Transport string `json:"transport,omitempty"`
	Path      string `json:"path,omitempty"`
}

// HardwareWallet holds public keys only; signing happens on the device.
type HardwareWallet struct {
	meta      Meta
	Device    Device
	addresses []Address
}

// WatchWallet observes a single public key and cannot sign.
type WatchWallet struct {
	meta    Meta
	address Address
}

// NewSeedWallet validates phrase and derives accounts addresses from it.
func NewSeedWallet(name, phrase string, accounts int) (*SeedWallet, error) {
	if accounts < 1 || accounts > MaxAddressDerivation {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "account count out of range"})
	}
	meta, err := newMeta(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateMnemonic(phrase); err != nil {
		return nil, err
	}
	w := &SeedWallet{
		meta:     meta,
		mnemonic: walletcrypto.SecretFromBytes([]byte(NormalizeMnemonicInput(phrase))),
	}
	for i := 0; i < accounts; i++ {
		if _, err := w.AddAddress(); err != nil {
			w.wipe()
			return nil, err
		}
	}
	return w, nil
}

// Kind implements Record.
func (w *SeedWallet) Kind() Kind { return KindSeed }

// Meta implements Record.
func (w *SeedWallet) Meta() *Meta { return &w.meta }

// Addresses implements Record.
func (w *SeedWallet) Addresses() []Address { return w.addresses }

// CanSign implements Record.
func (w *SeedWallet) CanSign() bool { return w.mnemonic != nil }

// Mnemonic returns the phrase for explicit user-initiated export.
func (w *SeedWallet) Mnemonic() (string, error) {
	if w.mnemonic == nil || w.mnemonic.Destroyed() {
		return "", walleterr.ErrVaultLocked
	}
	return string(w.mnemonic.Bytes()), nil
}

// AddAddress derives the next account on m/44'/501'/n'/0'.
func (w *SeedWallet) AddAddress() (*Address, error) {
	if w.mnemonic == nil || w.mnemonic.Destroyed() {
		return nil, walleterr.ErrVaultLocked
	}
	next := uint32(0)
	if n := len(w.addresses); n > 0 {
		next = w.addresses[n-1].Index + 1
	}
	seed, err := MnemonicToSeed(string(w.mnemonic.Bytes()), "")
	if err != nil {
		return nil, err
	}
	defer walletcrypto.Zero(seed)

	pub, secret, err := DeriveAccount(seed, next)
	if err != nil {
		return nil, err
	}
	w.addresses = append(w.addresses, Address{Index: next, PublicKey: pub, secret: secret})
	return &w.addresses[len(w.addresses)-1], nil
}

func (w *SeedWallet) wipe() {
	w.mnemonic.Destroy()
	w.mnemonic = nil
	for i := range w.addresses {
		w.addresses[i].wipe()
	}
}

func (w *SeedWallet) redacted() Record {
	return &SeedWallet{meta: w.meta, addresses: publicOnly(w.addresses)}
}

// NewKeyWallet imports a 32-byte secret.
func NewKeyWallet(name string, secret []byte) (*KeyWallet, error) {
	meta, err := newMeta(name)
	if err != nil {
		return nil, err
	}
	pub, err := PublicKeyFromSecret(secret)
	if err != nil {
		return nil, err
	}
	return &KeyWallet{
		meta:    meta,
		address: Address{PublicKey: pub, secret: walletcrypto.SecretFromBytes(secret)},
	}, nil
}

// Kind implements Record.
func (w *KeyWallet) Kind() Kind { return KindPrivateKey }

// Meta implements Record.
func (w *KeyWallet) Meta() *Meta { return &w.meta }

// Addresses implements Record.
func (w *KeyWallet) Addresses() []Address { return []Address{w.address} }

// CanSign implements Record.
func (w *KeyWallet) CanSign() bool { return w.address.HasSecret() }

func (w *KeyWallet) wipe() { w.address.wipe() }

func (w *KeyWallet) redacted() Record {
	return &KeyWallet{meta: w.meta, address: Address{PublicKey: w.address.PublicKey}}
}

// NewHardwareWallet records a paired device's public keys.
func NewHardwareWallet(name string, device Device, pubkeys ...solana.PublicKey) (*HardwareWallet, error) {
	meta, err := newMeta(name)
	if err != nil {
		return nil, err
	}
	if len(pubkeys) == 0 || strings.TrimSpace(device.Vendor) == "" {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "hardware wallet needs a device and a public key"})
	}
	w := &HardwareWallet{meta: meta, Device: device}
	for i, pk := range pubkeys {
		w.addresses = append(w.addresses, Address{Index: uint32(i), PublicKey: pk})
	}
	return w, nil
}

// Kind implements Record.
func (w *HardwareWallet) Kind() Kind { return KindHardware }

// Meta implements Record.
func (w *HardwareWallet) Meta() *Meta { return &w.meta }

// Addresses implements Record.
func (w *HardwareWallet) Addresses() []Address { return w.addresses }

// CanSign implements Record. Hardware signing is out of process.
func (w *HardwareWallet) CanSign() bool { return false }

func (w *HardwareWallet) wipe() {}

func (w *HardwareWallet) redacted() Record {
	c := *w
	c.addresses = publicOnly(w.addresses)
	return &c
}

// NewWatchWallet records a public key to observe.
func NewWatchWallet(name string, pub solana.PublicKey) (*WatchWallet, error) {
	meta, err := newMeta(name)
	if err != nil {
		return nil, err
	}
	return &WatchWallet{meta: meta, address: Address{PublicKey: pub}}, nil
}

// Kind implements Record.
func (w *WatchWallet) Kind() Kind { return KindWatchOnly }

// Meta implements Record.
func (w *WatchWallet) Meta() *Meta { return &w.meta }

// Addresses implements Record.
func (w *WatchWallet) Addresses() []Address { return []Address{w.address} }

// CanSign implements Record.
func (w *WatchWallet) CanSign() bool { return false }

func (w *WatchWallet) wipe() {}

func (w *WatchWallet) redacted() Record {
	c := *w
	return &c
}

func publicOnly(in []Address) []Address {
	out := make([]Address, len(in))
	for i, a := range in {
		out[i] = Address{Index: a.Index, PublicKey: a.PublicKey}
	}
	return out
}

// ActiveAddress returns the record's selected address.
func ActiveAddress(r Record) (Address, bool) {
	addrs := r.Addresses()
	idx := r.Meta().ActiveIndex
	if idx < 0 || idx >= len(addrs) {
		return Address{}, false
	}
	return addrs[idx], true
}
