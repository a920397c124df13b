package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"time"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// AutoLockNever disables the idle timer.
const AutoLockNever = -1

// DefaultAutoLockMinutes applies when no auto-lock value is stored.
const DefaultAutoLockMinutes = 15

// File names under the data directory.
const (
	fastFile   = "fast.json"
	durableDir = "durable"
)

// Store is the typed view over the mirrored key-value stores.
type Store struct {
	kv KV
}

// NewStore wraps an existing KV. Tests pass a MemoryKV.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Open opens the fast snapshot and the durable database under dir and
// mirrors them.
func Open(ctx context.Context, dir string) (*Store, error) {
	fast, err := OpenFastStore(filepath.Join(dir, fastFile))
	if err != nil {
		return nil, walleterr.Wrap(err, "opening fast store")
	}
	durable, err := OpenDurableStore(filepath.Join(dir, durableDir))
	if err != nil {
		return nil, walleterr.Wrap(err, "opening durable store")
	}
	m, err := NewMirror(ctx, fast, durable)
	if err != nil {
		_ = durable.Close()
		return nil, walleterr.Wrap(err, "reconciling stores")
	}
	return &Store{kv: m}, nil
}

// KV exposes the underlying key-value store.
func (s *Store) KV() KV {
	return s.kv
}

// Flush waits for pending durable writes when the store is mirrored.
func (s *Store) Flush(ctx context.Context) error {
	if m, ok := s.kv.(*Mirror); ok {
		return m.Flush(ctx)
	}
	return nil
}

// Close closes the underlying stores.
func (s *Store) Close() error {
	return s.kv.Close()
}

// GetRaw returns the raw value under the namespaced key.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, walleterr.Wrap(err, "reading %s", key)
	}
	return v, true, nil
}

// PutRaw stores value under the namespaced key.
func (s *Store) PutRaw(ctx context.Context, key string, value []byte) error {
	if err := s.kv.Put(ctx, key, value); err != nil {
		return walleterr.Wrap(err, "writing %s", key)
	}
	return nil
}

// DeleteKey removes the namespaced key.
func (s *Store) DeleteKey(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return walleterr.Wrap(err, "deleting %s", key)
	}
	return nil
}

// GetJSON decodes the value under key into v. It reports false when the key
// is missing.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, walleterr.WrapAs(walleterr.ErrStorageCorrupt, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under key.
func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return walleterr.Wrap(err, "encoding %s", key)
	}
	return s.PutRaw(ctx, key, raw)
}

// Wallets returns the raw wallet-set value.
func (s *Store) Wallets(ctx context.Context) ([]byte, bool, error) {
	return s.GetRaw(ctx, Key(KeyWallets))
}

// PutWallets overwrites the wallet-set value and the encrypted flag. The
// write order follows the direction of the change so a crash between the
// two writes never leaves an envelope without the flag: sealing sets the
// flag first, unsealing writes the plaintext first and clears the flag
// last. A stale flag over plaintext is repaired by Startup.
func (s *Store) PutWallets(ctx context.Context, data []byte, encrypted bool) error {
	if encrypted {
		if err := s.SetEncrypted(ctx, true); err != nil {
			return err
		}
		return s.PutRaw(ctx, Key(KeyWallets), data)
	}
	if err := s.PutRaw(ctx, Key(KeyWallets), data); err != nil {
		return err
	}
	return s.SetEncrypted(ctx, false)
}

// ClearWallets removes the wallet set and every secret-bearing key.
func (s *Store) ClearWallets(ctx context.Context) error {
	for _, k := range []string{Key(KeyWallets), Key(KeyAuth), Key(KeyEncrypted)} {
		if err := s.DeleteKey(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Encrypted reports the persisted encrypted flag.
func (s *Store) Encrypted(ctx context.Context) (bool, error) {
	var b bool
	_, err := s.GetJSON(ctx, Key(KeyEncrypted), &b)
	return b, err
}

// SetEncrypted persists the encrypted flag.
func (s *Store) SetEncrypted(ctx context.Context, on bool) error {
	return s.PutJSON(ctx, Key(KeyEncrypted), on)
}

// Verifier loads the persisted password verifier, or nil when none exists.
func (s *Store) Verifier(ctx context.Context) (*walletcrypto.Verifier, error) {
	var v walletcrypto.Verifier
	ok, err := s.GetJSON(ctx, Key(KeyAuth), &v)
	if err != nil || !ok {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// PutVerifier persists the password verifier.
func (s *Store) PutVerifier(ctx context.Context, v *walletcrypto.Verifier) error {
	return s.PutJSON(ctx, Key(KeyAuth), v)
}

// DeleteVerifier erases the password verifier.
func (s *Store) DeleteVerifier(ctx context.Context) error {
	return s.DeleteKey(ctx, Key(KeyAuth))
}

// PasswordProtection reports the persisted protection policy.
func (s *Store) PasswordProtection(ctx context.Context) (bool, error) {
	var b bool
	_, err := s.GetJSON(ctx, Key(KeyPasswordProtection), &b)
	return b, err
}

// SetPasswordProtection persists the protection policy.
func (s *Store) SetPasswordProtection(ctx context.Context, on bool) error {
	return s.PutJSON(ctx, Key(KeyPasswordProtection), on)
}

// AutoLockMinutes returns the idle duration in minutes, AutoLockNever, or
// the default when unset.
func (s *Store) AutoLockMinutes(ctx context.Context) (int, error) {
	m := DefaultAutoLockMinutes
	if _, err := s.GetJSON(ctx, Key(KeyAutoLock), &m); err != nil {
		return DefaultAutoLockMinutes, err
	}
	return m, nil
}

// SetAutoLockMinutes persists the idle duration. Values below -1 are
// rejected.
func (s *Store) SetAutoLockMinutes(ctx context.Context, minutes int) error {
	if minutes < AutoLockNever {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"auto-lock": "must be -1 or non-negative"})
	}
	return s.PutJSON(ctx, Key(KeyAutoLock), minutes)
}

// LastActivity returns the persisted last-activity time, zero when unset.
func (s *Store) LastActivity(ctx context.Context) (time.Time, error) {
	var ms int64
	ok, err := s.GetJSON(ctx, Key(KeyLastActivity), &ms)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// SetLastActivity persists t as epoch milliseconds.
func (s *Store) SetLastActivity(ctx context.Context, t time.Time) error {
	return s.PutJSON(ctx, Key(KeyLastActivity), t.UnixMilli())
}

// Hidden returns the sorted members of a hidden-item set.
func (s *Store) Hidden(ctx context.Context, set string) ([]string, error) {
	if err := checkHiddenSet(set); err != nil {
		return nil, err
	}
	var items []string
	if _, err := s.GetJSON(ctx, Key(set), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetHidden adds or removes item from a hidden-item set.
func (s *Store) SetHidden(ctx context.Context, set, item string, hidden bool) error {
	items, err := s.Hidden(ctx, set)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearch(items, item)
	switch {
	case hidden && !found:
		items = slices.Insert(items, i, item)
	case !hidden && found:
		items = slices.Delete(items, i, i+1)
	default:
		return nil
	}
	return s.PutJSON(ctx, Key(set), items)
}

func checkHiddenSet(set string) error {
	switch set {
	case KeyHiddenWallets, KeyHiddenTokens, KeyHiddenNFTs:
		return nil
	}
	return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"set": set})
}

// CustomToken is a user-added token entry for one network.
type CustomToken struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
	Program  string `json:"program,omitempty"`
}

// CustomTokens returns the custom tokens for network.
func (s *Store) CustomTokens(ctx context.Context, network string) ([]CustomToken, error) {
	var out []CustomToken
	_, err := s.GetJSON(ctx, Key(KeyCustomTokens, network), &out)
	return out, err
}

// PutCustomToken adds or replaces (by mint) a custom token for network.
func (s *Store) PutCustomToken(ctx context.Context, network string, tok CustomToken) error {
	list, err := s.CustomTokens(ctx, network)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(list, func(t CustomToken) bool { return t.Mint == tok.Mint })
	if i >= 0 {
		list[i] = tok
	} else {
		list = append(list, tok)
	}
	return s.PutJSON(ctx, Key(KeyCustomTokens, network), list)
}

// RemoveCustomToken deletes the custom token with mint from network.
func (s *Store) RemoveCustomToken(ctx context.Context, network, mint string) error {
	list, err := s.CustomTokens(ctx, network)
	if err != nil {
		return err
	}
	list = slices.DeleteFunc(list, func(t CustomToken) bool { return t.Mint == mint })
	return s.PutJSON(ctx, Key(KeyCustomTokens, network), list)
}

// CustomRPC is a user-configured endpoint.
type CustomRPC struct {
	Name    string `json:"name"`
	Network string `json:"network"`
	URL     string `json:"url"`
}

// CustomRPCs returns the configured custom endpoints.
func (s *Store) CustomRPCs(ctx context.Context) ([]CustomRPC, error) {
	var out []CustomRPC
	_, err := s.GetJSON(ctx, Key(KeyCustomRPCs), &out)
	return out, err
}

// SetCustomRPCs replaces the custom endpoint list.
func (s *Store) SetCustomRPCs(ctx context.Context, rpcs []CustomRPC) error {
	return s.PutJSON(ctx, Key(KeyCustomRPCs), rpcs)
}
