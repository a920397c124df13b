package wallet

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// SetVersion is the serialization version of the wallet set.
const SetVersion = 1

// Set is the ordered wallet set with a distinguished active wallet.
// It is safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	records  []Record
	activeID string
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Len returns the number of wallets.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns the wallets in user order.
func (s *Set) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Get returns the wallet with id.
func (s *Set) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *Set) get(id string) (Record, error) {
	for _, r := range s.records {
		if r.Meta().ID == id {
			return r, nil
		}
	}
	return nil, walleterr.WithDetails(walleterr.ErrWalletNotFound, map[string]string{"id": id})
}

// ActiveID returns the active wallet id, or "" for an empty set.
func (s *Set) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns the active wallet.
func (s *Set) Active() (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(s.activeID)
}

// ActivePublicKey returns the active address of the active wallet.
func (s *Set) ActivePublicKey() (solana.PublicKey, error) {
	r, err := s.Active()
	if err != nil {
		return solana.PublicKey{}, err
	}
	a, ok := ActiveAddress(r)
	if !ok {
		return solana.PublicKey{}, walleterr.ErrWalletNotFound
	}
	return a.PublicKey, nil
}

// Add appends r. The first wallet added becomes active.
func (s *Set) Add(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	if s.activeID == "" {
		s.activeID = r.Meta().ID
	}
}

// SetActive selects the active wallet.
func (s *Set) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	s.activeID = id
	return nil
}

// SetActiveAddress selects the active address within a wallet.
func (s *Set) SetActiveAddress(id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(r.Addresses()) {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "address index out of range"})
	}
	r.Meta().ActiveIndex = index
	return nil
}

// Rename changes a wallet's display name.
func (s *Set) Rename(id, name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id)
	if err != nil {
		return err
	}
	r.Meta().Name = name
	return nil
}

// SetAvatar replaces a wallet's avatar; nil clears it.
func (s *Set) SetAvatar(id string, avatar []byte) error {
	if len(avatar) > MaxAvatarBytes {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "avatar too large"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id)
	if err != nil {
		return err
	}
	r.Meta().Avatar = slices.Clone(avatar)
	return nil
}

// Reorder sets the user order. ids must be a permutation of the set.
func (s *Set) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) != len(s.records) {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "order must list every wallet once"})
	}
	next := make([]Record, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		r, err := s.get(id)
		if err != nil {
			return err
		}
		if seen[id] {
			return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "duplicate wallet in order"})
		}
		seen[id] = true
		next = append(next, r)
	}
	s.records = next
	return nil
}

// AddDerivedAddress derives the next address of a seed wallet.
func (s *Set) AddDerivedAddress(id string) (solana.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id)
	if err != nil {
		return solana.PublicKey{}, err
	}
	sw, ok := r.(*SeedWallet)
	if !ok {
		return solana.PublicKey{}, walleterr.ErrUnsupported
	}
	a, err := sw.AddAddress()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return a.PublicKey, nil
}

// Remove deletes a wallet and erases its secret material. The active
// wallet moves to the first remaining wallet.
func (s *Set) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.records, func(r Record) bool { return r.Meta().ID == id })
	if idx < 0 {
		return walleterr.WithDetails(walleterr.ErrWalletNotFound, map[string]string{"id": id})
	}
	s.records[idx].wipe()
	s.records = slices.Delete(s.records, idx, idx+1)
	if s.activeID == id {
		s.activeID = ""
		if len(s.records) > 0 {
			s.activeID = s.records[0].Meta().ID
		}
	}
	return nil
}

// Owns reports whether pub belongs to a wallet of the set and whether that
// wallet can sign locally.
func (s *Set) Owns(pub solana.PublicKey) (owned, canSign bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, a := s.find(pub)
	if r == nil {
		return false, false
	}
	return true, r.CanSign() && a.HasSecret()
}

func (s *Set) find(pub solana.PublicKey) (Record, *Address) {
	for _, r := range s.records {
		addrs := r.Addresses()
		for i := range addrs {
			if addrs[i].PublicKey == pub {
				return r, &addrs[i]
			}
		}
	}
	return nil, nil
}

// Sign signs message with the secret of pub. Hardware and watch-only
// wallets report ErrUnsupported before any work is done.
func (s *Set) Sign(pub solana.PublicKey, message []byte) (solana.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, a := s.find(pub)
	if r == nil {
		return solana.Signature{}, walleterr.WithDetails(walleterr.ErrSignerMissing, map[string]string{"signer": pub.String()})
	}
	if r.Kind() == KindHardware || r.Kind() == KindWatchOnly {
		return solana.Signature{}, walleterr.WithDetails(walleterr.ErrUnsupported, map[string]string{"wallet": string(r.Kind())})
	}
	return a.sign(message)
}

// ExportPrivateKey returns the base58 64-byte secret key of an address.
// This is the only plaintext egress of a private key besides signing.
func (s *Set) ExportPrivateKey(pub solana.PublicKey) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, a := s.find(pub)
	if r == nil || !a.HasSecret() {
		return "", walleterr.ErrSignerMissing
	}
	return encodeSecretKey(a.secret.Bytes(), a.PublicKey), nil
}

// Wipe erases every secret in the set and empties it.
func (s *Set) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		r.wipe()
	}
	s.records = nil
	s.activeID = ""
}

// Redacted returns a copy of the set with every secret stripped, for
// display while the vault is locked.
func (s *Set) Redacted() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Set{activeID: s.activeID}
	for _, r := range s.records {
		out.records = append(out.records, r.redacted())
	}
	return out
}

// HasSecrets reports whether any record still holds private material.
func (s *Set) HasSecrets() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if sw, ok := r.(*SeedWallet); ok && sw.mnemonic != nil {
			return true
		}
		for _, a := range r.Addresses() {
			if a.HasSecret() {
				return true
			}
		}
	}
	return false
}

// MarshalJSON implements json.Marshaler. The output contains secrets; the
// caller must zero it after use.
func (s *Set) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := setDoc{Version: SetVersion, Active: s.activeID, Wallets: make([]recordDoc, 0, len(s.records))}
	for _, r := range s.records {
		doc.Wallets = append(doc.Wallets, toDoc(r))
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler. Every stored public key of a
// keyed address is checked against the key recomputed from its secret.
func (s *Set) UnmarshalJSON(data []byte) error {
	var doc setDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return walleterr.WrapAs(walleterr.ErrStorageCorrupt, err)
	}
	if doc.Version != SetVersion {
		return walleterr.WithDetails(walleterr.ErrStorageCorrupt, map[string]string{"reason": "unknown wallet set version"})
	}
	records := make([]Record, 0, len(doc.Wallets))
	for _, d := range doc.Wallets {
		r, err := fromDoc(d)
		if err != nil {
			for _, done := range records {
				done.wipe()
			}
			return err
		}
		records = append(records, r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.activeID = doc.Active
	return nil
}

// ParseSet decodes a plaintext wallet set.
func ParseSet(data []byte) (*Set, error) {
	s := NewSet()
	if err := json.Unmarshal(data, s); err != nil {
		if walleterr.KindOf(err) == walleterr.KindInternal && !walleterr.Is(err, walleterr.ErrStorageCorrupt) {
			return nil, walleterr.WrapAs(walleterr.ErrStorageCorrupt, err)
		}
		return nil, err
	}
	return s, nil
}
