package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

func secret32(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func newTestSet(t *testing.T) (*Set, *SeedWallet, *KeyWallet, *WatchWallet, *HardwareWallet) {
	t.Helper()
	seed, err := NewSeedWallet("Main", abandonAbout, 2)
	require.NoError(t, err)
	key, err := NewKeyWallet("Imported", secret32(0xAA))
	require.NoError(t, err)
	watch, err := NewWatchWallet("Watch", solana.SystemProgramID)
	require.NoError(t, err)
	hw, err := NewHardwareWallet("Ledger", Device{Vendor: "ledger", Model: "nano-x"}, solana.TokenProgramID)
	require.NoError(t, err)

	s := NewSet()
	s.Add(seed)
	s.Add(key)
	s.Add(watch)
	s.Add(hw)
	return s, seed, key, watch, hw
}

func TestSet_AddAndActive(t *testing.T) {
	t.Parallel()
	s, seed, key, _, _ := newTestSet(t)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, seed.Meta().ID, s.ActiveID())

	require.NoError(t, s.SetActive(key.Meta().ID))
	pub, err := s.ActivePublicKey()
	require.NoError(t, err)
	assert.Equal(t, key.Addresses()[0].PublicKey, pub)

	require.ErrorIs(t, s.SetActive("missing"), walleterr.ErrWalletNotFound)
}

func TestSet_SignAndVerify(t *testing.T) {
	t.Parallel()
	s, seed, key, watch, hw := newTestSet(t)
	msg := []byte("hello")

	for _, pub := range []solana.PublicKey{seed.Addresses()[0].PublicKey, seed.Addresses()[1].PublicKey, key.Addresses()[0].PublicKey} {
		sig, err := s.Sign(pub, msg)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(pub[:], msg, sig[:]))
	}

	_, err := s.Sign(watch.Addresses()[0].PublicKey, msg)
	require.ErrorIs(t, err, walleterr.ErrUnsupported)
	_, err = s.Sign(hw.Addresses()[0].PublicKey, msg)
	require.ErrorIs(t, err, walleterr.ErrUnsupported)
	_, err = s.Sign(solana.WrappedSol, msg)
	require.ErrorIs(t, err, walleterr.ErrSignerMissing)
}

func TestSet_MarshalRoundTripIsByteIdentical(t *testing.T) {
	t.Parallel()
	s, seed, _, _, _ := newTestSet(t)
	require.NoError(t, s.SetAvatar(seed.Meta().ID, []byte{1, 2, 3}))

	first, err := json.Marshal(s)
	require.NoError(t, err)

	parsed, err := ParseSet(first)
	require.NoError(t, err)
	second, err := json.Marshal(parsed)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, s.ActiveID(), parsed.ActiveID())

	sig, err := parsed.Sign(seed.Addresses()[1].PublicKey, []byte("m"))
	require.NoError(t, err)
	assert.True(t, seed.Addresses()[1].PublicKey.Verify([]byte("m"), sig))
}

func TestParseSet_RejectsMismatchedKey(t *testing.T) {
	t.Parallel()
	key, err := NewKeyWallet("Imported", secret32(0xAA))
	require.NoError(t, err)
	s := NewSet()
	s.Add(key)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	wallets := doc["wallets"].([]any)
	addr := wallets[0].(map[string]any)["addresses"].([]any)[0].(map[string]any)
	addr["publicKey"] = solana.SystemProgramID.String()
	tampered, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = ParseSet(tampered)
	require.ErrorIs(t, err, walleterr.ErrKeyMismatch)

	_, err = ParseSet([]byte("not json"))
	require.ErrorIs(t, err, walleterr.ErrStorageCorrupt)
}

func TestSet_RemoveWipesAndMovesActive(t *testing.T) {
	t.Parallel()
	s, seed, key, _, _ := newTestSet(t)
	pub := seed.Addresses()[0].PublicKey

	require.NoError(t, s.Remove(seed.Meta().ID))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, key.Meta().ID, s.ActiveID())
	assert.False(t, seed.CanSign())
	_, err := seed.Mnemonic()
	require.ErrorIs(t, err, walleterr.ErrVaultLocked)

	_, err = s.Sign(pub, []byte("x"))
	require.ErrorIs(t, err, walleterr.ErrSignerMissing)

	require.ErrorIs(t, s.Remove(seed.Meta().ID), walleterr.ErrWalletNotFound)
}

func TestSet_Reorder(t *testing.T) {
	t.Parallel()
	s, seed, key, watch, hw := newTestSet(t)

	order := []string{hw.Meta().ID, watch.Meta().ID, key.Meta().ID, seed.Meta().ID}
	require.NoError(t, s.Reorder(order))
	got := make([]string, 0, 4)
	for _, r := range s.Records() {
		got = append(got, r.Meta().ID)
	}
	assert.Equal(t, order, got)

	require.ErrorIs(t, s.Reorder(order[:3]), walleterr.ErrInvalidInput)
	require.ErrorIs(t, s.Reorder([]string{hw.Meta().ID, hw.Meta().ID, key.Meta().ID, seed.Meta().ID}), walleterr.ErrInvalidInput)
}

func TestSet_RenameAndAddresses(t *testing.T) {
	t.Parallel()
	s, seed, key, _, _ := newTestSet(t)

	require.NoError(t, s.Rename(seed.Meta().ID, "  Savings "))
	assert.Equal(t, "Savings", seed.Meta().Name)
	require.ErrorIs(t, s.Rename(seed.Meta().ID, "   "), walleterr.ErrInvalidInput)

	pub, err := s.AddDerivedAddress(seed.Meta().ID)
	require.NoError(t, err)
	assert.Len(t, seed.Addresses(), 3)
	assert.Equal(t, uint32(2), seed.Addresses()[2].Index)
	assert.Equal(t, pub, seed.Addresses()[2].PublicKey)

	_, err = s.AddDerivedAddress(key.Meta().ID)
	require.ErrorIs(t, err, walleterr.ErrUnsupported)

	require.NoError(t, s.SetActiveAddress(seed.Meta().ID, 2))
	active, err := s.ActivePublicKey()
	require.NoError(t, err)
	assert.Equal(t, pub, active)
	require.ErrorIs(t, s.SetActiveAddress(seed.Meta().ID, 3), walleterr.ErrInvalidInput)
}

func TestSet_RedactedAndWipe(t *testing.T) {
	t.Parallel()
	s, seed, _, _, _ := newTestSet(t)
	assert.True(t, s.HasSecrets())

	view := s.Redacted()
	assert.False(t, view.HasSecrets())
	assert.Equal(t, s.Len(), view.Len())
	_, err := view.Sign(seed.Addresses()[0].PublicKey, []byte("x"))
	require.ErrorIs(t, err, walleterr.ErrSignerMissing)

	s.Wipe()
	assert.Equal(t, 0, s.Len())
	assert.False(t, seed.CanSign())
}

func TestSet_ExportPrivateKey(t *testing.T) {
	t.Parallel()
	s, _, key, watch, _ := newTestSet(t)

	exported, err := s.ExportPrivateKey(key.Addresses()[0].PublicKey)
	require.NoError(t, err)

	reimported, err := ImportPrivateKey("Again", exported)
	require.NoError(t, err)
	assert.Equal(t, key.Addresses()[0].PublicKey, reimported.Addresses()[0].PublicKey)

	_, err = s.ExportPrivateKey(watch.Addresses()[0].PublicKey)
	require.ErrorIs(t, err, walleterr.ErrSignerMissing)
}
