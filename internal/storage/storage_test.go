package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMirror(t *testing.T) (*Mirror, *MemoryKV, *DurableStore) {
	t.Helper()
	fast := NewMemoryKV()
	durable, err := NewMemDurableStore()
	require.NoError(t, err)
	m, err := NewMirror(context.Background(), fast, durable)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, fast, durable
}

func TestKey(t *testing.T) {
	assert.Equal(t, "x1wallet_wallets", Key(KeyWallets))
	assert.Equal(t, "x1wallet_token-cache:w1:mainnet", Key(KeyTokenCache, "w1", "mainnet"))
	assert.True(t, IsSecretKey(Key(KeyWallets)))
	assert.True(t, IsSecretKey(Key(KeyAuth)))
	assert.False(t, IsSecretKey(Key(KeyHiddenTokens)))
}

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	value := []byte("v")
	require.NoError(t, kv.Put(ctx, Key("a"), value))
	value[0] = 'x'
	got, err := kv.Get(ctx, Key("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got, "stored value must not alias caller buffer")

	require.NoError(t, kv.Put(ctx, Key("b"), []byte("w")))
	require.NoError(t, kv.Put(ctx, "other", []byte("z")))
	keys, err := kv.Keys(ctx, Prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{Key("a"), Key("b")}, keys)

	require.NoError(t, kv.Delete(ctx, Key("a")))
	require.NoError(t, kv.Delete(ctx, Key("a")))
	_, err = kv.Get(ctx, Key("a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFastStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fast.json")

	f, err := OpenFastStore(path)
	require.NoError(t, err)
	require.NoError(t, f.Put(ctx, Key(KeyAutoLock), []byte("5")))
	require.NoError(t, f.Put(ctx, Key(KeyEncrypted), []byte("true")))
	require.NoError(t, f.Delete(ctx, Key(KeyEncrypted)))

	reopened, err := OpenFastStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, Key(KeyAutoLock))
	require.NoError(t, err)
	assert.Equal(t, []byte("5"), got)
	_, err = reopened.Get(ctx, Key(KeyEncrypted))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDurableStore(t *testing.T) {
	ctx := context.Background()
	d, err := NewMemDurableStore()
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	_, err = d.Get(ctx, Key(KeyWallets))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.Put(ctx, Key(KeyWallets), []byte(`{"version":1}`)))
	require.NoError(t, d.Put(ctx, Key(KeyAuth), []byte(`{}`)))
	keys, err := d.Keys(ctx, Prefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{Key(KeyWallets), Key(KeyAuth)}, keys)

	require.NoError(t, d.Delete(ctx, Key(KeyAuth)))
	_, err = d.Get(ctx, Key(KeyAuth))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDurableStore_OpenFile(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	d, err := OpenDurableStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, d.Path())
	require.NoError(t, d.Put(ctx, Key(KeyAutoLock), []byte("-1")))
	require.NoError(t, d.Close())

	d, err = OpenDurableStore(dir)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	got, err := d.Get(ctx, Key(KeyAutoLock))
	require.NoError(t, err)
	assert.Equal(t, []byte("-1"), got)
}

func TestMirror_SettlesByteIdentical(t *testing.T) {
	ctx := context.Background()
	m, fast, durable := newMirror(t)

	payload := []byte(`{"version":1,"wallets":[]}`)
	require.NoError(t, m.Put(ctx, Key(KeyWallets), payload))

	// read-your-writes on the fast store before the durable write settles
	got, err := fast.Get(ctx, Key(KeyWallets))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, m.Flush(ctx))
	durableGot, err := durable.Get(ctx, Key(KeyWallets))
	require.NoError(t, err)
	assert.Equal(t, payload, durableGot)

	require.NoError(t, m.Delete(ctx, Key(KeyWallets)))
	require.NoError(t, m.Flush(ctx))
	_, err = durable.Get(ctx, Key(KeyWallets))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMirror_FallbackBackfillsFast(t *testing.T) {
	ctx := context.Background()
	m, fast, durable := newMirror(t)

	require.NoError(t, durable.Put(ctx, Key(KeyAutoLock), []byte("30")))

	got, err := m.Get(ctx, Key(KeyAutoLock))
	require.NoError(t, err)
	assert.Equal(t, []byte("30"), got)

	backfilled, err := fast.Get(ctx, Key(KeyAutoLock))
	require.NoError(t, err)
	assert.Equal(t, []byte("30"), backfilled)

	_, err = m.Get(ctx, Key(KeyHiddenNFTs))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMirror_FastWinsOnStartup(t *testing.T) {
	ctx := context.Background()
	fast := NewMemoryKV()
	durable, err := NewMemDurableStore()
	require.NoError(t, err)

	require.NoError(t, fast.Put(ctx, Key(KeyAutoLock), []byte("5")))
	require.NoError(t, durable.Put(ctx, Key(KeyAutoLock), []byte("60")))
	require.NoError(t, durable.Put(ctx, Key(KeyHiddenTokens), []byte(`["m"]`)))

	m, err := NewMirror(ctx, fast, durable)
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	got, err := m.Get(ctx, Key(KeyAutoLock))
	require.NoError(t, err)
	assert.Equal(t, []byte("5"), got)

	onDisk, err := durable.Get(ctx, Key(KeyAutoLock))
	require.NoError(t, err)
	assert.Equal(t, []byte("5"), onDisk)

	keys, err := m.Keys(ctx, Prefix)
	require.NoError(t, err)
	assert.Contains(t, keys, Key(KeyHiddenTokens))
}

func TestMirror_ClosedRejectsWrites(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMirror(t)
	require.NoError(t, m.Put(ctx, Key(KeyAutoLock), []byte("1")))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.Error(t, m.Put(ctx, Key(KeyAutoLock), []byte("2")))
}

func TestOpen_ReopensFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.SetAutoLockMinutes(ctx, AutoLockNever))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Close())

	s, err = Open(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	minutes, err := s.AutoLockMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, AutoLockNever, minutes)
}
