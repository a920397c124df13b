package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/chain"
	"github.com/x1wallet/walletcore/internal/storage"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// fakeNode answers the calls the caches make. Other Node methods panic.
type fakeNode struct {
	chain.Node

	balance    uint64
	balanceErr error
	calls      int
	mints      map[solana.PublicKey]*chain.Account
	accounts   map[solana.PublicKey][]chain.KeyedAccount
}

func (f *fakeNode) Balance(context.Context, solana.PublicKey) (uint64, error) {
	f.calls++
	return f.balance, f.balanceErr
}

func (f *fakeNode) AccountInfo(_ context.Context, addr solana.PublicKey) (*chain.Account, error) {
	return f.mints[addr], nil
}

func (f *fakeNode) TokenAccountsByOwner(_ context.Context, _, mint solana.PublicKey) ([]chain.KeyedAccount, error) {
	return f.accounts[mint], nil
}

func newCache(t *testing.T) (*Cache, *storage.Store, *clock) {
	t.Helper()
	st := storage.NewStore(storage.NewMemoryKV())
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(st, WithClock(clk.now), WithSize(8)), st, clk
}

func TestBalanceCache_PutGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st, clk := newCache(t)

	_, _, ok, err := c.Balances.Get(ctx, "addr", "mainnet")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Balances.Put(ctx, "addr", "mainnet", Balance{Lamports: 42}))
	clk.t = clk.t.Add(time.Minute)

	b, age, ok, err := c.Balances.Get(ctx, "addr", "mainnet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), b.Lamports)
	assert.Equal(t, time.Minute, age)

	// A fresh cache over the same store reads the persisted entry.
	other := New(st, WithClock(clk.now))
	b, _, ok, err = other.Balances.Get(ctx, "addr", "mainnet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), b.Lamports)

	raw, ok, err := st.GetRaw(ctx, storage.Key(storage.KeyBalanceCache, "addr", "mainnet"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"lamports":42`)

	require.NoError(t, c.Balances.Delete(ctx, "addr", "mainnet"))
	_, _, ok, err = c.Balances.Get(ctx, "addr", "mainnet")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBalanceCache_Fetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, clk := newCache(t)
	owner := solana.NewWallet().PublicKey()
	node := &fakeNode{balance: 7}

	b, err := c.Balances.Fetch(ctx, node, owner, "testnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.Lamports)
	assert.Equal(t, 1, node.calls)

	// Fresh entries are served from memory.
	node.balance = 9
	b, err = c.Balances.Fetch(ctx, node, owner, "testnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.Lamports)
	assert.Equal(t, 1, node.calls)

	// Stale entries are refreshed.
	clk.t = clk.t.Add(DefaultStaleness + time.Second)
	b, err = c.Balances.Fetch(ctx, node, owner, "testnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), b.Lamports)

	// A failed refresh falls back to the stale value.
	clk.t = clk.t.Add(DefaultStaleness + time.Second)
	node.balanceErr = walleterr.ErrNetwork
	b, err = c.Balances.Fetch(ctx, node, owner, "testnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), b.Lamports)

	// With nothing cached the failure surfaces.
	_, err = c.Balances.Fetch(ctx, node, solana.NewWallet().PublicKey(), "testnet")
	assert.ErrorIs(t, err, walleterr.ErrNetwork)
}

func TestCache_CorruptEntryDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st, _ := newCache(t)
	key := storage.Key(storage.KeyTokenCache, "w1", "mainnet")
	require.NoError(t, st.PutRaw(ctx, key, []byte("{not json")))

	_, _, ok, err := c.Tokens.Get(ctx, "w1", "mainnet")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = st.GetRaw(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenCache_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, _ := newCache(t)

	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ata := solana.NewWallet().PublicKey()

	mintData := make([]byte, 82)
	mintData[mintDecimalsOffset] = 6
	acctData := make([]byte, 165)
	binary.LittleEndian.PutUint64(acctData[tokenAmountOffset:], 1_500_000)

	node := &fakeNode{
		mints:    map[solana.PublicKey]*chain.Account{mint: {Owner: solana.TokenProgramID, Data: mintData}},
		accounts: map[solana.PublicKey][]chain.KeyedAccount{mint: {
			{Pubkey: ata, Account: &chain.Account{Owner: solana.Token2022ProgramID, Data: acctData}},
			{Pubkey: solana.NewWallet().PublicKey(), Account: &chain.Account{Data: []byte{1}}},
		}},
	}

	holdings, err := c.Tokens.Refresh(ctx, node, "w1", "mainnet", owner, []solana.PublicKey{mint})
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, TokenHolding{
		Mint:     mint.String(),
		Account:  ata.String(),
		Program:  solana.Token2022ProgramID.String(),
		Amount:   1_500_000,
		Decimals: 6,
	}, holdings[0])

	cached, _, ok, err := c.Tokens.Get(ctx, "w1", "mainnet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, holdings, cached)

	_, err = c.Tokens.Refresh(ctx, node, "w1", "mainnet", owner, []solana.PublicKey{solana.NewWallet().PublicKey()})
	assert.ErrorIs(t, err, walleterr.ErrInvalidAddress)
}

func TestActivityCache_Record(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, clk := newCache(t)

	require.NoError(t, c.Activity.Record(ctx, "w1", "mainnet", Activity{Signature: "a", Kind: "send"}))
	require.NoError(t, c.Activity.Record(ctx, "w1", "mainnet", Activity{Signature: "b", Kind: "send"}))
	require.NoError(t, c.Activity.Record(ctx, "w1", "mainnet", Activity{Signature: "a", Kind: "send", Err: "failed"}))

	list, _, ok, err := c.Activity.Get(ctx, "w1", "mainnet")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Signature)
	assert.Equal(t, "failed", list[0].Err)
	assert.Equal(t, clk.t, list[0].Time)
	assert.Equal(t, "b", list[1].Signature)

	for i := range MaxActivity + 5 {
		require.NoError(t, c.Activity.Record(ctx, "w2", "mainnet", Activity{Signature: string(rune('A' + i%26)) + time.Duration(i).String()}))
	}
	list, _, _, err = c.Activity.Get(ctx, "w2", "mainnet")
	require.NoError(t, err)
	assert.Len(t, list, MaxActivity)
}

type failingBackend struct{ Backend }

func (failingBackend) PutJSON(context.Context, string, any) error { return errors.New("disk full") }

func TestCache_WriteFailureStillCachesInMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New(failingBackend{Backend: storage.NewStore(storage.NewMemoryKV())})

	require.Error(t, c.Balances.Put(ctx, "addr", "mainnet", Balance{Lamports: 1}))
	b, _, ok, err := c.Balances.Get(ctx, "addr", "mainnet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), b.Lamports)
}
