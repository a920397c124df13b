package txn_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/chain"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// keySigner signs with in-memory Ed25519 keys. Keys in watch are owned but
// cannot sign.
type keySigner struct {
	keys    map[solana.PublicKey]ed25519.PrivateKey
	watch   map[solana.PublicKey]bool
	session context.Context
	cancel  context.CancelFunc
	signed  int
}

func newKeySigner(t *testing.T, n int) (*keySigner, []solana.PublicKey) {
	t.Helper()
	s := &keySigner{keys: map[solana.PublicKey]ed25519.PrivateKey{}, watch: map[solana.PublicKey]bool{}}
	s.session, s.cancel = context.WithCancel(context.Background())
	t.Cleanup(s.cancel)

	pubs := make([]solana.PublicKey, n)
	for i := range pubs {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		pubs[i] = solana.PublicKeyFromBytes(pub)
		s.keys[pubs[i]] = priv
	}
	return s, pubs
}

func (s *keySigner) Sign(pub solana.PublicKey, message []byte) (solana.Signature, error) {
	priv, ok := s.keys[pub]
	if !ok {
		return solana.Signature{}, walleterr.ErrSignerMissing
	}
	s.signed++
	return solana.SignatureFromBytes(ed25519.Sign(priv, message)), nil
}

func (s *keySigner) Owns(pub solana.PublicKey) (owned, canSign bool) {
	if s.watch[pub] {
		return true, false
	}
	_, ok := s.keys[pub]
	return ok, ok
}

func (s *keySigner) Session() context.Context { return s.session }

func randomKey(t *testing.T) solana.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return solana.PublicKeyFromBytes(pub)
}

// fakeNode is an in-memory chain.Node.
type fakeNode struct {
	mu sync.Mutex

	balance  uint64
	rent     uint64
	accounts map[solana.PublicKey]*chain.Account
	mints    map[solana.PublicKey]solana.PublicKey

	blockhashCalls int
	sendErrs       []error
	sent           [][]byte

	asset json.RawMessage
	proof *chain.AssetProof
}

var _ chain.Node = (*fakeNode)(nil)

func newFakeNode() *fakeNode {
	return &fakeNode{
		rent:     2_039_280,
		accounts: map[solana.PublicKey]*chain.Account{},
		mints:    map[solana.PublicKey]solana.PublicKey{},
	}
}

func (f *fakeNode) LatestBlockhash(context.Context) (chain.Blockhash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	var h solana.Hash
	h[0] = byte(f.blockhashCalls)
	h[31] = 0xbb
	return chain.Blockhash{Hash: h, LastValidBlockHeight: uint64(100 + f.blockhashCalls)}, nil
}

func (f *fakeNode) Balance(context.Context, solana.PublicKey) (uint64, error) {
	return f.balance, nil
}

func (f *fakeNode) AccountInfo(_ context.Context, addr solana.PublicKey) (*chain.Account, error) {
	return f.accounts[addr], nil
}

func (f *fakeNode) TokenAccountsByOwner(context.Context, solana.PublicKey, solana.PublicKey) ([]chain.KeyedAccount, error) {
	return nil, nil
}

func (f *fakeNode) MinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return f.rent, nil
}

func (f *fakeNode) SendTransaction(_ context.Context, raw []byte) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

func (f *fakeNode) ProgramAccounts(context.Context, solana.PublicKey, ...chain.ProgramFilter) ([]chain.KeyedAccount, error) {
	return nil, nil
}

func (f *fakeNode) MintProgram(_ context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	program, ok := f.mints[mint]
	if !ok {
		return solana.PublicKey{}, walleterr.ErrInvalidAddress
	}
	return program, nil
}

func (f *fakeNode) Asset(context.Context, solana.PublicKey) (json.RawMessage, error) {
	return f.asset, nil
}

func (f *fakeNode) AssetProof(context.Context, solana.PublicKey) (*chain.AssetProof, error) {
	return f.proof, nil
}

func (f *fakeNode) AssetsByOwner(context.Context, solana.PublicKey, int, int) (*chain.AssetPage, error) {
	return &chain.AssetPage{}, nil
}
