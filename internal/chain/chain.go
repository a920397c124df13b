// Package chain talks to SVM JSON-RPC nodes. It owns the retry policy, the
// per-endpoint rate limit, error classification, and the Node interface the
// transaction signer depends on.
package chain

import (
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
)

// Blockhash is a recent blockhash and the last block height it is valid for.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Account is the decoded state of an on-chain account.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Pubkey  solana.PublicKey
	Account *Account
}

// ProgramFilter narrows getProgramAccounts. A zero DataSize is ignored.
type ProgramFilter struct {
	DataSize uint64
	Memcmp   *Memcmp
}

// Memcmp matches Bytes at Offset of the account data.
type Memcmp struct {
	Offset uint64
	Bytes  []byte
}

// Node is the RPC surface used by the signer and the account queries.
// AccountInfo returns nil without error for a missing account.
type Node interface {
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	AccountInfo(ctx context.Context, addr solana.PublicKey) (*Account, error)
	TokenAccountsByOwner(ctx context.Context, owner, mint solana.PublicKey) ([]KeyedAccount, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	SendTransaction(ctx context.Context, raw []byte) (solana.Signature, error)
	ProgramAccounts(ctx context.Context, program solana.PublicKey, filters ...ProgramFilter) ([]KeyedAccount, error)
	MintProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error)

	Asset(ctx context.Context, id solana.PublicKey) (json.RawMessage, error)
	AssetProof(ctx context.Context, id solana.PublicKey) (*AssetProof, error)
	AssetsByOwner(ctx context.Context, owner solana.PublicKey, page, limit int) (*AssetPage, error)
}
