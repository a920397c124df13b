package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/chain"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Token account and mint layout offsets shared by Token and Token-2022.
const (
	tokenAmountOffset  = 64
	mintDecimalsOffset = 44
)

// TokenHolding is one token account of a wallet.
type TokenHolding struct {
	Mint     string `json:"mint"`
	Account  string `json:"account"`
	Program  string `json:"program"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// TokenCache is keyed by wallet ID and network.
type TokenCache struct {
	s *store[[]TokenHolding]
}

// Get returns the cached holdings and their age.
func (c *TokenCache) Get(ctx context.Context, walletID, network string) ([]TokenHolding, time.Duration, bool, error) {
	return c.s.get(ctx, walletID, network)
}

// Put stores the holdings of a wallet.
func (c *TokenCache) Put(ctx context.Context, walletID, network string, h []TokenHolding) error {
	return c.s.put(ctx, h, walletID, network)
}

// Delete drops the entry.
func (c *TokenCache) Delete(ctx context.Context, walletID, network string) error {
	return c.s.delete(ctx, walletID, network)
}

// Refresh reads owner's token accounts for each mint and stores the result.
func (c *TokenCache) Refresh(ctx context.Context, node chain.Node, walletID, network string, owner solana.PublicKey, mints []solana.PublicKey) ([]TokenHolding, error) {
	holdings := make([]TokenHolding, 0, len(mints))
	for _, mint := range mints {
		mintAcct, err := node.AccountInfo(ctx, mint)
		if err != nil {
			return nil, err
		}
		if mintAcct == nil || len(mintAcct.Data) <= mintDecimalsOffset {
			return nil, walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"mint": mint.String(), "reason": "not a mint"})
		}
		decimals := mintAcct.Data[mintDecimalsOffset]

		accounts, err := node.TokenAccountsByOwner(ctx, owner, mint)
		if err != nil {
			return nil, err
		}
		for _, ka := range accounts {
			if len(ka.Account.Data) < tokenAmountOffset+8 {
				continue
			}
			holdings = append(holdings, TokenHolding{
				Mint:     mint.String(),
				Account:  ka.Pubkey.String(),
				Program:  ka.Account.Owner.String(),
				Amount:   binary.LittleEndian.Uint64(ka.Account.Data[tokenAmountOffset:]),
				Decimals: decimals,
			})
		}
	}
	return holdings, c.Put(ctx, walletID, network, holdings)
}
