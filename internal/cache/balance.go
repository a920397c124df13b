package cache

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/chain"
)

// Balance is the native balance of an address.
type Balance struct {
	Lamports uint64 `json:"lamports"`
}

// BalanceCache is keyed by address and network.
type BalanceCache struct {
	s *store[Balance]
}

// Get returns the cached balance and its age.
func (c *BalanceCache) Get(ctx context.Context, address, network string) (Balance, time.Duration, bool, error) {
	return c.s.get(ctx, address, network)
}

// Put stores a balance.
func (c *BalanceCache) Put(ctx context.Context, address, network string, b Balance) error {
	return c.s.put(ctx, b, address, network)
}

// Delete drops the entry.
func (c *BalanceCache) Delete(ctx context.Context, address, network string) error {
	return c.s.delete(ctx, address, network)
}

// Refresh fetches the balance of owner from node and stores it.
func (c *BalanceCache) Refresh(ctx context.Context, node chain.Node, owner solana.PublicKey, network string) (Balance, error) {
	lamports, err := node.Balance(ctx, owner)
	if err != nil {
		return Balance{}, err
	}
	b := Balance{Lamports: lamports}
	return b, c.Put(ctx, owner.String(), network, b)
}

// Fetch returns the cached balance while it is fresh and refreshes it
// otherwise. When the refresh fails a stale entry is still returned.
func (c *BalanceCache) Fetch(ctx context.Context, node chain.Node, owner solana.PublicKey, network string) (Balance, error) {
	b, age, ok, err := c.Get(ctx, owner.String(), network)
	if err == nil && ok && !IsStale(age) {
		return b, nil
	}
	fresh, rerr := c.Refresh(ctx, node, owner, network)
	if rerr != nil && ok {
		c.s.logger.WithError(rerr).Debug("serving stale balance")
		return b, nil
	}
	return fresh, rerr
}
