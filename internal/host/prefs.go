package host

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/cache"
	"github.com/x1wallet/walletcore/internal/storage"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// HiddenParams names a hidden-item set. With Item set the item is hidden
// or shown; otherwise the set is only read.
type HiddenParams struct {
	Set    string `json:"set"`
	Item   string `json:"item,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// HiddenResult lists the members of a hidden-item set.
type HiddenResult struct {
	Set   string   `json:"set"`
	Items []string `json:"items"`
}

// CustomTokenParams adds Token, or removes Remove (a mint), from the custom
// token list of the host's network. Empty params only read the list.
type CustomTokenParams struct {
	Token  *storage.CustomToken `json:"token,omitempty"`
	Remove string               `json:"remove,omitempty"`
}

// TokensParams control the token cache. Refresh queries the node for the
// given mints plus every custom and previously held mint.
type TokensParams struct {
	Refresh bool     `json:"refresh,omitempty"`
	Mints   []string `json:"mints,omitempty"`
}

// TokensResult lists cached holdings of the active wallet.
type TokensResult struct {
	Holdings []cache.TokenHolding `json:"holdings"`
	AgeMs    int64                `json:"ageMs"`
}

func (h *Host) hidden(ctx context.Context, m Message) (*HiddenResult, error) {
	var p HiddenParams
	if err := decodeParams(m, &p, true); err != nil {
		return nil, err
	}
	if p.Item != "" {
		if err := h.deps.Store.SetHidden(ctx, p.Set, p.Item, p.Hidden); err != nil {
			return nil, err
		}
	}
	items, err := h.deps.Store.Hidden(ctx, p.Set)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return &HiddenResult{Set: p.Set, Items: items}, nil
}

func (h *Host) customTokens(ctx context.Context, m Message) ([]storage.CustomToken, error) {
	var p CustomTokenParams
	if err := decodeParams(m, &p, false); err != nil {
		return nil, err
	}
	switch {
	case p.Token != nil:
		if _, err := parseKey("mint", p.Token.Mint); err != nil {
			return nil, err
		}
		if err := h.deps.Store.PutCustomToken(ctx, h.deps.Network, *p.Token); err != nil {
			return nil, err
		}
	case p.Remove != "":
		if err := h.deps.Store.RemoveCustomToken(ctx, h.deps.Network, p.Remove); err != nil {
			return nil, err
		}
	}
	list, err := h.deps.Store.CustomTokens(ctx, h.deps.Network)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []storage.CustomToken{}
	}
	return list, nil
}

func (h *Host) tokens(ctx context.Context, m Message) (*TokensResult, error) {
	if h.deps.Cache == nil {
		return nil, walleterr.ErrUnsupported
	}
	var p TokensParams
	if err := decodeParams(m, &p, false); err != nil {
		return nil, err
	}
	id, err := h.activeID()
	if err != nil {
		return nil, err
	}
	cached, age, ok, err := h.deps.Cache.Tokens.Get(ctx, id, h.deps.Network)
	if err != nil {
		return nil, err
	}
	if ok && !p.Refresh {
		return &TokensResult{Holdings: cached, AgeMs: age.Milliseconds()}, nil
	}
	if h.deps.Node == nil {
		return nil, walleterr.ErrUnsupported
	}

	owner, err := h.deps.Vault.ActivePublicKey()
	if err != nil {
		return nil, err
	}
	mints, err := h.tokenMints(ctx, p.Mints, cached)
	if err != nil {
		return nil, err
	}
	holdings, err := h.deps.Cache.Tokens.Refresh(ctx, h.deps.Node, id, h.deps.Network, owner, mints)
	if err != nil {
		return nil, err
	}
	return &TokensResult{Holdings: holdings}, nil
}

// tokenMints merges requested, custom and previously held mints, in that
// order and without repeats.
func (h *Host) tokenMints(ctx context.Context, requested []string, held []cache.TokenHolding) ([]solana.PublicKey, error) {
	custom, err := h.deps.Store.CustomTokens(ctx, h.deps.Network)
	if err != nil {
		return nil, err
	}
	names := append([]string{}, requested...)
	for _, t := range custom {
		names = append(names, t.Mint)
	}
	for _, t := range held {
		names = append(names, t.Mint)
	}

	seen := map[solana.PublicKey]bool{}
	mints := make([]solana.PublicKey, 0, len(names))
	for _, name := range names {
		mint, err := parseKey("mint", name)
		if err != nil {
			return nil, err
		}
		if seen[mint] {
			continue
		}
		seen[mint] = true
		mints = append(mints, mint)
	}
	return mints, nil
}
