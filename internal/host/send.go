package host

import (
	"context"
	"slices"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/cache"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/txn"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Send kinds.
const (
	SendNative = "native"
	SendToken  = "token"
	SendWrap   = "wrap"
	SendUnwrap = "unwrap"
	SendCNFT   = "cnft"
)

// PlanSender signs and submits a built plan.
type PlanSender interface {
	Send(ctx context.Context, plan *txn.Plan, priority txn.Priority) (solana.Signature, error)
}

// SendParams describe a transfer from the active address. Amount is in
// base units. Decimals is looked up in the token cache and the custom
// token list when absent.
type SendParams struct {
	Kind          string `json:"kind"`
	To            string `json:"to,omitempty"`
	Amount        uint64 `json:"amount,omitempty"`
	Mint          string `json:"mint,omitempty"`
	Decimals      *uint8 `json:"decimals,omitempty"`
	Asset         string `json:"asset,omitempty"`
	Priority      string `json:"priority,omitempty"`
	MicroLamports uint64 `json:"microLamports,omitempty"`
	ComputeUnits  uint32 `json:"computeUnits,omitempty"`
}

// SendResult answers send.
type SendResult struct {
	Signature string `json:"signature"`
	Fee       uint64 `json:"priorityFee,omitempty"`
}

func (h *Host) send(ctx context.Context, m Message) (*SendResult, error) {
	if h.deps.Sender == nil || h.deps.Node == nil {
		return nil, walleterr.ErrUnsupported
	}
	var p SendParams
	if err := decodeParams(m, &p, true); err != nil {
		return nil, err
	}
	preset, err := txn.ParsePreset(p.Priority)
	if err != nil {
		return nil, err
	}
	priority := txn.Priority{Preset: preset, MicroLamports: p.MicroLamports, ComputeUnits: p.ComputeUnits}

	owner, err := h.deps.Vault.ActivePublicKey()
	if err != nil {
		return nil, err
	}
	plan, err := h.plan(ctx, owner, p)
	if err != nil {
		return nil, err
	}
	sig, err := h.deps.Sender.Send(ctx, plan, priority)
	if err != nil {
		return nil, err
	}
	h.record(ctx, cache.Activity{Signature: sig.String(), Kind: p.Kind})
	h.logger.WithFields(log.Fields{"kind": p.Kind, "signature": sig.String()}).Info("transfer submitted")
	return &SendResult{Signature: sig.String(), Fee: priority.Fee()}, nil
}

func (h *Host) plan(ctx context.Context, owner solana.PublicKey, p SendParams) (*txn.Plan, error) {
	b := txn.NewBuilder(h.deps.Node)
	switch p.Kind {
	case SendNative:
		to, err := parseKey("to", p.To)
		if err != nil {
			return nil, err
		}
		return b.NativeTransfer(owner, to, p.Amount)
	case SendToken:
		to, err := parseKey("to", p.To)
		if err != nil {
			return nil, err
		}
		mint, err := parseKey("mint", p.Mint)
		if err != nil {
			return nil, err
		}
		decimals, err := h.decimals(ctx, mint, p.Decimals)
		if err != nil {
			return nil, err
		}
		return b.TokenTransfer(ctx, txn.TokenTransfer{Owner: owner, Recipient: to, Mint: mint, Amount: p.Amount, Decimals: decimals})
	case SendWrap:
		return b.WrapNative(ctx, owner, p.Amount)
	case SendUnwrap:
		return b.UnwrapNative(ctx, owner)
	case SendCNFT:
		to, err := parseKey("to", p.To)
		if err != nil {
			return nil, err
		}
		asset, err := parseKey("asset", p.Asset)
		if err != nil {
			return nil, err
		}
		return b.CompressedTransfer(ctx, asset, owner, to)
	default:
		return nil, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"kind": p.Kind})
	}
}

// decimals resolves a mint's decimals from the explicit value, the cached
// holdings of the active wallet, then the custom token list.
func (h *Host) decimals(ctx context.Context, mint solana.PublicKey, explicit *uint8) (uint8, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if h.deps.Cache != nil {
		if id, err := h.activeID(); err == nil {
			holdings, _, ok, err := h.deps.Cache.Tokens.Get(ctx, id, h.deps.Network)
			if err == nil && ok {
				if i := slices.IndexFunc(holdings, func(t cache.TokenHolding) bool { return t.Mint == mint.String() }); i >= 0 {
					return holdings[i].Decimals, nil
				}
			}
		}
	}
	custom, err := h.deps.Store.CustomTokens(ctx, h.deps.Network)
	if err != nil {
		return 0, err
	}
	if i := slices.IndexFunc(custom, func(t storage.CustomToken) bool { return t.Mint == mint.String() }); i >= 0 {
		return custom[i].Decimals, nil
	}
	return 0, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"decimals": "unknown for " + mint.String()})
}

func (h *Host) activeID() (string, error) {
	view, err := h.deps.Vault.PublicView()
	if err != nil {
		return "", err
	}
	return view.ActiveID(), nil
}

// record stores a in the activity cache of the active wallet. Failures
// are logged only.
func (h *Host) record(ctx context.Context, a cache.Activity) {
	if h.deps.Cache == nil {
		return
	}
	id, err := h.activeID()
	if err != nil {
		return
	}
	if err := h.deps.Cache.Activity.Record(context.WithoutCancel(ctx), id, h.deps.Network, a); err != nil {
		h.logger.WithError(err).Warn("recording activity failed")
	}
}

func parseKey(field, s string) (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrInvalidAddress, err), map[string]string{"field": field})
	}
	return pub, nil
}
