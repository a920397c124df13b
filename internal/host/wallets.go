package host

import (
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/wallet"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// WalletParams are the params of createWallet and importWallet. Secret is
// a recovery phrase or private key; Address imports a watch-only wallet.
// The message Password protects the vault when it is still empty.
type WalletParams struct {
	Name     string `json:"name"`
	Words    int    `json:"words,omitempty"`
	Accounts int    `json:"accounts,omitempty"`
	Secret   string `json:"secret,omitempty"`
	Address  string `json:"address,omitempty"`
}

// WalletResult describes an added wallet. Mnemonic is set once, on create.
type WalletResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Address  string `json:"address"`
	Active   bool   `json:"active"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// PasswordParams carry the current password for a change; the message
// Password is the new one.
type PasswordParams struct {
	Current string `json:"current,omitempty"`
}

// AutoLockParams sets the idle duration when Minutes is present.
type AutoLockParams struct {
	Minutes *int `json:"minutes,omitempty"`
}

// AutoLockResult reports the idle duration in minutes, -1 when disabled.
type AutoLockResult struct {
	Minutes int `json:"minutes"`
}

// decodeParams reads m.Params into v. Absent params leave v untouched
// unless required.
func decodeParams(m Message, v any, required bool) error {
	if len(m.Params) == 0 {
		if required {
			return walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "missing params"})
		}
		return nil
	}
	if err := json.Unmarshal(m.Params, v); err != nil {
		return walleterr.WrapAs(walleterr.ErrInvalidParams, err)
	}
	return nil
}

func (h *Host) createWallet(ctx context.Context, m Message) (*WalletResult, error) {
	var p WalletParams
	if err := decodeParams(m, &p, true); err != nil {
		return nil, err
	}
	strength := wallet.Strength128
	switch p.Words {
	case 0, 12:
	case 24:
		strength = wallet.Strength256
	default:
		return nil, walleterr.WithDetails(walleterr.ErrInvalidStrength, map[string]string{"words": "use 12 or 24"})
	}
	phrase, err := wallet.GenerateMnemonic(strength)
	if err != nil {
		return nil, err
	}
	r, err := wallet.NewSeedWallet(p.Name, phrase, accountsOrDefault(p.Accounts))
	if err != nil {
		return nil, err
	}
	res, err := h.addWallet(ctx, r, m.Password)
	if err != nil {
		return nil, err
	}
	res.Mnemonic = phrase
	return res, nil
}

func (h *Host) importWallet(ctx context.Context, m Message) (*WalletResult, error) {
	var p WalletParams
	if err := decodeParams(m, &p, true); err != nil {
		return nil, err
	}

	var (
		r   wallet.Record
		err error
	)
	switch {
	case p.Address != "":
		var pub solana.PublicKey
		if pub, err = solana.PublicKeyFromBase58(p.Address); err != nil {
			return nil, walleterr.WrapAs(walleterr.ErrInvalidAddress, err)
		}
		r, err = wallet.NewWatchWallet(p.Name, pub)
	default:
		switch wallet.DetectInputFormat(p.Secret) {
		case wallet.FormatMnemonic:
			r, err = wallet.NewSeedWallet(p.Name, wallet.NormalizeMnemonicInput(p.Secret), accountsOrDefault(p.Accounts))
		case wallet.FormatBase58Key, wallet.FormatByteArray:
			r, err = wallet.ImportPrivateKey(p.Name, p.Secret)
		default:
			err = walleterr.WithSuggestion(walleterr.ErrInvalidInput, "expected a recovery phrase, a base58 secret key or a JSON byte array")
		}
	}
	if err != nil {
		return nil, err
	}
	return h.addWallet(ctx, r, m.Password)
}

func accountsOrDefault(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// addWallet hands r to the vault and reports it from the public view.
func (h *Host) addWallet(ctx context.Context, r wallet.Record, password string) (*WalletResult, error) {
	id := r.Meta().ID
	if err := h.deps.Vault.CreateWallet(ctx, r, password); err != nil {
		return nil, err
	}
	view, err := h.deps.Vault.PublicView()
	if err != nil {
		return nil, err
	}
	added, err := view.Get(id)
	if err != nil {
		return nil, err
	}
	res := &WalletResult{ID: id, Name: added.Meta().Name, Kind: string(added.Kind()), Active: id == view.ActiveID()}
	if a, ok := wallet.ActiveAddress(added); ok {
		res.Address = a.PublicKey.String()
	}
	h.logger.WithField("kind", res.Kind).Info("wallet added")
	return res, nil
}

// setPassword enables protection, or changes the password when one is set.
func (h *Host) setPassword(ctx context.Context, m Message) error {
	var p PasswordParams
	if err := decodeParams(m, &p, false); err != nil {
		return err
	}
	if m.Password == "" {
		return walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "missing password"})
	}
	if h.deps.Vault.HasPassword() {
		return h.deps.Vault.ChangePassword(ctx, p.Current, m.Password)
	}
	return h.deps.Vault.SetPassword(ctx, m.Password)
}

func (h *Host) autoLock(ctx context.Context, m Message) (*AutoLockResult, error) {
	var p AutoLockParams
	if err := decodeParams(m, &p, false); err != nil {
		return nil, err
	}
	if p.Minutes != nil {
		if err := h.deps.Vault.SetAutoLock(ctx, *p.Minutes); err != nil {
			return nil, err
		}
	}
	return &AutoLockResult{Minutes: h.deps.Vault.AutoLockMinutes()}, nil
}
