package storage

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Layout classifies the persisted wallet set at process start.
type Layout int

// Persisted layouts.
const (
	LayoutEmpty     Layout = iota // nothing stored
	LayoutPlaintext               // JSON wallet set, vault opens directly
	LayoutSealed                  // opaque bytes with encrypted=true, unlock required
)

func (l Layout) String() string {
	switch l {
	case LayoutPlaintext:
		return "plaintext"
	case LayoutSealed:
		return "sealed"
	default:
		return "empty"
	}
}

// StartupState is what the vault needs to resume.
type StartupState struct {
	Layout   Layout
	Wallets  []byte
	Verifier *walletcrypto.Verifier
}

// Startup reads and classifies the wallet set. Opaque bytes without the
// encrypted flag are an inconsistency: the flag and the blob are dropped and
// the vault starts empty.
func (s *Store) Startup(ctx context.Context) (*StartupState, error) {
	raw, ok, err := s.Wallets(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return &StartupState{Layout: LayoutEmpty}, nil
	}
	encrypted, err := s.Encrypted(ctx)
	if err != nil {
		return nil, err
	}

	if !walletcrypto.LooksSealed(raw) && json.Valid(raw) {
		if encrypted {
			logger.Warn("plaintext wallet set stored with encrypted flag, clearing flag")
			if err := s.SetEncrypted(ctx, false); err != nil {
				return nil, err
			}
		}
		return &StartupState{Layout: LayoutPlaintext, Wallets: raw}, nil
	}

	if !encrypted {
		logger.Warn("opaque wallet set without encrypted flag, discarding")
		if err := s.ClearWallets(ctx); err != nil {
			return nil, err
		}
		return &StartupState{Layout: LayoutEmpty}, nil
	}

	v, err := s.Verifier(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		// Protection was interrupted after the envelope was written. The
		// vault rebuilds the verifier once the envelope opens.
		logger.Warn("sealed wallet set without verifier, unlock will rebuild it")
	}
	return &StartupState{Layout: LayoutSealed, Wallets: raw, Verifier: v}, nil
}

// LegacyDecoder recovers plaintext wallet-set JSON from a legacy blob. The
// core ships no implementation; callers that still hold one pass it to
// MigrateLegacy explicitly.
type LegacyDecoder func(blob []byte, password string) ([]byte, error)

// MigrateLegacy rewrites a legacy wallet blob through decode and stores the
// result as plaintext. The vault then seals it under the current envelope on
// the next password set.
func (s *Store) MigrateLegacy(ctx context.Context, password string, decode LegacyDecoder) ([]byte, error) {
	raw, ok, err := s.Wallets(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, walleterr.ErrVaultEmpty
	}
	plaintext := json.Valid(raw) && !walletcrypto.LooksSealed(raw)
	if _, perr := walletcrypto.ParseBlob(raw); plaintext || !walleterr.Is(perr, walleterr.ErrLegacyBlob) {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"wallets": "not a legacy blob"})
	}
	plain, err := decode(raw, password)
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrAuthFailed, err)
	}
	if !json.Valid(plain) {
		return nil, walleterr.ErrStorageCorrupt
	}
	if err := s.PutWallets(ctx, plain, false); err != nil {
		return nil, err
	}
	if err := s.DeleteVerifier(ctx); err != nil {
		return nil, err
	}
	return plain, nil
}
