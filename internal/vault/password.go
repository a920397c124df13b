package vault

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/x1wallet/walletcore/internal/metrics"
	"github.com/x1wallet/walletcore/internal/wallet"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// SetPassword enables protection on an open, unprotected vault: the
// verifier is stored, the wallet set is sealed over the plaintext copy, and
// the wrap key is cached for the session.
func (v *Vault) SetPassword(ctx context.Context, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	if v.verifier != nil {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"password": "already set"})
	}
	if err := v.enableProtection(ctx, password); err != nil {
		return err
	}
	v.resetTimer()
	v.logger.Info("password protection enabled")
	return nil
}

// ChangePassword replaces the password of a protected, open vault.
func (v *Vault) ChangePassword(ctx context.Context, current, next string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	if v.verifier == nil {
		return walleterr.ErrNoPassword
	}
	if err := v.checkPassword(current); err != nil {
		return err
	}
	prevKey := v.wrapKey
	if err := v.enableProtection(ctx, next); err != nil {
		return err
	}
	prevKey.Destroy()
	v.logger.Info("password changed")
	return nil
}

// ClearPassword turns protection off: the set is written back as
// plaintext, the verifier erased and the cached key destroyed. The vault
// must be open and password confirmed.
func (v *Vault) ClearPassword(ctx context.Context, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	if v.verifier == nil {
		return walleterr.ErrNoPassword
	}
	if err := v.checkPassword(password); err != nil {
		return err
	}

	// Plaintext is written before the flag is cleared, so an interrupted
	// write leaves either the old envelope or a plaintext set Startup opens.
	key := v.wrapKey
	v.wrapKey = nil
	if err := v.persist(ctx); err != nil {
		v.wrapKey = key
		return err
	}
	if err := v.store.DeleteVerifier(ctx); err != nil {
		return err
	}
	if err := v.store.SetPasswordProtection(ctx, false); err != nil {
		return err
	}
	key.Destroy()
	v.verifier = nil
	v.wrapSalt = nil
	v.wrapIter = 0
	v.sealed = nil
	v.stopIdle()
	v.logger.Info("password protection disabled")
	return nil
}

// enableProtection derives a fresh verifier and wrap key for password and
// seals the current set. Callers hold mu and have an open set.
//
// The envelope is written before the verifier. If the verifier write fails
// the previous wallet value is put back; if that also fails, the envelope
// still opens under the new password and Unlock rebuilds the verifier.
func (v *Vault) enableProtection(ctx context.Context, password string) error {
	if password == "" {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"password": "empty"})
	}
	verifier, err := walletcrypto.NewVerifier(password)
	if err != nil {
		return err
	}
	plain, err := v.set.MarshalJSON()
	if err != nil {
		return walleterr.Wrap(err, "encoding wallet set")
	}
	defer walletcrypto.Zero(plain)

	blob, key, err := walletcrypto.Seal(plain, password, verifier.Salt)
	if err != nil {
		return err
	}
	sealed, err := blob.Marshal()
	if err != nil {
		key.Destroy()
		return walleterr.Wrap(err, "encoding envelope")
	}

	if err := v.store.PutWallets(ctx, sealed, true); err != nil {
		key.Destroy()
		v.restoreWallets(ctx, plain)
		return err
	}
	if err := v.store.PutVerifier(ctx, verifier); err != nil {
		key.Destroy()
		v.restoreWallets(ctx, plain)
		return err
	}
	if err := v.store.SetPasswordProtection(ctx, true); err != nil {
		v.logger.WithError(err).Warn("recording protection policy failed")
	}

	v.verifier = verifier
	v.wrapKey = key
	v.wrapSalt = blob.Salt
	v.wrapIter = blob.Iterations
	v.sealed = sealed
	return nil
}

// restoreWallets puts back the wallet value that was persisted before a
// failed protection change: the previous envelope, plain when the set was
// not sealed, or nothing when the vault is being created. Callers hold mu.
func (v *Vault) restoreWallets(ctx context.Context, plain []byte) {
	var err error
	switch {
	case v.sealed != nil:
		err = v.store.PutWallets(ctx, v.sealed, true)
	case v.state == StateEmpty:
		err = v.store.ClearWallets(ctx)
	default:
		err = v.store.PutWallets(ctx, plain, false)
	}
	if err != nil {
		v.logger.WithError(err).Error("restoring wallet set after failed password change")
	}
}

// Lock discards the wrap key and every in-memory secret. It is idempotent,
// and a no-op when no password is set since the set could not be reopened.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lock("manual")
}

func (v *Vault) lock(reason string) {
	if v.state != StateOpen || v.verifier == nil {
		return
	}
	v.stopIdle()
	v.cancel()
	view := v.set.Redacted()
	v.set.Wipe()
	v.set = view
	v.wrapKey.Destroy()
	v.wrapKey = nil
	v.state = StateLocked
	v.newSession()
	v.logger.WithField("reason", reason).Info("vault locked")
}

// Unlock verifies password and reopens the sealed set. On any failure the
// vault stays locked and the envelope is untouched.
//
// A verifier that rejects the password, or is missing, is not final: a
// password change interrupted between its two writes leaves an envelope
// sealed under the new password. When the envelope opens, the password is
// proven by the AEAD tag and the verifier is rebuilt from it.
func (v *Vault) Unlock(ctx context.Context, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case StateOpen:
		return nil
	case StateEmpty:
		return walleterr.ErrVaultEmpty
	}

	blob, err := walletcrypto.ParseBlob(v.sealed)
	if err != nil {
		return err
	}
	if v.verifier != nil && bytes.Equal(blob.Salt, v.verifier.Salt) {
		return walleterr.ErrSaltReuse
	}

	var rejected error
	if v.verifier == nil {
		if err := v.checkCooldown(); err != nil {
			return err
		}
	} else if rejected = v.checkPassword(password); rejected != nil && !walleterr.Is(rejected, walleterr.ErrAuthFailed) {
		return rejected
	}

	plain, key, err := walletcrypto.Open(blob, password)
	if err != nil {
		switch {
		case rejected != nil:
			return rejected
		case v.verifier == nil && walleterr.Is(err, walleterr.ErrAuthFailed):
			return v.recordFailure()
		}
		return err
	}
	defer walletcrypto.Zero(plain)
	set, err := wallet.ParseSet(plain)
	if err != nil {
		key.Destroy()
		return err
	}
	if rejected != nil || v.verifier == nil {
		if err := v.rebuildVerifier(ctx, password, blob.Salt); err != nil {
			key.Destroy()
			set.Wipe()
			return err
		}
	}

	v.set = set
	v.wrapKey = key
	v.wrapSalt = blob.Salt
	v.wrapIter = blob.Iterations
	v.state = StateOpen
	v.resetTimer()
	if err := v.store.SetLastActivity(ctx, v.now()); err != nil {
		v.logger.WithError(err).Warn("recording activity failed")
	}
	v.logger.Info("vault unlocked")
	return nil
}

// rebuildVerifier replaces a stale or missing verifier with one for
// password, using a salt distinct from the wrap salt. Callers hold mu.
func (v *Vault) rebuildVerifier(ctx context.Context, password string, wrapSalt []byte) error {
	var verifier *walletcrypto.Verifier
	for verifier == nil || bytes.Equal(verifier.Salt, wrapSalt) {
		var err error
		if verifier, err = walletcrypto.NewVerifier(password); err != nil {
			return err
		}
	}
	if err := v.store.PutVerifier(ctx, verifier); err != nil {
		return err
	}
	if err := v.store.SetPasswordProtection(ctx, true); err != nil {
		v.logger.WithError(err).Warn("recording protection policy failed")
	}
	v.verifier = verifier
	v.failures = 0
	v.cooldownUntil = time.Time{}
	v.logger.Warn("password verifier did not match the sealed set, rebuilt")
	return nil
}

// VerifyPassword checks password against the verifier, subject to the same
// attempt limit as Unlock.
func (v *Vault) VerifyPassword(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier == nil {
		return walleterr.ErrNoPassword
	}
	return v.checkPassword(password)
}

// CooldownRemaining returns how long password checks stay rejected.
func (v *Vault) CooldownRemaining() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d := v.cooldownUntil.Sub(v.now()); d > 0 {
		return d
	}
	return 0
}

// checkPassword applies the attempt policy. During a cooldown the verifier
// is not consulted. Callers hold mu.
func (v *Vault) checkPassword(password string) error {
	if err := v.checkCooldown(); err != nil {
		return err
	}
	if v.verifier.Check(password) {
		v.failures = 0
		return nil
	}
	return v.recordFailure()
}

func (v *Vault) checkCooldown() error {
	now := v.now()
	if now.Before(v.cooldownUntil) {
		remaining := v.cooldownUntil.Sub(now).Round(time.Second)
		return walleterr.WithDetails(walleterr.ErrCooldown, map[string]string{"retry-after": remaining.String()})
	}
	return nil
}

// recordFailure counts a rejected password and starts the cooldown after
// MaxFailedAttempts in a row.
func (v *Vault) recordFailure() error {
	metrics.Global.RecordUnlockFailure()
	v.failures++
	attempts := v.failures
	if v.failures >= MaxFailedAttempts {
		v.cooldownUntil = v.now().Add(CooldownPeriod)
		v.failures = 0
		v.logger.Warn("too many failed password attempts, cooling down")
	}
	return walleterr.WithDetails(walleterr.ErrAuthFailed, map[string]string{"attempts": strconv.Itoa(attempts)})
}
