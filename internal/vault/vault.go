// Package vault owns the wallet set at rest and in memory. It seals the set
// under a password-derived wrap key, caches that key while unlocked, locks on
// idle, and rate-limits password attempts.
package vault

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/metrics"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/wallet"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// State is the vault lifecycle state.
type State int

// Vault states.
const (
	StateEmpty State = iota
	StateOpen
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateLocked:
		return "locked"
	default:
		return "empty"
	}
}

// Password attempt policy.
const (
	MaxFailedAttempts = 5
	CooldownPeriod    = 30 * time.Second
)

// Persistence is the storage the vault reads and writes. *storage.Store
// satisfies it.
type Persistence interface {
	Startup(ctx context.Context) (*storage.StartupState, error)
	PutWallets(ctx context.Context, data []byte, encrypted bool) error
	ClearWallets(ctx context.Context) error
	PutVerifier(ctx context.Context, v *walletcrypto.Verifier) error
	DeleteVerifier(ctx context.Context) error
	SetPasswordProtection(ctx context.Context, on bool) error
	AutoLockMinutes(ctx context.Context) (int, error)
	SetAutoLockMinutes(ctx context.Context, minutes int) error
	SetLastActivity(ctx context.Context, t time.Time) error
}

// Compile-time interface check.
var _ Persistence = (*storage.Store)(nil)

// Vault is safe for concurrent use.
type Vault struct {
	mu     sync.Mutex
	store  Persistence
	logger *log.Entry

	now       func() time.Time
	afterFunc func(time.Duration, func()) func() bool

	state    State
	set      *wallet.Set // secrets only while open
	sealed   []byte      // last persisted envelope while password protected
	verifier *walletcrypto.Verifier
	wrapKey  *walletcrypto.Secret
	wrapSalt []byte
	wrapIter int

	autoLockMinutes int
	stopTimer       func() bool
	timerGen        uint64

	failures      int
	cooldownUntil time.Time

	session context.Context
	cancel  context.CancelFunc
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// WithAfterFunc replaces time.AfterFunc for the idle timer. The returned
// function stops the timer.
func WithAfterFunc(f func(time.Duration, func()) func() bool) Option {
	return func(v *Vault) { v.afterFunc = f }
}

// WithLogger sets the log entry.
func WithLogger(l *log.Entry) Option {
	return func(v *Vault) { v.logger = l }
}

func defaultAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// New resumes the vault from persisted state. A plaintext wallet set opens
// directly, a sealed one starts locked.
func New(ctx context.Context, store Persistence, opts ...Option) (*Vault, error) {
	v := &Vault{
		store:     store,
		logger:    log.WithFields(log.Fields{"prefix": "vault"}),
		now:       time.Now,
		afterFunc: defaultAfterFunc,
	}
	for _, o := range opts {
		o(v)
	}
	v.newSession()

	minutes, err := store.AutoLockMinutes(ctx)
	if err != nil {
		return nil, err
	}
	v.autoLockMinutes = minutes

	st, err := store.Startup(ctx)
	if err != nil {
		return nil, err
	}
	switch st.Layout {
	case storage.LayoutPlaintext:
		set, err := wallet.ParseSet(st.Wallets)
		walletcrypto.Zero(st.Wallets)
		if err != nil {
			return nil, err
		}
		v.set = set
		v.state = StateOpen
		if set.Len() == 0 {
			v.state = StateEmpty
		}
	case storage.LayoutSealed:
		v.sealed = st.Wallets
		v.verifier = st.Verifier
		v.state = StateLocked
	default:
		v.state = StateEmpty
	}
	v.logger.WithField("state", v.state).Debug("vault resumed")
	return v, nil
}

// State returns the current state.
func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// HasPassword reports whether password protection is active. A locked
// vault is always protected, even while its verifier awaits rebuilding.
func (v *Vault) HasPassword() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifier != nil || v.state == StateLocked
}

// Session returns a context canceled when the vault next locks. Signing
// work bound to it is abandoned on lock.
func (v *Vault) Session() context.Context {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

func (v *Vault) newSession() {
	v.session, v.cancel = context.WithCancel(context.Background())
}

// CreateWallet adds r. From the empty state a non-empty password enables
// protection before the first write so plaintext never reaches storage.
func (v *Vault) CreateWallet(ctx context.Context, r wallet.Record, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case StateLocked:
		return walleterr.ErrVaultLocked
	case StateEmpty:
		set := wallet.NewSet()
		set.Add(r)
		v.set = set
		var err error
		if password != "" {
			err = v.enableProtection(ctx, password)
		} else {
			err = v.persist(ctx)
		}
		if err != nil {
			set.Wipe()
			v.set = nil
			return err
		}
		v.state = StateOpen
		v.resetTimer()
		v.logger.WithField("protected", password != "").Info("vault created")
		return nil
	default:
		v.set.Add(r)
		if err := v.persist(ctx); err != nil {
			_ = v.set.Remove(r.Meta().ID)
			return err
		}
		return nil
	}
}

// Mutate runs fn against the open wallet set and persists the result,
// resealing with the cached key when protected. Removing the last wallet
// returns the vault to empty and erases every persisted secret.
func (v *Vault) Mutate(ctx context.Context, fn func(*wallet.Set) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	if err := fn(v.set); err != nil {
		return err
	}
	if v.set.Len() == 0 {
		return v.toEmpty(ctx)
	}
	return v.persist(ctx)
}

// View runs fn against the open wallet set without persisting.
func (v *Vault) View(fn func(*wallet.Set) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	return fn(v.set)
}

// PublicView returns a secret-free copy of the wallet set. It is available
// while locked once the vault has been open in this process.
func (v *Vault) PublicView() (*wallet.Set, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set == nil {
		if v.state == StateLocked {
			return nil, walleterr.ErrVaultLocked
		}
		return wallet.NewSet(), nil
	}
	return v.set.Redacted(), nil
}

// Sign signs message with the secret of pub.
func (v *Vault) Sign(pub solana.PublicKey, message []byte) (solana.Signature, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return solana.Signature{}, err
	}
	sig, err := v.set.Sign(pub, message)
	if err == nil {
		metrics.Global.RecordSignature()
	}
	return sig, err
}

// Owns reports whether pub belongs to a wallet and whether it can sign.
func (v *Vault) Owns(pub solana.PublicKey) (owned, canSign bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set == nil {
		return false, false
	}
	owned, canSign = v.set.Owns(pub)
	return owned, canSign && v.state == StateOpen
}

// ActivePublicKey returns the active address of the active wallet.
func (v *Vault) ActivePublicKey() (solana.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set == nil {
		if v.state == StateLocked {
			return solana.PublicKey{}, walleterr.ErrVaultLocked
		}
		return solana.PublicKey{}, walleterr.ErrVaultEmpty
	}
	return v.set.ActivePublicKey()
}

// ExportPrivateKey returns the base58 secret key of pub after confirming
// password when protection is on.
func (v *Vault) ExportPrivateKey(pub solana.PublicKey, password string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return "", err
	}
	if err := v.confirm(password); err != nil {
		return "", err
	}
	return v.set.ExportPrivateKey(pub)
}

// ExportMnemonic returns the phrase of a seed wallet after confirming
// password when protection is on.
func (v *Vault) ExportMnemonic(id, password string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return "", err
	}
	if err := v.confirm(password); err != nil {
		return "", err
	}
	r, err := v.set.Get(id)
	if err != nil {
		return "", err
	}
	sw, ok := r.(*wallet.SeedWallet)
	if !ok {
		return "", walleterr.WithDetails(walleterr.ErrUnsupported, map[string]string{"wallet": string(r.Kind())})
	}
	return sw.Mnemonic()
}

// ExportSet returns the plaintext wallet set after confirming password when
// protection is on. The caller must zero the result.
func (v *Vault) ExportSet(password string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return nil, err
	}
	if err := v.confirm(password); err != nil {
		return nil, err
	}
	return v.set.MarshalJSON()
}

// Close stops the idle timer and wipes in-memory secrets.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopIdle()
	v.cancel()
	if v.set != nil {
		v.set.Wipe()
	}
	v.wrapKey.Destroy()
	v.wrapKey = nil
}

func (v *Vault) requireOpen() error {
	switch v.state {
	case StateLocked:
		return walleterr.ErrVaultLocked
	case StateEmpty:
		return walleterr.ErrVaultEmpty
	}
	return nil
}

// persist writes the wallet set. Callers hold mu.
func (v *Vault) persist(ctx context.Context) error {
	plain, err := v.set.MarshalJSON()
	if err != nil {
		return walleterr.Wrap(err, "encoding wallet set")
	}
	defer walletcrypto.Zero(plain)

	if v.wrapKey == nil {
		return v.store.PutWallets(ctx, plain, false)
	}
	blob, err := walletcrypto.SealWithKey(plain, v.wrapKey, v.wrapSalt, v.wrapIter)
	if err != nil {
		return err
	}
	sealed, err := blob.Marshal()
	if err != nil {
		return walleterr.Wrap(err, "encoding envelope")
	}
	if err := v.store.PutWallets(ctx, sealed, true); err != nil {
		return err
	}
	v.sealed = sealed
	return nil
}

// toEmpty erases the persisted vault. Callers hold mu.
func (v *Vault) toEmpty(ctx context.Context) error {
	if err := v.store.ClearWallets(ctx); err != nil {
		return err
	}
	if err := v.store.SetPasswordProtection(ctx, false); err != nil {
		return err
	}
	v.stopIdle()
	v.wrapKey.Destroy()
	v.wrapKey = nil
	v.wrapSalt = nil
	v.wrapIter = 0
	v.verifier = nil
	v.sealed = nil
	v.set = nil
	v.state = StateEmpty
	v.logger.Info("last wallet removed, vault empty")
	return nil
}

func (v *Vault) confirm(password string) error {
	if v.verifier == nil {
		return nil
	}
	return v.checkPassword(password)
}
