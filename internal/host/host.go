package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/backup"
	"github.com/x1wallet/walletcore/internal/bridge"
	"github.com/x1wallet/walletcore/internal/cache"
	"github.com/x1wallet/walletcore/internal/chain"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/vault"
	"github.com/x1wallet/walletcore/internal/version"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Message types.
const (
	TypeHello    = "hello"
	TypeOpen     = "open"
	TypeClose    = "close"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeDecision = "decision"
	TypePrompt   = "prompt"
	TypeHide     = "hide"
	TypeState    = "state"
	TypeUnlock   = "unlock"
	TypeLock     = "lock"
	TypeBalance  = "balance"
	TypeBackup   = "backup"
	TypeError    = "error"

	TypeCreateWallet  = "createWallet"
	TypeImportWallet  = "importWallet"
	TypeSetPassword   = "setPassword"
	TypeClearPassword = "clearPassword"
	TypeAutoLock      = "autoLock"
	TypeSend          = "send"
	TypeHidden        = "hidden"
	TypeCustomTokens  = "customTokens"
	TypeTokens        = "tokens"
)

// Message is one frame in either direction. Page traffic travels in
// Request and Response; control messages correlate by ID and carry their
// arguments in Params.
type Message struct {
	Type       string           `json:"type"`
	ID         string           `json:"id,omitempty"`
	Port       string           `json:"port,omitempty"`
	Request    *bridge.Request  `json:"request,omitempty"`
	Response   *bridge.Response `json:"response,omitempty"`
	Prompt     *bridge.Prompt   `json:"prompt,omitempty"`
	Approved   bool             `json:"approved,omitempty"`
	Version    string           `json:"version,omitempty"`
	Password   string           `json:"password,omitempty"`
	Passphrase string           `json:"passphrase,omitempty"`
	Params     json.RawMessage  `json:"params,omitempty"`
	Result     any              `json:"result,omitempty"`
	Error      *bridge.Error    `json:"error,omitempty"`
}

// HelloResult answers hello. Version in the hello request is the minimum
// host version the extension accepts.
type HelloResult struct {
	Host       version.Info `json:"host"`
	Compatible bool         `json:"compatible"`
}

// StateResult reports the vault state.
type StateResult struct {
	State       string `json:"state"`
	HasPassword bool   `json:"hasPassword"`
	CooldownMs  int64  `json:"cooldownMs,omitempty"`
}

// BalanceResult answers balance for the active address.
type BalanceResult struct {
	PublicKey string `json:"publicKey"`
	Lamports  uint64 `json:"lamports"`
}

// BackupResult answers backup.
type BackupResult struct {
	Path     string          `json:"path"`
	Manifest backup.Manifest `json:"manifest"`
}

// Deps are the components the host routes to. Vault and Store are
// required. Without Node, Cache, Sender or Backups the messages needing
// them fail with Unsupported, and without Submitter so does
// signAndSendTransaction.
type Deps struct {
	Vault     *vault.Vault
	Store     *storage.Store
	Submitter bridge.Submitter
	Sender    PlanSender
	Node      chain.Node
	Cache     *cache.Cache
	Backups   *backup.Service
	Network   string
}

// Host is the native-messaging endpoint.
type Host struct {
	deps   Deps
	bridge *bridge.Bridge
	out    *outbox
	logger *log.Entry

	// Owned by the read loop.
	ports map[string]*bridge.Port
	wg    sync.WaitGroup
}

// New returns a host writing frames to w. Bridge options are applied after
// the host's own.
func New(w io.Writer, deps Deps, opts ...bridge.Option) *Host {
	h := &Host{
		deps:   deps,
		out:    newOutbox(w),
		logger: log.WithFields(log.Fields{"prefix": "host"}),
		ports:  map[string]*bridge.Port{},
	}
	if deps.Submitter != nil {
		var sub bridge.Submitter = deps.Submitter
		if deps.Cache != nil {
			sub = &recordingSubmitter{next: sub, host: h}
		}
		opts = append([]bridge.Option{bridge.WithSubmitter(sub)}, opts...)
	}
	h.bridge = bridge.New(deps.Vault, deps.Store, surface{h}, opts...)
	return h
}

// Run serves frames from r until it reaches EOF or ctx ends. Outstanding
// page requests resolve to Disconnected before Run returns.
func (h *Host) Run(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.out.run()
	}()
	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		_ = h.bridge.Run(ctx)
	}()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			frame, err := ReadFrame(r)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err = <-readErr:
			if errors.Is(err, io.EOF) {
				err = nil
			}
			break loop
		case frame := <-frames:
			h.dispatch(ctx, frame)
		}
	}

	cancel()
	<-bridgeDone
	h.wg.Wait()
	h.out.close()
	<-writerDone
	h.logger.Info("channel closed")
	return err
}

func (h *Host) dispatch(ctx context.Context, frame []byte) {
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		h.reply(Message{Type: TypeError}, walleterr.WrapAs(walleterr.ErrInvalidParams, err))
		return
	}
	if m.Type != TypeHello && m.Type != TypeState {
		if err := h.deps.Vault.Touch(ctx); err != nil {
			h.logger.WithError(err).Debug("recording activity failed")
		}
	}

	switch m.Type {
	case TypeHello:
		info := version.Current()
		h.reply(Message{Type: TypeHello, ID: m.ID, Result: HelloResult{Host: info, Compatible: version.Satisfies(info.Version, m.Version)}}, nil)
	case TypeOpen:
		h.open(m.Port)
	case TypeClose:
		if p := h.ports[m.Port]; p != nil {
			delete(h.ports, m.Port)
			p.Close()
		}
	case TypeRequest:
		h.request(m)
	case TypeDecision:
		h.bridge.Decide(m.ID, m.Approved)
	case TypeState:
		h.reply(Message{Type: TypeState, ID: m.ID, Result: h.state()}, nil)
	case TypeUnlock:
		err := h.deps.Vault.Unlock(ctx, m.Password)
		h.reply(Message{Type: TypeState, ID: m.ID, Result: h.state()}, err)
	case TypeLock:
		h.deps.Vault.Lock()
		h.reply(Message{Type: TypeState, ID: m.ID, Result: h.state()}, nil)
	case TypeBalance:
		res, err := h.balance(ctx)
		h.reply(Message{Type: TypeBalance, ID: m.ID, Result: res}, err)
	case TypeBackup:
		res, err := h.backup(m.Password, m.Passphrase)
		h.reply(Message{Type: TypeBackup, ID: m.ID, Result: res}, err)
	case TypeCreateWallet:
		res, err := h.createWallet(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	case TypeImportWallet:
		res, err := h.importWallet(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	case TypeSetPassword:
		err := h.setPassword(ctx, m)
		h.reply(Message{Type: TypeState, ID: m.ID, Result: h.state()}, err)
	case TypeClearPassword:
		err := h.deps.Vault.ClearPassword(ctx, m.Password)
		h.reply(Message{Type: TypeState, ID: m.ID, Result: h.state()}, err)
	case TypeAutoLock:
		res, err := h.autoLock(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	case TypeSend:
		res, err := h.send(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	case TypeHidden:
		res, err := h.hidden(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	case TypeCustomTokens:
		res, err := h.customTokens(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	case TypeTokens:
		res, err := h.tokens(ctx, m)
		h.reply(Message{Type: m.Type, ID: m.ID, Result: res}, err)
	default:
		h.reply(Message{Type: TypeError, ID: m.ID}, walleterr.WithDetails(walleterr.ErrUnknownMethod, map[string]string{"type": m.Type}))
	}
}

func (h *Host) open(name string) *bridge.Port {
	if p := h.ports[name]; p != nil {
		return p
	}
	p := h.bridge.Open()
	h.ports[name] = p
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for resp := range p.Responses() {
			r := resp
			h.out.send(Message{Type: TypeResponse, Port: name, Response: &r})
		}
	}()
	return p
}

func (h *Host) request(m Message) {
	if m.Request == nil {
		h.reply(Message{Type: TypeError, ID: m.ID, Port: m.Port}, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "missing request"}))
		return
	}
	p := h.ports[m.Port]
	if p == nil || !p.Send(*m.Request) {
		err := walleterr.ErrDisconnected
		h.out.send(Message{Type: TypeResponse, Port: m.Port, Response: &bridge.Response{
			ID:    m.Request.ID,
			Error: &bridge.Error{Code: walleterr.ProviderCode(err), Message: err.Error()},
		}})
	}
}

func (h *Host) state() StateResult {
	v := h.deps.Vault
	return StateResult{
		State:       v.State().String(),
		HasPassword: v.HasPassword(),
		CooldownMs:  v.CooldownRemaining().Milliseconds(),
	}
}

func (h *Host) balance(ctx context.Context) (*BalanceResult, error) {
	if h.deps.Node == nil || h.deps.Cache == nil {
		return nil, walleterr.ErrUnsupported
	}
	pub, err := h.deps.Vault.ActivePublicKey()
	if err != nil {
		return nil, err
	}
	b, err := h.deps.Cache.Balances.Fetch(ctx, h.deps.Node, pub, h.deps.Network)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{PublicKey: pub.String(), Lamports: b.Lamports}, nil
}

func (h *Host) backup(password, passphrase string) (*BackupResult, error) {
	if h.deps.Backups == nil {
		return nil, walleterr.ErrUnsupported
	}
	b, path, err := h.deps.Backups.Create(h.deps.Vault, password, passphrase)
	if err != nil {
		return nil, err
	}
	return &BackupResult{Path: path, Manifest: b.Manifest}, nil
}

// reply sends m, replacing its result with err when err is set.
func (h *Host) reply(m Message, err error) {
	if err != nil {
		m.Result = nil
		m.Error = &bridge.Error{Code: walleterr.ProviderCode(err), Message: err.Error()}
	}
	h.out.send(m)
}

// surface forwards approval prompts to the extension.
type surface struct{ h *Host }

func (s surface) Show(p bridge.Prompt) {
	s.h.out.send(Message{Type: TypePrompt, Prompt: &p})
}

func (s surface) Hide(id string) {
	s.h.out.send(Message{Type: TypeHide, ID: id})
}

// recordingSubmitter stores every sent transaction in the activity cache
// of the active wallet.
type recordingSubmitter struct {
	next bridge.Submitter
	host *Host
}

func (s *recordingSubmitter) SendRaw(ctx context.Context, raw []byte, pub solana.PublicKey) (solana.Signature, error) {
	sig, err := s.next.SendRaw(ctx, raw, pub)
	if err != nil {
		return sig, err
	}
	s.host.record(ctx, cache.Activity{Signature: sig.String(), Kind: bridge.MethodSignAndSendTransaction})
	return sig, nil
}
