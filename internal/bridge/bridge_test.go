package bridge_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/bridge"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/txn"
	"github.com/x1wallet/walletcore/internal/vault"
	"github.com/x1wallet/walletcore/internal/wallet"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

const (
	originA = "https://dex.example"
	originB = "https://nft.example"
	wait    = 2 * time.Second
)

var _ bridge.Wallet = (*vault.Vault)(nil)

type fakeSurface struct {
	shown  chan bridge.Prompt
	hidden chan string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{shown: make(chan bridge.Prompt, 16), hidden: make(chan string, 16)}
}

func (s *fakeSurface) Show(p bridge.Prompt) { s.shown <- p }
func (s *fakeSurface) Hide(id string)       { s.hidden <- id }

func (s *fakeSurface) next(t *testing.T) bridge.Prompt {
	t.Helper()
	select {
	case p := <-s.shown:
		return p
	case <-time.After(wait):
		t.Fatal("no prompt shown")
		return bridge.Prompt{}
	}
}

func (s *fakeSurface) none(t *testing.T) {
	t.Helper()
	select {
	case p := <-s.shown:
		t.Fatalf("unexpected prompt for %s %s", p.Origin, p.Method)
	case <-time.After(50 * time.Millisecond):
	}
}

// manualTimers holds approval timeouts until fired.
type manualTimers struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualTimers) afterFunc(_ time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return func() bool { return true }
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.fns[i]
	m.mu.Unlock()
	f()
}

type fakeSubmitter struct {
	wallet *vault.Vault
	sent   chan []byte
}

func (f *fakeSubmitter) SendRaw(_ context.Context, raw []byte, pub solana.PublicKey) (solana.Signature, error) {
	signed, err := txn.SignRaw(raw, pub, f.wallet)
	if err != nil {
		return solana.Signature{}, err
	}
	f.sent <- signed
	parsed, err := txn.ParseRaw(signed)
	if err != nil {
		return solana.Signature{}, err
	}
	return parsed.Signatures[parsed.SignerIndex(pub)], nil
}

type harness struct {
	bridge  *bridge.Bridge
	surface *fakeSurface
	store   *storage.Store
	vault   *vault.Vault
	pub     solana.PublicKey
	timers  *manualTimers
	sent    chan []byte
	cancel  context.CancelFunc
	stopped chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := storage.NewStore(storage.NewMemoryKV())
	v, err := vault.New(ctx, store)
	require.NoError(t, err)
	w, err := wallet.NewKeyWallet("A", bytes.Repeat([]byte{0xAA}, 32))
	require.NoError(t, err)
	require.NoError(t, v.CreateWallet(ctx, w, ""))
	pub, err := v.ActivePublicKey()
	require.NoError(t, err)

	h := &harness{
		surface: newFakeSurface(),
		store:   store,
		vault:   v,
		pub:     pub,
		timers:  &manualTimers{},
		sent:    make(chan []byte, 4),
		stopped: make(chan struct{}),
	}
	h.bridge = bridge.New(v, store, h.surface,
		bridge.WithAfterFunc(h.timers.afterFunc),
		bridge.WithSubmitter(&fakeSubmitter{wallet: v, sent: h.sent}),
	)
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go func() {
		_ = h.bridge.Run(runCtx)
		close(h.stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.stopped
		v.Close()
	})
	return h
}

func recv(t *testing.T, p *bridge.Port) bridge.Response {
	t.Helper()
	select {
	case r, ok := <-p.Responses():
		require.True(t, ok, "responses closed")
		return r
	case <-time.After(wait):
		t.Fatal("no response")
		return bridge.Response{}
	}
}

func request(id, origin, method string, params any) bridge.Request {
	req := bridge.Request{ID: id, Origin: origin, Method: method}
	if params != nil {
		raw, _ := json.Marshal(params)
		req.Params = raw
	}
	return req
}

func signMessage(id, origin, msg string) bridge.Request {
	return request(id, origin, bridge.MethodSignMessage, map[string]any{"message": []byte(msg)})
}

// connect approves a connect from origin on port.
func (h *harness) connect(t *testing.T, port *bridge.Port, origin string) {
	t.Helper()
	port.Send(request("c-"+origin, origin, bridge.MethodConnect, nil))
	prompt := h.surface.next(t)
	require.Equal(t, bridge.MethodConnect, prompt.Method)
	h.bridge.Decide(prompt.ID, true)
	resp := recv(t, port)
	require.Nil(t, resp.Error)
	<-h.surface.hidden
}

func resultField(t *testing.T, resp bridge.Response, field string) string {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[field]
}

func TestBridge_RejectThenApproveSignMessage(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	port.Send(signMessage("1", originA, "hello"))
	prompt := h.surface.next(t)
	assert.Equal(t, originA, prompt.Origin)
	assert.Equal(t, []byte("hello"), prompt.Payload)
	h.bridge.Decide(prompt.ID, false)

	resp := recv(t, port)
	assert.Equal(t, "1", resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeUserRejected, resp.Error.Code)
	assert.Nil(t, resp.Result)

	port.Send(signMessage("2", originA, "hello"))
	prompt = h.surface.next(t)
	h.bridge.Decide(prompt.ID, true)

	resp = recv(t, port)
	require.Nil(t, resp.Error)
	sig, err := solana.SignatureFromBase58(resultField(t, resp, "signature"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(h.pub[:], []byte("hello"), sig[:]))
	assert.Equal(t, h.pub.String(), resultField(t, resp, "publicKey"))
}

func TestBridge_ConnectRemembered(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	perm, ok, err := h.store.Permission(context.Background(), originA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.pub.String(), perm.Address)

	port.Send(request("again", originA, bridge.MethodConnect, nil))
	resp := recv(t, port)
	require.Nil(t, resp.Error)
	assert.Equal(t, h.pub.String(), resultField(t, resp, "publicKey"))
	h.surface.none(t)

	port.Send(request("acct", originA, bridge.MethodGetAccount, nil))
	resp = recv(t, port)
	assert.Equal(t, h.pub.String(), resultField(t, resp, "publicKey"))

	port.Send(request("bye", originA, bridge.MethodDisconnect, nil))
	resp = recv(t, port)
	assert.Equal(t, true, resp.Result)

	port.Send(request("acct2", originA, bridge.MethodGetAccount, nil))
	resp = recv(t, port)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeUnauthorized, resp.Error.Code)
}

func TestBridge_RequiresConnection(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()

	port.Send(signMessage("1", originA, "hello"))
	resp := recv(t, port)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeUnauthorized, resp.Error.Code)
	h.surface.none(t)

	port.Send(request("2", originA, "eth_sendTransaction", nil))
	resp = recv(t, port)
	assert.Equal(t, walleterr.CodeInvalidParams, resp.Error.Code)

	port.Send(request("3", "", bridge.MethodConnect, nil))
	resp = recv(t, port)
	assert.Equal(t, walleterr.CodeInvalidParams, resp.Error.Code)
}

func TestBridge_AlreadyPendingKeepsOrder(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	port.Send(signMessage("1", originA, "first"))
	prompt := h.surface.next(t)
	port.Send(signMessage("2", originA, "second"))
	h.surface.none(t)

	h.bridge.Decide(prompt.ID, true)
	first := recv(t, port)
	second := recv(t, port)
	assert.Equal(t, "1", first.ID)
	assert.Nil(t, first.Error)
	assert.Equal(t, "2", second.ID)
	require.NotNil(t, second.Error)
	assert.Equal(t, walleterr.CodeUnauthorized, second.Error.Code)
	assert.Contains(t, second.Error.Message, "already pending")
}

func TestBridge_ConnectCoalesced(t *testing.T) {
	h := newHarness(t)
	tab1, tab2 := h.bridge.Open(), h.bridge.Open()

	tab1.Send(request("a", originA, bridge.MethodConnect, nil))
	prompt := h.surface.next(t)
	tab2.Send(request("b", originA, bridge.MethodConnect, nil))
	h.surface.none(t)

	h.bridge.Decide(prompt.ID, true)
	for _, p := range []*bridge.Port{tab1, tab2} {
		resp := recv(t, p)
		require.Nil(t, resp.Error)
		assert.Equal(t, h.pub.String(), resultField(t, resp, "publicKey"))
	}
}

func TestBridge_FIFOAcrossOrigins(t *testing.T) {
	h := newHarness(t)
	pa, pb := h.bridge.Open(), h.bridge.Open()
	h.connect(t, pa, originA)
	h.connect(t, pb, originB)

	pa.Send(signMessage("a", originA, "from a"))
	first := h.surface.next(t)
	pb.Send(signMessage("b", originB, "from b"))
	h.surface.none(t)
	assert.Equal(t, originA, first.Origin)

	h.bridge.Dismiss(first.ID)
	assert.Equal(t, first.ID, <-h.surface.hidden)
	second := h.surface.next(t)
	assert.Equal(t, originB, second.Origin)

	resp := recv(t, pa)
	assert.Equal(t, walleterr.CodeUserRejected, resp.Error.Code)
}

func TestBridge_Timeout(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	port.Send(signMessage("1", originA, "hello"))
	prompt := h.surface.next(t)
	h.timers.fire(1)

	resp := recv(t, port)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeUserRejected, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "timed out")
	assert.Equal(t, prompt.ID, <-h.surface.hidden)

	h.bridge.Decide(prompt.ID, true)
	h.surface.none(t)
}

func TestBridge_PortCloseDisconnects(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	port.Send(signMessage("1", originA, "hello"))
	prompt := h.surface.next(t)
	port.Close()

	resp := recv(t, port)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeDisconnected, resp.Error.Code)
	assert.Equal(t, prompt.ID, <-h.surface.hidden)

	_, ok := <-port.Responses()
	assert.False(t, ok)
}

func TestBridge_ShutdownDisconnects(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)
	port.Send(signMessage("1", originA, "hello"))
	h.surface.next(t)

	h.cancel()
	resp := recv(t, port)
	assert.Equal(t, walleterr.CodeDisconnected, resp.Error.Code)
	<-h.stopped
	assert.False(t, port.Send(signMessage("2", originA, "late")))
}

func unsignedTransfer(t *testing.T, from solana.PublicKey) []byte {
	t.Helper()
	plan, err := txn.NewBuilder(nil).NativeTransfer(from, solana.SystemProgramID, 1)
	require.NoError(t, err)
	tx, err := txn.Compile(from, solana.Hash{7}, txn.Priority{}, plan.Instructions...)
	require.NoError(t, err)
	raw, err := txn.Serialize(tx)
	require.NoError(t, err)
	return raw
}

func TestBridge_SignTransaction(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)
	raw := unsignedTransfer(t, h.pub)

	port.Send(request("tx", originA, bridge.MethodSignTransaction, map[string]any{"transaction": raw}))
	prompt := h.surface.next(t)
	assert.Equal(t, raw, prompt.Payload)
	h.bridge.Decide(prompt.ID, true)

	resp := recv(t, port)
	require.Nil(t, resp.Error)
	signed, err := base64.StdEncoding.DecodeString(resultField(t, resp, "transaction"))
	require.NoError(t, err)
	parsed, err := txn.ParseRaw(signed)
	require.NoError(t, err)
	assert.True(t, parsed.Verify(0))
	assert.Equal(t, raw[1+solana.SignatureLength:], signed[1+solana.SignatureLength:])

	port.Send(request("bad", originA, bridge.MethodSignTransaction, map[string]any{"transaction": []byte{1, 2}}))
	resp = recv(t, port)
	assert.Equal(t, walleterr.CodeInvalidParams, resp.Error.Code)
}

func TestBridge_SignAndSendTransaction(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)
	raw := unsignedTransfer(t, h.pub)

	port.Send(request("send", originA, bridge.MethodSignAndSendTransaction, map[string]any{"transaction": raw}))
	prompt := h.surface.next(t)
	h.bridge.Decide(prompt.ID, true)

	resp := recv(t, port)
	require.Nil(t, resp.Error)
	sent := <-h.sent
	parsed, err := txn.ParseRaw(sent)
	require.NoError(t, err)
	assert.Equal(t, parsed.Signatures[0].String(), resultField(t, resp, "signature"))
}

func TestBridge_DisconnectWithdrawsPendingSign(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	port.Send(signMessage("1", originA, "hello"))
	prompt := h.surface.next(t)

	port.Send(request("2", originA, bridge.MethodDisconnect, nil))
	resp := recv(t, port)
	assert.Equal(t, "1", resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeDisconnected, resp.Error.Code)
	assert.Equal(t, prompt.ID, <-h.surface.hidden)

	resp = recv(t, port)
	assert.Equal(t, "2", resp.ID)
	assert.Nil(t, resp.Error)

	// a late approval for the withdrawn prompt signs nothing
	h.bridge.Decide(prompt.ID, true)
	select {
	case r := <-port.Responses():
		t.Fatalf("unexpected response %s", r.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridge_ApproveAfterRevokeRefusesToSign(t *testing.T) {
	h := newHarness(t)
	port := h.bridge.Open()
	h.connect(t, port, originA)

	port.Send(signMessage("1", originA, "hello"))
	prompt := h.surface.next(t)

	// revoked outside the bridge, e.g. from the connected sites list
	require.NoError(t, h.store.RevokePermission(context.Background(), originA))
	h.bridge.Decide(prompt.ID, true)

	resp := recv(t, port)
	require.NotNil(t, resp.Error)
	assert.Equal(t, walleterr.CodeUnauthorized, resp.Error.Code)
	assert.Nil(t, resp.Result)
}
