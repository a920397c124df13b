// Package bridge serves the page-facing provider API. A single loop
// goroutine owns all state: ports post requests into its inbox, the
// approval surface posts decisions, and responses leave through one
// ordered output channel per port.
package bridge

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/metrics"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/txn"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// DefaultApprovalTimeout is how long a prompt waits for the user.
const DefaultApprovalTimeout = 5 * time.Minute

const inboxSize = 64

// Wallet signs on behalf of connected origins.
type Wallet interface {
	txn.Signer
	ActivePublicKey() (solana.PublicKey, error)
}

// Submitter signs a serialized transaction and sends it.
type Submitter interface {
	SendRaw(ctx context.Context, raw []byte, pub solana.PublicKey) (solana.Signature, error)
}

// Permissions persists connected origins.
type Permissions interface {
	Permission(ctx context.Context, origin string) (storage.Permission, bool, error)
	GrantPermission(ctx context.Context, origin string, p storage.Permission) error
	RevokePermission(ctx context.Context, origin string) error
}

var _ Permissions = (*storage.Store)(nil)

// Prompt is a request awaiting the user. Payload holds the message or
// transaction bytes to render.
type Prompt struct {
	ID      string    `json:"id"`
	Origin  string    `json:"origin"`
	Method  string    `json:"method"`
	Payload []byte    `json:"payload,omitempty"`
	Display string    `json:"display,omitempty"`
	Created time.Time `json:"created"`
}

// Surface renders at most one prompt at a time. It is called from the
// bridge loop and must not block.
type Surface interface {
	Show(p Prompt)
	Hide(id string)
}

// pending is a queued approval. Coalesced connects add waiters.
type pending struct {
	prompt  Prompt
	waiters []waiter
	payload []byte
	stop    func() bool
}

type waiter struct {
	port *Port
	seq  uint64
	id   string
}

// Bridge is the provider actor.
type Bridge struct {
	wallet    Wallet
	perms     Permissions
	surface   Surface
	submitter Submitter
	logger    *log.Entry
	timeout   time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) func() bool

	inbox chan func()
	done  chan struct{}

	// Owned by the loop.
	ctx      context.Context
	ports    map[*Port]struct{}
	queue    []*pending
	byOrigin map[string]*pending
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSubmitter enables signAndSendTransaction.
func WithSubmitter(s Submitter) Option {
	return func(b *Bridge) { b.submitter = s }
}

// WithApprovalTimeout overrides DefaultApprovalTimeout.
func WithApprovalTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the log entry.
func WithLogger(l *log.Entry) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithAfterFunc replaces time.AfterFunc for approval timeouts.
func WithAfterFunc(f func(time.Duration, func()) func() bool) Option {
	return func(b *Bridge) { b.afterFunc = f }
}

// New returns a bridge. Run must be called to serve requests.
func New(wallet Wallet, perms Permissions, surface Surface, opts ...Option) *Bridge {
	b := &Bridge{
		wallet:  wallet,
		perms:   perms,
		surface: surface,
		logger:  log.WithFields(log.Fields{"prefix": "bridge"}),
		timeout: DefaultApprovalTimeout,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		ports:    map[*Port]struct{}{},
		byOrigin: map[string]*pending{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run serves until ctx is done. On exit every outstanding request resolves
// to Disconnected and every port is closed.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx = ctx
	defer close(b.done)
	for {
		select {
		case f := <-b.inbox:
			f()
		case <-ctx.Done():
			for p := range b.ports {
				b.closePort(p)
			}
			return nil
		}
	}
}

// post queues f on the loop. It reports false once the loop has exited.
func (b *Bridge) post(f func()) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.inbox <- f:
		return true
	case <-b.done:
		return false
	}
}

// Open attaches a page channel.
func (b *Bridge) Open() *Port {
	p := newPort(b)
	if !b.post(func() { b.ports[p] = struct{}{} }) {
		p.finish()
	}
	return p
}

// Decide records the user's answer to prompt id. Unknown ids are ignored.
func (b *Bridge) Decide(id string, approved bool) {
	b.post(func() { b.decide(id, approved) })
}

// Dismiss closes prompt id without an answer, which counts as a denial.
func (b *Bridge) Dismiss(id string) {
	b.Decide(id, false)
}

func (b *Bridge) handle(p *Port, req Request) {
	seq := p.reserve()
	if p.closed {
		return
	}
	if req.Origin == "" {
		b.resolve(p, seq, errorResponse(req.ID, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "missing origin"})))
		return
	}
	logger := b.logger.WithFields(log.Fields{"origin": req.Origin, "method": req.Method})

	switch req.Method {
	case MethodConnect:
		b.connect(p, seq, req)
	case MethodDisconnect:
		if err := b.perms.RevokePermission(b.ctx, req.Origin); err != nil {
			b.resolve(p, seq, errorResponse(req.ID, err))
			return
		}
		if q := b.byOrigin[req.Origin]; q != nil {
			b.remove(q)
			b.resolveAll(q, walleterr.ErrDisconnected)
		}
		logger.Info("origin disconnected")
		b.resolve(p, seq, Response{ID: req.ID, Result: true})
	case MethodGetAccount:
		if err := b.requireConnected(req.Origin); err != nil {
			b.resolve(p, seq, errorResponse(req.ID, err))
			return
		}
		b.resolve(p, seq, b.accountResponse(req.ID))
	case MethodSignMessage, MethodSignTransaction, MethodSignAndSendTransaction:
		b.sign(p, seq, req)
	default:
		b.resolve(p, seq, errorResponse(req.ID, walleterr.WithDetails(walleterr.ErrUnknownMethod, map[string]string{"method": req.Method})))
	}
}

func (b *Bridge) connect(p *Port, seq uint64, req Request) {
	_, ok, err := b.perms.Permission(b.ctx, req.Origin)
	if err != nil {
		b.resolve(p, seq, errorResponse(req.ID, err))
		return
	}
	if ok {
		b.resolve(p, seq, b.accountResponse(req.ID))
		return
	}
	w := waiter{port: p, seq: seq, id: req.ID}
	if q := b.byOrigin[req.Origin]; q != nil {
		if q.prompt.Method == MethodConnect {
			q.waiters = append(q.waiters, w)
			return
		}
		b.resolve(p, seq, errorResponse(req.ID, walleterr.ErrAlreadyPending))
		return
	}
	b.enqueue(&pending{prompt: Prompt{Origin: req.Origin, Method: MethodConnect}, waiters: []waiter{w}})
}

func (b *Bridge) sign(p *Port, seq uint64, req Request) {
	if err := b.requireConnected(req.Origin); err != nil {
		b.resolve(p, seq, errorResponse(req.ID, err))
		return
	}
	if b.byOrigin[req.Origin] != nil {
		b.resolve(p, seq, errorResponse(req.ID, walleterr.ErrAlreadyPending))
		return
	}

	q := &pending{prompt: Prompt{Origin: req.Origin, Method: req.Method}, waiters: []waiter{{port: p, seq: seq, id: req.ID}}}
	if req.Method == MethodSignMessage {
		var params messageParams
		if err := decodeParams(req.Params, &params); err != nil {
			b.resolve(p, seq, errorResponse(req.ID, err))
			return
		}
		if len(params.Message) == 0 {
			b.resolve(p, seq, errorResponse(req.ID, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "empty message"})))
			return
		}
		q.payload, q.prompt.Display = params.Message, params.Display
	} else {
		var params transactionParams
		if err := decodeParams(req.Params, &params); err != nil {
			b.resolve(p, seq, errorResponse(req.ID, err))
			return
		}
		if _, err := txn.ParseRaw(params.Transaction); err != nil {
			b.resolve(p, seq, errorResponse(req.ID, err))
			return
		}
		if req.Method == MethodSignAndSendTransaction && b.submitter == nil {
			b.resolve(p, seq, errorResponse(req.ID, walleterr.ErrUnsupported))
			return
		}
		q.payload = params.Transaction
	}
	q.prompt.Payload = q.payload
	b.enqueue(q)
}

func (b *Bridge) requireConnected(origin string) error {
	_, ok, err := b.perms.Permission(b.ctx, origin)
	if err != nil {
		return err
	}
	if !ok {
		return walleterr.ErrNotAuthorized
	}
	return nil
}

func (b *Bridge) accountResponse(id string) Response {
	pub, err := b.wallet.ActivePublicKey()
	if err != nil {
		return errorResponse(id, err)
	}
	return Response{ID: id, Result: AccountResult{PublicKey: pub.String()}}
}

func (b *Bridge) enqueue(q *pending) {
	q.prompt.ID = uuid.NewString()
	q.prompt.Created = b.now()
	id := q.prompt.ID
	q.stop = b.afterFunc(b.timeout, func() {
		b.post(func() { b.expire(id) })
	})
	b.queue = append(b.queue, q)
	b.byOrigin[q.prompt.Origin] = q
	if len(b.queue) == 1 {
		b.surface.Show(q.prompt)
	}
}

func (b *Bridge) find(id string) *pending {
	for _, q := range b.queue {
		if q.prompt.ID == id {
			return q
		}
	}
	return nil
}

// remove drops q from the queue and shows the next prompt when q was
// visible.
func (b *Bridge) remove(q *pending) {
	if q.stop != nil {
		q.stop()
	}
	for i, other := range b.queue {
		if other != q {
			continue
		}
		b.queue = append(b.queue[:i], b.queue[i+1:]...)
		if i == 0 {
			b.surface.Hide(q.prompt.ID)
			if len(b.queue) > 0 {
				b.surface.Show(b.queue[0].prompt)
			}
		}
		break
	}
	if b.byOrigin[q.prompt.Origin] == q {
		delete(b.byOrigin, q.prompt.Origin)
	}
}

func (b *Bridge) expire(id string) {
	q := b.find(id)
	if q == nil {
		return
	}
	b.remove(q)
	metrics.Global.RecordApproval(metrics.ApprovalTimedOut)
	b.logger.WithFields(log.Fields{"origin": q.prompt.Origin, "method": q.prompt.Method}).Info("approval timed out")
	b.resolveAll(q, walleterr.ErrTimedOut)
}

func (b *Bridge) decide(id string, approved bool) {
	q := b.find(id)
	if q == nil {
		return
	}
	b.remove(q)
	logger := b.logger.WithFields(log.Fields{"origin": q.prompt.Origin, "method": q.prompt.Method})
	if !approved {
		metrics.Global.RecordApproval(metrics.ApprovalDenied)
		logger.Info("request rejected")
		b.resolveAll(q, walleterr.ErrUserRejected)
		return
	}
	metrics.Global.RecordApproval(metrics.ApprovalGranted)
	logger.Info("request approved")
	b.execute(q)
}

func (b *Bridge) resolveAll(q *pending, err error) {
	for _, w := range q.waiters {
		b.resolve(w.port, w.seq, errorResponse(w.id, err))
	}
}

// execute runs an approved request. Sending leaves the loop; its result
// comes back through the inbox.
func (b *Bridge) execute(q *pending) {
	w := q.waiters[0]
	origin := q.prompt.Origin

	if q.prompt.Method == MethodConnect {
		pub, err := b.wallet.ActivePublicKey()
		if err == nil {
			err = b.perms.GrantPermission(b.ctx, origin, storage.Permission{Address: pub.String(), ConnectedAt: b.now()})
		}
		for _, cw := range q.waiters {
			if err != nil {
				b.resolve(cw.port, cw.seq, errorResponse(cw.id, err))
				continue
			}
			b.resolve(cw.port, cw.seq, Response{ID: cw.id, Result: AccountResult{PublicKey: pub.String()}})
		}
		return
	}

	// the origin may have disconnected while the prompt was up
	if err := b.requireConnected(origin); err != nil {
		b.resolve(w.port, w.seq, errorResponse(w.id, err))
		return
	}
	pub, err := b.wallet.ActivePublicKey()
	if err != nil {
		b.resolve(w.port, w.seq, errorResponse(w.id, err))
		return
	}

	switch q.prompt.Method {
	case MethodSignMessage:
		sig, err := b.wallet.Sign(pub, q.payload)
		if err != nil {
			b.resolve(w.port, w.seq, errorResponse(w.id, err))
			return
		}
		b.resolve(w.port, w.seq, Response{ID: w.id, Result: SignatureResult{PublicKey: pub.String(), Signature: sig.String()}})

	case MethodSignTransaction:
		signed, err := txn.SignRaw(q.payload, pub, b.wallet)
		if err != nil {
			b.resolve(w.port, w.seq, errorResponse(w.id, err))
			return
		}
		b.resolve(w.port, w.seq, Response{ID: w.id, Result: TransactionResult{Transaction: encodeBase64(signed)}})

	case MethodSignAndSendTransaction:
		ctx, payload := w.port.ctx, q.payload
		go func() {
			sig, err := b.submitter.SendRaw(ctx, payload, pub)
			resp := Response{ID: w.id, Result: SignatureResult{Signature: sig.String()}}
			if err != nil {
				resp = errorResponse(w.id, err)
			}
			b.post(func() { b.resolve(w.port, w.seq, resp) })
		}()
	}
}

// resolve fills a response slot of p. Closed ports already answered
// Disconnected for every slot.
func (b *Bridge) resolve(p *Port, seq uint64, resp Response) {
	if p.closed {
		return
	}
	p.fill(seq, resp)
}

// closePort answers every outstanding request of p with Disconnected and
// withdraws its queued prompts.
func (b *Bridge) closePort(p *Port) {
	if p.closed {
		return
	}
	for _, q := range append([]*pending(nil), b.queue...) {
		kept := q.waiters[:0]
		for _, w := range q.waiters {
			if w.port != p {
				kept = append(kept, w)
			}
		}
		q.waiters = kept
		if len(kept) == 0 {
			b.remove(q)
		}
	}
	p.disconnect()
	p.closed = true
	delete(b.ports, p)
}
