package bridge

import (
	"context"
	"encoding/base64"
	"sync"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Port is one page channel. Responses leave in request order.
type Port struct {
	b      *Bridge
	ctx    context.Context
	cancel context.CancelFunc
	out    chan Response

	// Owned by the bridge loop.
	next    uint64
	flushed uint64
	slots   map[uint64]Response
	ids     map[uint64]string
	closed  bool

	mu       sync.Mutex
	outbox   []Response
	finished bool
	notify   chan struct{}
}

func newPort(b *Bridge) *Port {
	p := &Port{
		b:      b,
		out:    make(chan Response, 16),
		slots:  map[uint64]Response{},
		ids:    map[uint64]string{},
		notify: make(chan struct{}, 1),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go p.pump()
	return p
}

// Send submits req. It reports false once the bridge has stopped, when
// Responses is already closed.
func (p *Port) Send(req Request) bool {
	return p.b.post(func() {
		p.ids[p.next] = req.ID
		p.b.handle(p, req)
	})
}

// Responses delivers one Response per request. It is closed after Close.
func (p *Port) Responses() <-chan Response {
	return p.out
}

// Close detaches the page. Outstanding requests resolve to Disconnected.
func (p *Port) Close() {
	p.b.post(func() { p.b.closePort(p) })
}

// reserve assigns the next response slot.
func (p *Port) reserve() uint64 {
	seq := p.next
	p.next++
	return seq
}

// fill stores the response of seq and flushes every contiguous slot.
func (p *Port) fill(seq uint64, resp Response) {
	p.slots[seq] = resp
	delete(p.ids, seq)
	for {
		r, ok := p.slots[p.flushed]
		if !ok {
			return
		}
		delete(p.slots, p.flushed)
		p.flushed++
		p.push(r)
	}
}

// disconnect answers every open slot with Disconnected and ends output.
func (p *Port) disconnect() {
	p.cancel()
	for seq := p.flushed; seq < p.next; seq++ {
		if _, ok := p.slots[seq]; !ok {
			p.fill(seq, errorResponse(p.ids[seq], walleterr.ErrDisconnected))
		}
	}
	p.finish()
}

func (p *Port) push(r Response) {
	p.mu.Lock()
	p.outbox = append(p.outbox, r)
	p.mu.Unlock()
	p.wake()
}

func (p *Port) finish() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
	p.wake()
}

func (p *Port) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// pump moves responses from the outbox to out so the loop never blocks on
// a slow reader.
func (p *Port) pump() {
	defer close(p.out)
	for {
		p.mu.Lock()
		batch, finished := p.outbox, p.finished
		p.outbox = nil
		p.mu.Unlock()

		if len(batch) == 0 {
			if finished {
				return
			}
			<-p.notify
			continue
		}
		for _, r := range batch {
			p.out <- r
		}
	}
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
