package storage

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

type opKind int

const (
	opPut opKind = iota
	opDelete
	opBarrier
)

type op struct {
	kind  opKind
	key   string
	value []byte
	done  chan struct{}
}

// Mirror writes to the fast store synchronously and queues every write for
// the durable store. Reads prefer the fast store and backfill it from the
// durable one on a miss.
type Mirror struct {
	fast    KV
	durable KV

	queue chan op
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Compile-time interface check.
var _ KV = (*Mirror)(nil)

// mirrorQueueSize bounds pending durable writes before Put blocks.
const mirrorQueueSize = 256

// NewMirror starts the durable writer and reconciles the two stores. On
// conflict the fast store wins; keys only present in the durable store are
// copied into the fast one.
func NewMirror(ctx context.Context, fast, durable KV) (*Mirror, error) {
	m := &Mirror{
		fast:    fast,
		durable: durable,
		queue:   make(chan op, mirrorQueueSize),
	}
	if err := m.reconcile(ctx); err != nil {
		return nil, err
	}
	m.wg.Add(1)
	go m.run()
	return m, nil
}

func (m *Mirror) reconcile(ctx context.Context) error {
	fastKeys, err := m.fast.Keys(ctx, Prefix)
	if err != nil {
		return err
	}
	for _, k := range fastKeys {
		v, err := m.fast.Get(ctx, k)
		if err != nil {
			return err
		}
		if err := m.durable.Put(ctx, k, v); err != nil {
			return err
		}
	}
	durableKeys, err := m.durable.Keys(ctx, Prefix)
	if err != nil {
		return err
	}
	for _, k := range durableKeys {
		if _, err := m.fast.Get(ctx, k); err == nil {
			continue
		}
		v, err := m.durable.Get(ctx, k)
		if err != nil {
			return err
		}
		if err := m.fast.Put(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) run() {
	defer m.wg.Done()
	ctx := context.Background()
	for o := range m.queue {
		var err error
		switch o.kind {
		case opPut:
			err = m.durable.Put(ctx, o.key, o.value)
		case opDelete:
			err = m.durable.Delete(ctx, o.key)
		case opBarrier:
			close(o.done)
			continue
		}
		if err != nil {
			logger.WithFields(log.Fields{"key": o.key}).WithError(err).Warn("durable write failed")
		}
	}
}

func (m *Mirror) enqueue(ctx context.Context, o op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	select {
	case m.queue <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errClosed = errors.New("storage closed")

// Get implements KV.
func (m *Mirror) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := m.fast.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	v, err = m.durable.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if perr := m.fast.Put(ctx, key, v); perr != nil {
		logger.WithField("key", key).WithError(perr).Warn("backfill failed")
	}
	return v, nil
}

// Put implements KV. The fast store holds the value when Put returns.
func (m *Mirror) Put(ctx context.Context, key string, value []byte) error {
	if err := m.fast.Put(ctx, key, value); err != nil {
		return err
	}
	return m.enqueue(ctx, op{kind: opPut, key: key, value: append([]byte(nil), value...)})
}

// Delete implements KV.
func (m *Mirror) Delete(ctx context.Context, key string) error {
	if err := m.fast.Delete(ctx, key); err != nil {
		return err
	}
	return m.enqueue(ctx, op{kind: opDelete, key: key})
}

// Keys implements KV from the fast store, which always holds the union
// after reconciliation.
func (m *Mirror) Keys(ctx context.Context, prefix string) ([]string, error) {
	return m.fast.Keys(ctx, prefix)
}

// Flush waits until every write queued before the call reached the durable
// store.
func (m *Mirror) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := m.enqueue(ctx, op{kind: opBarrier, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and closes both stores.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	return errors.Join(m.fast.Close(), m.durable.Close())
}
