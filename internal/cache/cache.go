// Package cache keeps display data that may be stale: balances, token
// holdings and activity. Entries live in a bounded LRU in memory and are
// mirrored to storage so they survive restarts.
package cache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/metrics"
	"github.com/x1wallet/walletcore/internal/storage"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// DefaultStaleness is the age after which an entry should be refreshed.
const DefaultStaleness = 5 * time.Minute

// DefaultSize bounds each in-memory cache.
const DefaultSize = 256

// Backend persists cache entries. *storage.Store satisfies it.
type Backend interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	PutJSON(ctx context.Context, key string, v any) error
	DeleteKey(ctx context.Context, key string) error
}

var _ Backend = (*storage.Store)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSize sets the in-memory bound of each cache.
func WithSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithLogger sets the log entry.
func WithLogger(l *log.Entry) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache groups the balance, token and activity caches over one backend.
type Cache struct {
	Balances *BalanceCache
	Tokens   *TokenCache
	Activity *ActivityCache

	now    func() time.Time
	size   int
	logger *log.Entry
}

// New returns caches persisted through backend.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		now:    time.Now,
		size:   DefaultSize,
		logger: log.WithFields(log.Fields{"prefix": "cache"}),
	}
	for _, o := range opts {
		o(c)
	}
	c.Balances = &BalanceCache{s: newStore[Balance](storage.KeyBalanceCache, backend, c)}
	c.Tokens = &TokenCache{s: newStore[[]TokenHolding](storage.KeyTokenCache, backend, c)}
	c.Activity = &ActivityCache{s: newStore[[]Activity](storage.KeyActivityCache, backend, c)}
	return c
}

// record is the persisted form of an entry.
type record[T any] struct {
	Value     T         `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// store is one named cache. The LRU fronts the backend; a miss in memory
// falls through to storage.
type store[T any] struct {
	name    string
	mem     *lru.Cache
	backend Backend
	now     func() time.Time
	logger  *log.Entry
}

func newStore[T any](name string, backend Backend, c *Cache) *store[T] {
	mem, _ := lru.New(c.size)
	return &store[T]{
		name:    name,
		mem:     mem,
		backend: backend,
		now:     c.now,
		logger:  c.logger.WithField("cache", name),
	}
}

func (s *store[T]) key(scope ...string) string {
	return storage.Key(s.name, scope...)
}

// get returns the entry and its age. A corrupt persisted entry is dropped
// and reported as a miss.
func (s *store[T]) get(ctx context.Context, scope ...string) (T, time.Duration, bool, error) {
	key := s.key(scope...)
	if v, ok := s.mem.Get(key); ok {
		metrics.Global.RecordCacheHit()
		r := v.(record[T])
		return r.Value, s.now().Sub(r.UpdatedAt), true, nil
	}

	var r record[T]
	ok, err := s.backend.GetJSON(ctx, key, &r)
	if errors.Is(err, walleterr.ErrStorageCorrupt) {
		s.logger.WithField("key", key).Warn("dropping corrupt cache entry")
		return r.Value, 0, false, s.backend.DeleteKey(ctx, key)
	}
	if err != nil || !ok {
		metrics.Global.RecordCacheMiss()
		return r.Value, 0, false, err
	}
	metrics.Global.RecordCacheHit()
	s.mem.Add(key, r)
	return r.Value, s.now().Sub(r.UpdatedAt), true, nil
}

func (s *store[T]) put(ctx context.Context, value T, scope ...string) error {
	key := s.key(scope...)
	r := record[T]{Value: value, UpdatedAt: s.now()}
	s.mem.Add(key, r)
	if err := s.backend.PutJSON(ctx, key, r); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("cache write failed")
		return err
	}
	return nil
}

func (s *store[T]) delete(ctx context.Context, scope ...string) error {
	key := s.key(scope...)
	s.mem.Remove(key)
	return s.backend.DeleteKey(ctx, key)
}

// IsStale reports whether an entry of age should be refreshed.
func IsStale(age time.Duration) bool {
	return age > DefaultStaleness
}
