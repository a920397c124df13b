package storage

import (
	"context"
	"sync"

	"github.com/x1wallet/walletcore/internal/fileutil"
)

// FastStore is the synchronous store. It keeps every value in memory and,
// when given a path, rewrites a JSON snapshot atomically after each
// mutation so a write is on disk before Put returns.
type FastStore struct {
	*MemoryKV

	path string
	mu   sync.Mutex // serializes snapshot writes
}

// Compile-time interface check.
var _ KV = (*FastStore)(nil)

// OpenFastStore loads the snapshot at path. An empty path keeps the store
// purely in memory.
func OpenFastStore(path string) (*FastStore, error) {
	f := &FastStore{MemoryKV: NewMemoryKV(), path: path}
	if path == "" {
		return f, nil
	}
	var snap map[string][]byte
	if _, err := fileutil.ReadJSON(path, &snap); err != nil {
		return nil, err
	}
	for k, v := range snap {
		f.data[k] = v
	}
	return f, nil
}

// Put implements KV.
func (f *FastStore) Put(ctx context.Context, key string, value []byte) error {
	if err := f.MemoryKV.Put(ctx, key, value); err != nil {
		return err
	}
	return f.flush()
}

// Delete implements KV.
func (f *FastStore) Delete(ctx context.Context, key string) error {
	if err := f.MemoryKV.Delete(ctx, key); err != nil {
		return err
	}
	return f.flush()
}

func (f *FastStore) flush() error {
	if f.path == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fileutil.WriteJSON(f.path, f.snapshot())
}
