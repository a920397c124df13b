package storage

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var logger = log.WithFields(log.Fields{"prefix": "storage"})

// DurableStore is the LevelDB-backed durable store.
type DurableStore struct {
	fn string
	db *leveldb.DB
}

// Compile-time interface check.
var _ KV = (*DurableStore)(nil)

// OpenDurableStore opens (or creates) the database at file, recovering a
// corrupted manifest when possible.
func OpenDurableStore(file string) (*DurableStore, error) {
	db, err := leveldb.OpenFile(file, &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
	})
	var corrupted *lerrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		logger.WithError(err).Warn("durable store corrupted, recovering")
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	logger.WithField("path", file).Debug("opened durable store")
	return &DurableStore{fn: file, db: db}, nil
}

// NewMemDurableStore returns a DurableStore over in-memory LevelDB storage.
func NewMemDurableStore() (*DurableStore, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &DurableStore{fn: ":memory:", db: db}, nil
}

// Path returns the path to the database directory.
func (d *DurableStore) Path() string {
	return d.fn
}

// Get implements KV.
func (d *DurableStore) Get(_ context.Context, key string) ([]byte, error) {
	v, err := d.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

// Put implements KV. Writes are synced to disk.
func (d *DurableStore) Put(_ context.Context, key string, value []byte) error {
	return d.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true})
}

// Delete implements KV.
func (d *DurableStore) Delete(_ context.Context, key string) error {
	return d.db.Delete([]byte(key), &opt.WriteOptions{Sync: true})
}

// Keys implements KV.
func (d *DurableStore) Keys(_ context.Context, prefix string) ([]string, error) {
	it := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()
	var out []string
	for it.Next() {
		out = append(out, string(it.Key()))
	}
	return out, it.Error()
}

// Close implements KV.
func (d *DurableStore) Close() error {
	return d.db.Close()
}
