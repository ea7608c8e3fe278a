// Package storage implements the Persistence Gateway: typed collections with
// unique/secondary indexes and a settings key/value store, layered on a
// pluggable byte-oriented Backend backed by PebbleDB.
package storage

import (
	"errors"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Sentinel errors.
var (
	ErrNotFound  = errors.New("storage: key not found")
	ErrClosed    = errors.New("storage: backend is closed")
	ErrReadOnly  = errors.New("storage: backend is read-only")
)

// Iterator walks backend keys in ascending lexicographic order within a
// bound prefix.
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
}

// Backend is the byte-oriented storage primitive the gateway's typed
// collections are built on.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	NewIterator(prefix []byte) Iterator
	DeletePrefix(prefix []byte) error
	Close() error
}

// PebbleBackend is the production Backend, backed by an embedded
// cockroachdb/pebble LSM store.
type PebbleBackend struct {
	db     *pebble.DB
	closed bool
	mu     sync.RWMutex
}

// PebbleOptions configures the underlying pebble.DB.
type PebbleOptions struct {
	CacheSizeMB     int
	MaxOpenFiles    int
	WriteBufferMB   int
}

// OpenPebble opens (creating if absent) a pebble.DB at dir.
func OpenPebble(dir string, opts PebbleOptions) (*PebbleBackend, error) {
	cache := pebble.NewCache(int64(opts.CacheSizeMB) << 20)
	defer cache.Unref()

	pebbleOpts := &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: opts.MaxOpenFiles,
	}
	if opts.WriteBufferMB > 0 {
		pebbleOpts.MemTableSize = uint64(opts.WriteBufferMB) << 20
	}

	db, err := pebble.Open(dir, pebbleOpts)
	if err != nil {
		return nil, err
	}
	return &PebbleBackend{db: db}, nil
}

func (b *PebbleBackend) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	v, closer, err := b.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

func (b *PebbleBackend) Set(key, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return b.db.Set(key, value, pebble.Sync)
}

func (b *PebbleBackend) Delete(key []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return b.db.Delete(key, pebble.Sync)
}

func (b *PebbleBackend) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *PebbleBackend) DeletePrefix(prefix []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	upper := prefixUpperBound(prefix)
	return b.db.DeleteRange(prefix, upper, pebble.Sync)
}

func (b *PebbleBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *PebbleBackend) NewIterator(prefix []byte) Iterator {
	it, err := b.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return &errIterator{err: err}
	}
	return &pebbleIterator{it: it}
}

type pebbleIterator struct {
	it *pebble.Iterator
}

func (p *pebbleIterator) First() bool { return p.it.First() }
func (p *pebbleIterator) Next() bool  { return p.it.Next() }
func (p *pebbleIterator) Valid() bool { return p.it.Valid() }
func (p *pebbleIterator) Key() []byte { return append([]byte(nil), p.it.Key()...) }
func (p *pebbleIterator) Value() []byte {
	return append([]byte(nil), p.it.Value()...)
}
func (p *pebbleIterator) Close() error { return p.it.Close() }

type errIterator struct{ err error }

func (e *errIterator) First() bool    { return false }
func (e *errIterator) Next() bool     { return false }
func (e *errIterator) Valid() bool    { return false }
func (e *errIterator) Key() []byte    { return nil }
func (e *errIterator) Value() []byte  { return nil }
func (e *errIterator) Close() error   { return e.err }

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded above
}

// MemoryBackend is an in-memory Backend for tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, string(key))
	return nil
}

func (m *MemoryBackend) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryBackend) DeletePrefix(prefix []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	p := string(prefix)
	for k := range m.data {
		if len(k) >= len(p) && k[:len(p)] == p {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryBackend) NewIterator(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := string(prefix)
	keys := make([]string, 0)
	for k := range m.data {
		if len(k) >= len(p) && k[:len(p)] == p {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), m.data[k]...)
	}
	return &memIterator{keys: keys, values: values, pos: -1}
}

type memIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (it *memIterator) First() bool {
	it.pos = 0
	return it.Valid()
}
func (it *memIterator) Next() bool {
	it.pos++
	return it.Valid()
}
func (it *memIterator) Valid() bool { return it.pos >= 0 && it.pos < len(it.keys) }
func (it *memIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return []byte(it.keys[it.pos])
}
func (it *memIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.values[it.pos]
}
func (it *memIterator) Close() error { return nil }
