package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roninchain/indexer/metrics"
)

// ErrDuplicateKey is returned by Collection.insert when a document with the
// same primary key already exists. InsertMany, the unordered batch insert
// that pool.Pool.Commit calls, tolerates this per-document.
var ErrDuplicateKey = errors.New("storage: duplicate key")

// IndexSpec describes one secondary (non-unique) index maintained alongside
// a collection's primary data. Index entries are maintained for structural
// fidelity with the Persistence Gateway's index table (§4.D) but are not
// read back by any query surface — this repo implements no query API.
type IndexSpec[T any] struct {
	Name    string
	KeyFunc func(doc T) string
}

// Collection is a typed document store layered on a byte-oriented Backend,
// keyed by a caller-supplied primary key extractor. It is the unit the
// Persistence Gateway exposes per entity type.
type Collection[T any] struct {
	name       string
	backend    Backend
	primaryKey func(doc T) string
	indexes    []IndexSpec[T]
	metrics    *metrics.Metrics
}

// SetMetrics wires m into the collection so tolerated duplicate-key errors
// are counted. Called once by Gateway.SetMetrics after construction.
func (c *Collection[T]) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// NewCollection creates a Collection bound to backend, storing documents
// under /data/<name>/<primaryKey> and maintaining the given secondary
// indexes under /index/<name>/<indexName>/<indexKey>/<primaryKey>.
func NewCollection[T any](backend Backend, name string, primaryKey func(T) string, indexes []IndexSpec[T]) *Collection[T] {
	return &Collection[T]{name: name, backend: backend, primaryKey: primaryKey, indexes: indexes}
}

func (c *Collection[T]) dataKey(pk string) []byte {
	return []byte(fmt.Sprintf("/data/%s/%s", c.name, pk))
}

func (c *Collection[T]) indexKey(idx, key, pk string) []byte {
	return []byte(fmt.Sprintf("/index/%s/%s/%s/%s", c.name, idx, key, pk))
}

// insert writes a single document, returning ErrDuplicateKey if its primary
// key already exists.
func (c *Collection[T]) insert(doc T) error {
	pk := c.primaryKey(doc)
	dk := c.dataKey(pk)

	exists, err := c.backend.Has(dk)
	if err != nil {
		return fmt.Errorf("storage: %s: checking existence: %w", c.name, err)
	}
	if exists {
		return ErrDuplicateKey
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage: %s: encoding document: %w", c.name, err)
	}
	if err := c.backend.Set(dk, data); err != nil {
		return fmt.Errorf("storage: %s: writing document: %w", c.name, err)
	}

	for _, idx := range c.indexes {
		ik := c.indexKey(idx.Name, idx.KeyFunc(doc), pk)
		if err := c.backend.Set(ik, []byte{}); err != nil {
			return fmt.Errorf("storage: %s: writing index %s: %w", c.name, idx.Name, err)
		}
	}
	return nil
}

// InsertMany writes docs as an unordered batch: duplicate-key failures on
// individual documents are tolerated (required for idempotent replays over
// already-indexed ranges); any other failure aborts the batch.
func (c *Collection[T]) InsertMany(_ context.Context, docs []any) error {
	for _, d := range docs {
		doc, ok := d.(T)
		if !ok {
			return fmt.Errorf("storage: %s: unexpected document type %T", c.name, d)
		}
		if err := c.insert(doc); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				if c.metrics != nil {
					c.metrics.DuplicateKeys.WithLabelValues(c.name).Inc()
				}
				continue
			}
			return err
		}
	}
	return nil
}

// Upsert writes doc, replacing any existing document with the same primary
// key. The filter parameter is accepted for interface symmetry with the
// document-store idiom (filter + update) but the primary key is derived
// directly from doc, which the walker always constructs in full.
func (c *Collection[T]) Upsert(_ context.Context, _ any, doc any) error {
	d, ok := doc.(T)
	if !ok {
		return fmt.Errorf("storage: %s: unexpected document type %T", c.name, doc)
	}
	pk := c.primaryKey(d)
	dk := c.dataKey(pk)

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("storage: %s: encoding document: %w", c.name, err)
	}
	if err := c.backend.Set(dk, data); err != nil {
		return fmt.Errorf("storage: %s: writing document: %w", c.name, err)
	}
	for _, idx := range c.indexes {
		ik := c.indexKey(idx.Name, idx.KeyFunc(d), pk)
		if err := c.backend.Set(ik, []byte{}); err != nil {
			return fmt.Errorf("storage: %s: writing index %s: %w", c.name, idx.Name, err)
		}
	}
	return nil
}

// Get retrieves the document stored under primary key pk.
func (c *Collection[T]) Get(pk string) (T, bool, error) {
	var zero T
	data, err := c.backend.Get(c.dataKey(pk))
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return zero, false, fmt.Errorf("storage: %s: decoding document: %w", c.name, err)
	}
	return doc, true, nil
}

// Count scans the collection's data prefix and reports the number of
// documents stored. Used by tests; not exposed as a query surface.
func (c *Collection[T]) Count() int {
	prefix := []byte(fmt.Sprintf("/data/%s/", c.name))
	it := c.backend.NewIterator(prefix)
	defer it.Close()
	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		n++
	}
	return n
}

// DropAll deletes every document and index entry belonging to this
// collection. Used by the replay path.
func (c *Collection[T]) DropAll() error {
	if err := c.backend.DeletePrefix([]byte(fmt.Sprintf("/data/%s/", c.name))); err != nil {
		return err
	}
	return c.backend.DeletePrefix([]byte(fmt.Sprintf("/index/%s/", c.name)))
}
