// Package pool implements the per-collection deduplicating write buffer
// described by the Write Pool component: inserts dedup by full-document
// equality, updates dedup by filter equality (last write wins), and commit
// flushes inserts before updates, tolerating per-document failures.
package pool

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/roninchain/indexer/metrics"
)

// Collection is the minimal persistence surface a pool flushes against.
// Implementations (see storage.Collection) provide the actual document
// store semantics; the pool only sequences calls against it.
type Collection interface {
	InsertMany(ctx context.Context, docs []any) error
	Upsert(ctx context.Context, filter any, update any) error
}

// update is one buffered upsert, keyed by an encoding of its filter so that
// a repeated filter replaces the previous update (last write wins).
type update struct {
	filter any
	doc    any
}

// Pool is a generic write buffer for one collection. T is the entity type
// flowing through it; filters and updates are passed through to Collection
// untyped, matching the document-store idiom the persisted backend expects.
type Pool[T any] struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	name    string // collection label for PoolFlushSize; set via WithMetrics

	inserts    []T
	insertKeys map[string]int // encoded doc -> index in inserts, for dedup

	updates    []update
	updateKeys map[string]int // encoded filter -> index in updates, for dedup
}

// New creates an empty Pool.
func New[T any](log *zap.Logger) *Pool[T] {
	return &Pool[T]{
		log:        log,
		insertKeys: make(map[string]int),
		updateKeys: make(map[string]int),
	}
}

// WithMetrics attaches m and labels PoolFlushSize observations with name,
// returning p so it can be chained onto New at construction.
func (p *Pool[T]) WithMetrics(m *metrics.Metrics, name string) *Pool[T] {
	p.metrics = m
	p.name = name
	return p
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// encoding failure here means a non-serializable buffered value,
		// which is a programmer error, not a runtime condition to recover
		// from gracefully.
		panic(fmt.Sprintf("pool: cannot encode dedup key: %v", err))
	}
	return string(b)
}

// AddInsert buffers a document insert, deduped by full-document equality
// (last write wins).
func (p *Pool[T]) AddInsert(doc T) {
	key := encode(doc)
	if idx, ok := p.insertKeys[key]; ok {
		p.inserts[idx] = doc
		return
	}
	p.insertKeys[key] = len(p.inserts)
	p.inserts = append(p.inserts, doc)
}

// AddUpdate buffers an upsert, deduped by filter equality (last write wins).
func (p *Pool[T]) AddUpdate(filter any, doc any) {
	key := encode(filter)
	if idx, ok := p.updateKeys[key]; ok {
		p.updates[idx] = update{filter: filter, doc: doc}
		return
	}
	p.updateKeys[key] = len(p.updates)
	p.updates = append(p.updates, update{filter: filter, doc: doc})
}

// Len returns the number of buffered inserts plus updates.
func (p *Pool[T]) Len() int {
	return len(p.inserts) + len(p.updates)
}

// Commit flushes buffered inserts (single unordered batch, duplicate-key
// errors tolerated) then buffered updates (applied individually, failures
// logged and the batch continued). Buffers are cleared on return
// regardless of individual update failures. upsert is accepted for
// interface symmetry with the document-store idiom; every Collection this
// repo ships is upsert-by-construction.
func (p *Pool[T]) Commit(ctx context.Context, coll Collection, upsert bool) error {
	flushed := len(p.inserts) + len(p.updates)
	defer func() {
		if p.metrics != nil {
			p.metrics.PoolFlushSize.WithLabelValues(p.name).Observe(float64(flushed))
		}
		p.reset()
	}()

	if len(p.inserts) > 0 {
		docs := make([]any, len(p.inserts))
		for i, d := range p.inserts {
			docs[i] = d
		}
		if err := coll.InsertMany(ctx, docs); err != nil {
			// InsertMany itself is expected to swallow per-document
			// duplicate-key errors; a returned error here indicates a
			// connection-level failure, which is fatal to the walker.
			return fmt.Errorf("pool: insert batch failed: %w", err)
		}
	}

	for _, u := range p.updates {
		if err := coll.Upsert(ctx, u.filter, u.doc); err != nil {
			p.log.Warn("pool: update failed, continuing batch", zap.Error(err))
		}
	}

	return nil
}

func (p *Pool[T]) reset() {
	p.inserts = nil
	p.insertKeys = make(map[string]int)
	p.updates = nil
	p.updateKeys = make(map[string]int)
}
