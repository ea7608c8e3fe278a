package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDoc struct {
	Key   string
	Value int
}

type fakeCollection struct {
	calls    []string
	inserted []any
	upserted []struct {
		filter any
		doc    any
	}
	insertErr error
}

func (f *fakeCollection) InsertMany(_ context.Context, docs []any) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.calls = append(f.calls, "insert")
	f.inserted = append(f.inserted, docs...)
	return nil
}

func (f *fakeCollection) Upsert(_ context.Context, filter any, doc any) error {
	f.calls = append(f.calls, "upsert")
	f.upserted = append(f.upserted, struct {
		filter any
		doc    any
	}{filter, doc})
	return nil
}

func TestAddInsertDedupsByFullDocument(t *testing.T) {
	p := New[fakeDoc](zap.NewNop())
	p.AddInsert(fakeDoc{Key: "a", Value: 1})
	p.AddInsert(fakeDoc{Key: "a", Value: 1})
	p.AddInsert(fakeDoc{Key: "a", Value: 2})

	assert.Equal(t, 2, p.Len())
}

func TestAddUpdateLastWriteWins(t *testing.T) {
	p := New[fakeDoc](zap.NewNop())
	p.AddUpdate(map[string]string{"key": "a"}, fakeDoc{Key: "a", Value: 1})
	p.AddUpdate(map[string]string{"key": "a"}, fakeDoc{Key: "a", Value: 2})

	assert.Equal(t, 1, p.Len())

	coll := &fakeCollection{}
	require.NoError(t, p.Commit(context.Background(), coll, true))
	require.Len(t, coll.upserted, 1)
	assert.Equal(t, fakeDoc{Key: "a", Value: 2}, coll.upserted[0].doc)
}

func TestCommitOrdersInsertsBeforeUpdatesAndClearsBuffers(t *testing.T) {
	p := New[fakeDoc](zap.NewNop())
	p.AddInsert(fakeDoc{Key: "a"})
	p.AddUpdate(map[string]string{"key": "b"}, fakeDoc{Key: "b"})

	coll := &fakeCollection{}
	require.NoError(t, p.Commit(context.Background(), coll, true))

	assert.Equal(t, []string{"insert", "upsert"}, coll.calls)
	assert.Len(t, coll.inserted, 1)
	assert.Len(t, coll.upserted, 1)
	assert.Equal(t, 0, p.Len())
}

func TestCommitAppliesUpdatesRegardlessOfUpsertFlag(t *testing.T) {
	p := New[fakeDoc](zap.NewNop())
	p.AddUpdate(map[string]string{"key": "a"}, fakeDoc{Key: "a"})

	coll := &fakeCollection{}
	require.NoError(t, p.Commit(context.Background(), coll, false))
	assert.Len(t, coll.upserted, 1)
}
