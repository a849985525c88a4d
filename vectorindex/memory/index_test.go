package memory

import (
	"context"
	"testing"

	"github.com/eunoia-app/eunoia/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_NamespaceIsolation(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "alice", "a1", []float32{1, 0}, map[string]any{"content": "alice turn"}))
	require.NoError(t, index.Upsert(ctx, "bob", "b1", []float32{1, 0}, map[string]any{"content": "bob turn"}))

	matches, err := index.Query(ctx, "alice", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a1", matches[0].Id)
}

func TestQuery_MetadataFilter(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "ns", "k1", []float32{1, 0}, map[string]any{
		vectorindex.MetaDocType: vectorindex.DocTypeKnowledge,
	}))
	require.NoError(t, index.Upsert(ctx, "ns", "c1", []float32{1, 0}, map[string]any{
		vectorindex.MetaDocType: vectorindex.DocTypeConversation,
	}))

	matches, err := index.Query(ctx, "ns", []float32{1, 0}, 10, map[string]any{
		vectorindex.MetaDocType: vectorindex.DocTypeKnowledge,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "k1", matches[0].Id)
}

func TestQuery_OrderingAndTopK(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "ns", "far", []float32{0, 1}, nil))
	require.NoError(t, index.Upsert(ctx, "ns", "mid", []float32{0.7071, 0.7071}, nil))
	require.NoError(t, index.Upsert(ctx, "ns", "near", []float32{1, 0}, nil))

	matches, err := index.Query(ctx, "ns", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Id)
	assert.Equal(t, "mid", matches[1].Id)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestQuery_TieBreakById(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "ns", "b", []float32{1, 0}, nil))
	require.NoError(t, index.Upsert(ctx, "ns", "a", []float32{1, 0}, nil))

	matches, err := index.Query(ctx, "ns", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Id)
	assert.Equal(t, "b", matches[1].Id)
}

func TestUpsert_SameIdAcrossNamespaces(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "alice", "r1", []float32{1, 0}, map[string]any{"content": "alice record"}))
	require.NoError(t, index.Upsert(ctx, "bob", "r1", []float32{1, 0}, map[string]any{"content": "bob record"}))

	matches, err := index.Query(ctx, "alice", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alice record", matches[0].Metadata["content"])

	matches, err = index.Query(ctx, "bob", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "bob record", matches[0].Metadata["content"])
}

func TestUpsert_ReplacesById(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "ns", "r1", []float32{1, 0}, map[string]any{"content": "old"}))
	require.NoError(t, index.Upsert(ctx, "ns", "r1", []float32{1, 0}, map[string]any{"content": "new"}))

	matches, err := index.Query(ctx, "ns", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Metadata["content"])
}
