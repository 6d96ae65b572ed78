package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCOrphanEmbeddings(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertEmbeddings(ctx, []EmbeddingRow{
		{ContentHash: "h1", Embedding: []byte{1}, ChunkText: "a", Model: "m", CreatedAt: 1},
		{ContentHash: "h2", Embedding: []byte{2}, ChunkText: "b", Model: "m", CreatedAt: 1},
	}))
	require.NoError(t, cat.UpsertChunks(ctx, []ChunkRow{testChunk("c1", "h1", "a.go")}))

	removed, err := cat.GCOrphanEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := cat.GetEmbedding(ctx, "h1")
	require.NoError(t, err)
	assert.NotNil(t, got, "referenced embedding must survive")

	got, err = cat.GetEmbedding(ctx, "h2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGCOrphanChunks(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertChunks(ctx, []ChunkRow{
		testChunk("c1", "h1", "a.go"),
		testChunk("c2", "h2", "b.go"),
	}))
	require.NoError(t, cat.AttachChunks(ctx, "main", []string{"c1"}))

	removed, err := cat.GCOrphanChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := cat.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = cat.GetChunk(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGCOrphanSymbolsTwoPhase(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{
		testSymbol("s1", "kept", "a.go"),
		testSymbol("s2", "orphan", "b.go"),
	}))
	require.NoError(t, cat.AttachSymbols(ctx, "main", []string{"s1"}))
	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{
		{ID: "e1", FromSymbolID: "s1", TargetName: "x", CallType: "Call", Line: 1, Col: 0},
		{ID: "e2", FromSymbolID: "s2", TargetName: "y", CallType: "Call", Line: 2, Col: 0},
	}))

	removed, err := cat.GCOrphanSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// The orphan's edge went first (two-phase), the kept symbol's stayed.
	edge, err := cat.GetCallEdge(ctx, "e2")
	require.NoError(t, err)
	assert.Nil(t, edge)

	edge, err = cat.GetCallEdge(ctx, "e1")
	require.NoError(t, err)
	assert.NotNil(t, edge)

	// No surviving edge originates from a missing symbol.
	edges, err := cat.UnresolvedCallEdges(ctx)
	require.NoError(t, err)
	for _, e := range edges {
		sym, err := cat.GetSymbol(ctx, e.FromSymbolID)
		require.NoError(t, err)
		assert.NotNil(t, sym, "edge %s references missing symbol %s", e.ID, e.FromSymbolID)
	}
}

func TestGCOrphanCallEdges(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{testSymbol("s1", "fn", "a.go")}))
	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{
		{ID: "e1", FromSymbolID: "s1", TargetName: "x", CallType: "Call", Line: 1, Col: 0},
		{ID: "e2", FromSymbolID: "ghost", TargetName: "y", CallType: "Call", Line: 2, Col: 0},
	}))

	removed, err := cat.GCOrphanCallEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	edge, err := cat.GetCallEdge(ctx, "e1")
	require.NoError(t, err)
	assert.NotNil(t, edge)

	edge, err = cat.GetCallEdge(ctx, "e2")
	require.NoError(t, err)
	assert.Nil(t, edge)
}
