package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codeindex/internal/catalog"
	"github.com/Aman-CERP/codeindex/internal/chunk"
	"github.com/Aman-CERP/codeindex/internal/config"
	indexerrors "github.com/Aman-CERP/codeindex/internal/errors"
)

const demoFile = `package demo

// helper returns a constant greeting string for the demo.
func helper() string {
	return "a greeting with plenty of padding text"
}

// caller invokes helper and decorates its result.
func caller() string {
	return helper() + " from caller with more padding text"
}
`

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Embeddings.Dimensions = 3

	eng, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestIndexFilesPipeline(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	report, err := eng.IndexFiles(ctx, "main", []chunk.FileInput{
		{Path: "demo/demo.go", Content: demoFile},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesParsed)
	assert.GreaterOrEqual(t, report.Chunks, 2)
	assert.GreaterOrEqual(t, report.Symbols, 2)
	assert.GreaterOrEqual(t, report.CallEdges, 1)
	assert.NotEmpty(t, report.PendingHashes, "no embeddings stored yet")

	// Chunks are attached to the branch and keyword-searchable.
	ids, err := eng.Catalog().BranchChunkIDs(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, ids, report.Chunks)

	hits, err := eng.SearchKeyword(ctx, "greeting padding")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.NotNil(t, hits[0].Chunk)
	assert.Equal(t, "demo/demo.go", hits[0].Chunk.FilePath)
}

func TestAttachEmbeddingsMakesVectorsSearchable(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	report, err := eng.IndexFiles(ctx, "main", []chunk.FileInput{
		{Path: "demo/demo.go", Content: demoFile},
	})
	require.NoError(t, err)
	require.NotEmpty(t, report.PendingHashes)

	// Before embeddings arrive, vector search returns nothing: the
	// chunks are simply not searchable yet.
	hits, err := eng.SearchVector(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	now := time.Now().Unix()
	rows := make([]catalog.EmbeddingRow, len(report.PendingHashes))
	vectors := make(map[string][]float32, len(report.PendingHashes))
	basis := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i, h := range report.PendingHashes {
		rows[i] = catalog.EmbeddingRow{
			ContentHash: h,
			Embedding:   []byte{byte(i)},
			ChunkText:   "text",
			Model:       "test-model",
			CreatedAt:   now,
		}
		vectors[h] = basis[i%len(basis)]
	}
	require.NoError(t, eng.AttachEmbeddings(ctx, rows, vectors))

	// The same hashes are no longer pending.
	missing, err := eng.Catalog().GetMissingEmbeddings(ctx, report.PendingHashes)
	require.NoError(t, err)
	assert.Empty(t, missing)

	hits, err = eng.SearchVector(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.NotEmpty(t, hits[0].Chunks, "hits hydrate the catalog rows sharing the hash")
	assert.InDelta(t, 1.0, hits[0].Result.Score, 0.01)
}

func TestResolveCallEdges(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	_, err := eng.IndexFiles(ctx, "main", []chunk.FileInput{
		{Path: "demo/demo.go", Content: demoFile},
	})
	require.NoError(t, err)

	resolved, err := eng.ResolveCallEdges(ctx, "main")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resolved, 1, "helper() call binds to the helper symbol")

	infos, err := eng.Catalog().Callers(ctx, "helper", "main")
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	assert.Equal(t, "caller", infos[0].Symbol.Name)
	assert.True(t, infos[0].Edge.IsResolved)
	assert.NotEmpty(t, infos[0].Edge.ToSymbolID)
}

func TestRemoveFileCascades(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	report, err := eng.IndexFiles(ctx, "main", []chunk.FileInput{
		{Path: "demo/demo.go", Content: demoFile},
	})
	require.NoError(t, err)

	rows := make([]catalog.EmbeddingRow, len(report.PendingHashes))
	vectors := make(map[string][]float32, len(report.PendingHashes))
	for i, h := range report.PendingHashes {
		rows[i] = catalog.EmbeddingRow{ContentHash: h, Embedding: []byte{1}, ChunkText: "t", Model: "m", CreatedAt: 1}
		vectors[h] = []float32{1, 0, 0}
	}
	require.NoError(t, eng.AttachEmbeddings(ctx, rows, vectors))

	require.NoError(t, eng.RemoveFile(ctx, "demo/demo.go"))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.Embeddings)
	assert.Equal(t, 0, stats.Vectors)
	assert.Equal(t, 0, stats.KeywordChunks)

	hits, err := eng.SearchKeyword(ctx, "greeting")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestGCAfterBranchClear(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	report, err := eng.IndexFiles(ctx, "main", []chunk.FileInput{
		{Path: "demo/demo.go", Content: demoFile},
	})
	require.NoError(t, err)

	rows := make([]catalog.EmbeddingRow, len(report.PendingHashes))
	vectors := make(map[string][]float32, len(report.PendingHashes))
	for i, h := range report.PendingHashes {
		rows[i] = catalog.EmbeddingRow{ContentHash: h, Embedding: []byte{1}, ChunkText: "t", Model: "m", CreatedAt: 1}
		vectors[h] = []float32{0, 1, 0}
	}
	require.NoError(t, eng.AttachEmbeddings(ctx, rows, vectors))

	require.NoError(t, eng.ClearBranch(ctx, "main"))

	gcReport, err := eng.GC(ctx)
	require.NoError(t, err)
	assert.Greater(t, gcReport.Chunks, int64(0))
	assert.Greater(t, gcReport.Symbols, int64(0))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.Embeddings)
	assert.Equal(t, 0, stats.Vectors)
	assert.Equal(t, 0, stats.KeywordChunks)
}

func TestSecondWriterIsRejected(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Embeddings.Dimensions = 3

	eng, err := Open(cfg)
	require.NoError(t, err)
	defer eng.Close()

	_, err = Open(cfg)
	require.Error(t, err)
	assert.Equal(t, indexerrors.ErrCodeLockFailed, indexerrors.GetCode(err))
}

func TestReindexSameContentIsStable(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	files := []chunk.FileInput{{Path: "demo/demo.go", Content: demoFile}}

	first, err := eng.IndexFiles(ctx, "main", files)
	require.NoError(t, err)

	second, err := eng.IndexFiles(ctx, "main", files)
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Chunks)

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Chunks, stats.Chunks, "content-addressed ids keep re-indexing idempotent")
}
