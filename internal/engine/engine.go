// Package engine wires the parser, catalog, vector index, and inverted
// index into a single-writer indexing pipeline. There is no cross-store
// transaction: the three stores are eventually consistent and writes
// follow a safe ordering. IndexFiles upserts chunk rows, then feeds the
// inverted index, then attaches branch membership; AttachEmbeddings,
// usually called later, upserts embedding rows before adding vectors.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Aman-CERP/codeindex/internal/calls"
	"github.com/Aman-CERP/codeindex/internal/catalog"
	"github.com/Aman-CERP/codeindex/internal/chunk"
	"github.com/Aman-CERP/codeindex/internal/config"
	"github.com/Aman-CERP/codeindex/internal/errors"
	"github.com/Aman-CERP/codeindex/internal/hash"
	"github.com/Aman-CERP/codeindex/internal/store"
)

// Engine owns one catalog, one vector store, and one inverted index
// under a single index directory, guarded by a cross-process lock.
type Engine struct {
	mu       sync.Mutex
	cfg      config.Config
	catalog  *catalog.Catalog
	vectors  *store.VectorStore
	inverted *store.InvertedIndex
	lock     *fileLock
}

// IndexReport summarizes one IndexFiles call.
type IndexReport struct {
	FilesParsed int
	Chunks      int
	Symbols     int
	CallEdges   int

	// PendingHashes are content hashes with no stored embedding yet.
	// The caller feeds them to the external model and hands the results
	// back through AttachEmbeddings.
	PendingHashes []string
}

// VectorHit is a vector search result hydrated with catalog rows.
// Vector keys are content hashes, so one hit may cover several chunks.
type VectorHit struct {
	Result store.SearchResult
	Chunks []catalog.ChunkRow
}

// KeywordHit is a keyword search result hydrated with its catalog row.
type KeywordHit struct {
	Result store.KeywordResult
	Chunk  *catalog.ChunkRow
}

// Stats is a point-in-time summary of the three stores.
type Stats struct {
	Chunks        int
	Embeddings    int
	Vectors       int
	KeywordChunks int
}

// Open acquires the index lock and opens the three stores.
func Open(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, errors.IOError("failed to create index directory", err)
	}

	lock := newFileLock(cfg.LockPath())
	if err := lock.tryLock(); err != nil {
		return nil, err
	}

	cat, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		_ = lock.unlock()
		return nil, err
	}

	vectors, err := store.NewVectorStore(cfg.VectorIndexPath(), cfg.Embeddings.Dimensions)
	if err != nil {
		_ = cat.Close()
		_ = lock.unlock()
		return nil, err
	}

	inverted := store.NewInvertedIndex(cfg.InvertedIndexPath())
	if err := inverted.Load(); err != nil {
		_ = cat.Close()
		_ = lock.unlock()
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		catalog:  cat,
		vectors:  vectors,
		inverted: inverted,
		lock:     lock,
	}, nil
}

// Catalog exposes the underlying catalog for read-side queries
// (deltas, callers/callees, row hydration).
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Close persists the indexes, closes the catalog, and drops the lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	if err := e.Save(); err != nil {
		firstErr = err
	}
	if err := e.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.lock.unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Save persists the vector and inverted indexes. Catalog writes are
// durable on commit and need no explicit save.
func (e *Engine) Save() error {
	if err := e.vectors.Save(); err != nil {
		return err
	}
	return e.inverted.Save()
}

// ClearBranch drops a branch's chunk and symbol membership sets,
// typically right before a full re-index of that branch.
func (e *Engine) ClearBranch(ctx context.Context, branch string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.catalog.ClearBranchChunks(ctx, branch); err != nil {
		return err
	}
	return e.catalog.ClearBranchSymbols(ctx, branch)
}

// IndexFiles parses a batch of files, upserts chunks/symbols/call edges,
// feeds the inverted index, and attaches everything to branch. It
// returns the content hashes still missing embeddings; vector-side
// searchability of those chunks waits for AttachEmbeddings.
func (e *Engine) IndexFiles(ctx context.Context, branch string, files []chunk.FileInput) (*IndexReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	parsed := chunk.ParseFiles(ctx, files)

	contentByPath := make(map[string]string, len(files))
	for _, f := range files {
		contentByPath[f.Path] = f.Content
	}

	var (
		chunkRows  []catalog.ChunkRow
		chunkIDs   []string
		chunkTexts []string
		hashes     []string
		symbolRows []catalog.SymbolRow
		symbolIDs  []string
		edgeRows   []catalog.CallEdgeRow
	)

	for _, pf := range parsed {
		fileSymbols := make([]catalog.SymbolRow, 0, len(pf.Chunks))

		for _, ch := range pf.Chunks {
			contentHash := hash.Content(ch.Content)
			chunkID := hash.Content(pf.Path + ":" + contentHash)

			chunkRows = append(chunkRows, catalog.ChunkRow{
				ChunkID:     chunkID,
				ContentHash: contentHash,
				FilePath:    pf.Path,
				StartLine:   int(ch.StartLine),
				EndLine:     int(ch.EndLine),
				NodeType:    ch.ChunkType,
				Name:        ch.Name,
				Language:    ch.Language,
			})
			chunkIDs = append(chunkIDs, chunkID)
			chunkTexts = append(chunkTexts, ch.Content)
			hashes = append(hashes, contentHash)

			if ch.Name != "" && ch.ChunkType != "block" {
				fileSymbols = append(fileSymbols, catalog.SymbolRow{
					ID:        hash.Content(fmt.Sprintf("%s:%s:%d", pf.Path, ch.Name, ch.StartLine)),
					FilePath:  pf.Path,
					Name:      ch.Name,
					Kind:      ch.ChunkType,
					StartLine: int(ch.StartLine),
					EndLine:   int(ch.EndLine),
					Language:  ch.Language,
				})
			}
		}

		fileSymbols = dedupeSymbols(fileSymbols)
		for _, sym := range fileSymbols {
			symbolRows = append(symbolRows, sym)
			symbolIDs = append(symbolIDs, sym.ID)
		}

		edgeRows = append(edgeRows, e.extractEdges(ctx, pf.Path, contentByPath[pf.Path], fileSymbols)...)
	}

	if err := e.catalog.UpsertChunks(ctx, chunkRows); err != nil {
		return nil, err
	}
	for i, id := range chunkIDs {
		e.inverted.AddChunk(id, chunkTexts[i])
	}
	if err := e.catalog.AttachChunks(ctx, branch, chunkIDs); err != nil {
		return nil, err
	}
	if err := e.catalog.UpsertSymbols(ctx, symbolRows); err != nil {
		return nil, err
	}
	if err := e.catalog.AttachSymbols(ctx, branch, symbolIDs); err != nil {
		return nil, err
	}
	if err := e.catalog.UpsertCallEdges(ctx, edgeRows); err != nil {
		return nil, err
	}

	pending, err := e.catalog.GetMissingEmbeddings(ctx, hashes)
	if err != nil {
		return nil, err
	}

	return &IndexReport{
		FilesParsed:   len(parsed),
		Chunks:        len(chunkRows),
		Symbols:       len(symbolRows),
		CallEdges:     len(edgeRows),
		PendingHashes: pending,
	}, nil
}

// extractEdges runs the call extractor over one file and binds each call
// site to the innermost enclosing symbol. Calls outside any symbol
// (top-level statements) are dropped.
func (e *Engine) extractEdges(ctx context.Context, path, content string, symbols []catalog.SymbolRow) []catalog.CallEdgeRow {
	if content == "" || len(symbols) == 0 {
		return nil
	}

	language := chunk.LanguageFromPath(path)
	sites, err := calls.Extract(ctx, content, language.String())
	if err != nil {
		slog.Debug("call extraction failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}

	var edges []catalog.CallEdgeRow
	for _, site := range sites {
		sym := enclosingSymbol(symbols, int(site.Line))
		if sym == nil {
			continue
		}
		edges = append(edges, catalog.CallEdgeRow{
			ID:           hash.Content(fmt.Sprintf("%s:%d:%d:%s", path, site.Line, site.Column, site.CalleeName)),
			FromSymbolID: sym.ID,
			TargetName:   site.CalleeName,
			CallType:     string(site.Type),
			Line:         int(site.Line),
			Col:          int(site.Column),
		})
	}
	return edges
}

// enclosingSymbol picks the smallest symbol span containing line.
func enclosingSymbol(symbols []catalog.SymbolRow, line int) *catalog.SymbolRow {
	var best *catalog.SymbolRow
	bestSpan := -1
	for i := range symbols {
		sym := &symbols[i]
		if line < sym.StartLine || line > sym.EndLine {
			continue
		}
		span := sym.EndLine - sym.StartLine
		if bestSpan < 0 || span < bestSpan {
			best = sym
			bestSpan = span
		}
	}
	return best
}

func dedupeSymbols(symbols []catalog.SymbolRow) []catalog.SymbolRow {
	seen := make(map[string]bool, len(symbols))
	out := symbols[:0]
	for _, sym := range symbols {
		if seen[sym.ID] {
			continue
		}
		seen[sym.ID] = true
		out = append(out, sym)
	}
	return out
}

// AttachEmbeddings stores embedding rows in the catalog and then makes
// them searchable in the vector index, keyed by content hash. The caller
// provides the decoded float vectors alongside the opaque blobs.
func (e *Engine) AttachEmbeddings(ctx context.Context, rows []catalog.EmbeddingRow, vectors map[string][]float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.catalog.UpsertEmbeddings(ctx, rows); err != nil {
		return err
	}

	keys := make([]string, 0, len(rows))
	vecs := make([][]float32, 0, len(rows))
	meta := make([]string, 0, len(rows))
	for _, row := range rows {
		vec, ok := vectors[row.ContentHash]
		if !ok {
			continue
		}
		keys = append(keys, row.ContentHash)
		vecs = append(vecs, vec)
		meta = append(meta, fmt.Sprintf(`{"model":%q}`, row.Model))
	}

	return e.vectors.AddBatch(keys, vecs, meta)
}

// ResolveCallEdges binds unresolved edges to same-named symbols on the
// branch. Names with no branch symbol stay unresolved. Returns the
// number of edges resolved.
func (e *Engine) ResolveCallEdges(ctx context.Context, branch string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	edges, err := e.catalog.UnresolvedCallEdges(ctx)
	if err != nil {
		return 0, err
	}
	if len(edges) == 0 {
		return 0, nil
	}

	branchIDs, err := e.catalog.BranchSymbolIDs(ctx, branch)
	if err != nil {
		return 0, err
	}
	onBranch := make(map[string]bool, len(branchIDs))
	for _, id := range branchIDs {
		onBranch[id] = true
	}

	targets := make(map[string]string) // target name -> symbol id
	resolved := 0

	for _, edge := range edges {
		symID, cached := targets[edge.TargetName]
		if !cached {
			candidates, err := e.catalog.FindSymbolsByName(ctx, edge.TargetName)
			if err != nil {
				return resolved, err
			}
			for _, cand := range candidates {
				if onBranch[cand.ID] {
					symID = cand.ID
					break
				}
			}
			targets[edge.TargetName] = symID
		}
		if symID == "" {
			continue
		}
		if err := e.catalog.ResolveCallEdge(ctx, edge.ID, symID); err != nil {
			return resolved, err
		}
		resolved++
	}

	return resolved, nil
}

// RemoveFile cascades a file deletion: its chunks (with branch
// memberships), inverted-index entries, symbols, call edges, and any
// vectors whose content hash no surviving chunk references.
func (e *Engine) RemoveFile(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	chunks, err := e.catalog.ChunksByFile(ctx, path)
	if err != nil {
		return err
	}

	removedHashes := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		e.inverted.RemoveChunk(ch.ChunkID)
		removedHashes = append(removedHashes, ch.ContentHash)
	}

	if _, err := e.catalog.DeleteChunksByFile(ctx, path); err != nil {
		return err
	}
	if _, err := e.catalog.DeleteSymbolsByFile(ctx, path); err != nil {
		return err
	}

	stillUsed, err := e.catalog.ReferencedHashes(ctx, removedHashes)
	if err != nil {
		return err
	}
	used := make(map[string]bool, len(stillUsed))
	for _, h := range stillUsed {
		used[h] = true
	}
	for _, h := range removedHashes {
		if !used[h] {
			e.vectors.Remove(h)
		}
	}

	if _, err := e.catalog.GCOrphanEmbeddings(ctx); err != nil {
		return err
	}
	return nil
}

// SearchVector runs an approximate-nearest-neighbor query and hydrates
// the hits with the chunk rows sharing each content hash.
func (e *Engine) SearchVector(ctx context.Context, query []float32, limit int) ([]VectorHit, error) {
	results, err := e.vectors.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(results))
	for i, r := range results {
		hashes[i] = r.ID
	}
	rows, err := e.catalog.ChunksByHashes(ctx, hashes)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string][]catalog.ChunkRow)
	for _, row := range rows {
		byHash[row.ContentHash] = append(byHash[row.ContentHash], row)
	}

	hits := make([]VectorHit, len(results))
	for i, r := range results {
		hits[i] = VectorHit{Result: r, Chunks: byHash[r.ID]}
	}
	return hits, nil
}

// SearchKeyword runs a BM25 query and hydrates each hit's chunk row.
func (e *Engine) SearchKeyword(ctx context.Context, query string) ([]KeywordHit, error) {
	results := e.inverted.Search(query)
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	rows, err := e.catalog.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*catalog.ChunkRow, len(rows))
	for i := range rows {
		byID[rows[i].ChunkID] = &rows[i]
	}

	hits := make([]KeywordHit, len(results))
	for i, r := range results {
		hits[i] = KeywordHit{Result: r, Chunk: byID[r.ChunkID]}
	}
	return hits, nil
}

// GCReport summarizes a garbage collection pass.
type GCReport struct {
	Chunks     int64
	Embeddings int64
	Symbols    int64
	CallEdges  int64
	Vectors    int
	Keywords   int
}

// GC removes orphans from the catalog (chunks without branches,
// embeddings without chunks, symbols without branches, edges without
// symbols) and reconciles the vector and inverted indexes against the
// surviving rows, then persists both indexes.
func (e *Engine) GC(ctx context.Context) (*GCReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &GCReport{}
	var err error

	if report.Chunks, err = e.catalog.GCOrphanChunks(ctx); err != nil {
		return nil, err
	}
	if report.Embeddings, err = e.catalog.GCOrphanEmbeddings(ctx); err != nil {
		return nil, err
	}
	if report.Symbols, err = e.catalog.GCOrphanSymbols(ctx); err != nil {
		return nil, err
	}
	if report.CallEdges, err = e.catalog.GCOrphanCallEdges(ctx); err != nil {
		return nil, err
	}

	// Vector keys are content hashes: drop the ones whose embedding row
	// was collected above.
	orphanHashes, err := e.catalog.GetMissingEmbeddings(ctx, e.vectors.Keys())
	if err != nil {
		return nil, err
	}
	for _, h := range orphanHashes {
		if e.vectors.Remove(h) {
			report.Vectors++
		}
	}

	// Inverted-index keys are chunk ids: drop the ones with no row left.
	ids := e.inverted.ChunkIDs()
	rows, err := e.catalog.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(rows))
	for _, row := range rows {
		live[row.ChunkID] = true
	}
	for _, id := range ids {
		if !live[id] && e.inverted.RemoveChunk(id) {
			report.Keywords++
		}
	}

	if err := e.Save(); err != nil {
		return nil, err
	}
	return report, nil
}

// Stats returns a point-in-time summary of the stores.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	chunks, err := e.catalog.ChunkCount(ctx)
	if err != nil {
		return nil, err
	}
	embeddings, err := e.catalog.EmbeddingCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Chunks:        chunks,
		Embeddings:    embeddings,
		Vectors:       e.vectors.Count(),
		KeywordChunks: e.inverted.DocumentCount(),
	}, nil
}
