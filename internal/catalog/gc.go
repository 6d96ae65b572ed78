package catalog

import (
	"context"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// GCOrphanEmbeddings deletes embeddings whose content hash no chunk
// references. Returns the number of rows removed.
func (c *Catalog) GCOrphanEmbeddings(ctx context.Context) (int64, error) {
	return c.gcExec(ctx, `
		DELETE FROM embeddings
		WHERE content_hash NOT IN (SELECT DISTINCT content_hash FROM chunks)`)
}

// GCOrphanChunks deletes chunks not referenced by any branch.
// Returns the number of rows removed.
func (c *Catalog) GCOrphanChunks(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.ExecContext(ctx, `
		DELETE FROM chunks
		WHERE chunk_id NOT IN (SELECT DISTINCT chunk_id FROM branch_chunks)`)
	if err != nil {
		return 0, errors.StorageError("failed to GC orphan chunks", err)
	}

	// Deleted rows may still sit in the read cache.
	c.chunkCache.Purge()

	removed, _ := result.RowsAffected()
	return removed, nil
}

// GCOrphanSymbols deletes symbols not referenced by any branch.
// Call edges originating from the orphans go first (explicit ordering,
// see DeleteSymbolsByFile). Returns the number of symbols removed.
func (c *Catalog) GCOrphanSymbols(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.StorageError("catalog is closed", nil)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM call_edges
		WHERE from_symbol_id NOT IN (SELECT DISTINCT symbol_id FROM branch_symbols)`); err != nil {
		return 0, errors.StorageError("failed to GC edges of orphan symbols", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM symbols
		WHERE id NOT IN (SELECT DISTINCT symbol_id FROM branch_symbols)`)
	if err != nil {
		return 0, errors.StorageError("failed to GC orphan symbols", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.StorageError("failed to commit symbol GC", err)
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

// GCOrphanCallEdges deletes edges whose originating symbol is gone.
// Returns the number of rows removed.
func (c *Catalog) GCOrphanCallEdges(ctx context.Context) (int64, error) {
	return c.gcExec(ctx, `
		DELETE FROM call_edges
		WHERE from_symbol_id NOT IN (SELECT id FROM symbols)`)
}

func (c *Catalog) gcExec(ctx context.Context, query string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return 0, errors.StorageError("garbage collection failed", err)
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}
