package catalog

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// AttachChunks adds chunk ids to a branch's membership set. Duplicates
// are silently ignored (membership is a set).
func (c *Catalog) AttachChunks(ctx context.Context, branch string, chunkIDs []string) error {
	return c.attach(ctx, branch, chunkIDs,
		`INSERT OR IGNORE INTO branch_chunks (branch, chunk_id) VALUES (?, ?)`)
}

// AttachSymbols adds symbol ids to a branch's membership set.
func (c *Catalog) AttachSymbols(ctx context.Context, branch string, symbolIDs []string) error {
	return c.attach(ctx, branch, symbolIDs,
		`INSERT OR IGNORE INTO branch_symbols (branch, symbol_id) VALUES (?, ?)`)
}

func (c *Catalog) attach(ctx context.Context, branch string, ids []string, insert string) error {
	if len(ids) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.StorageError("catalog is closed", nil)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return errors.StorageError("failed to prepare branch attach", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, branch, id); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to attach %s to %s", id, branch), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit branch attach", err)
	}
	return nil
}

// ClearBranchChunks removes a branch's entire chunk membership set.
func (c *Catalog) ClearBranchChunks(ctx context.Context, branch string) error {
	return c.clearBranch(ctx, `DELETE FROM branch_chunks WHERE branch = ?`, branch)
}

// ClearBranchSymbols removes a branch's entire symbol membership set.
func (c *Catalog) ClearBranchSymbols(ctx context.Context, branch string) error {
	return c.clearBranch(ctx, `DELETE FROM branch_symbols WHERE branch = ?`, branch)
}

func (c *Catalog) clearBranch(ctx context.Context, query, branch string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.StorageError("catalog is closed", nil)
	}

	if _, err := c.db.ExecContext(ctx, query, branch); err != nil {
		return errors.StorageError("failed to clear branch", err)
	}
	return nil
}

// DetachChunks removes specific chunk ids from a branch.
func (c *Catalog) DetachChunks(ctx context.Context, branch string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.StorageError("catalog is closed", nil)
	}

	return inBatches(chunkIDs, func(batch []string) error {
		args := append([]any{branch}, stringArgs(batch)...)
		_, err := c.db.ExecContext(ctx,
			`DELETE FROM branch_chunks WHERE branch = ? AND chunk_id IN (`+placeholders(len(batch))+`)`,
			args...)
		if err != nil {
			return errors.StorageError("failed to detach chunks", err)
		}
		return nil
	})
}

// BranchChunkIDs returns the chunk ids attached to a branch.
func (c *Catalog) BranchChunkIDs(ctx context.Context, branch string) ([]string, error) {
	return c.branchIDs(ctx,
		`SELECT chunk_id FROM branch_chunks WHERE branch = ? ORDER BY chunk_id`, branch)
}

// BranchSymbolIDs returns the symbol ids attached to a branch.
func (c *Catalog) BranchSymbolIDs(ctx context.Context, branch string) ([]string, error) {
	return c.branchIDs(ctx,
		`SELECT symbol_id FROM branch_symbols WHERE branch = ? ORDER BY symbol_id`, branch)
}

func (c *Catalog) branchIDs(ctx context.Context, query, branch string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	rows, err := c.db.QueryContext(ctx, query, branch)
	if err != nil {
		return nil, errors.StorageError("failed to list branch members", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.StorageError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BranchDelta computes the chunk membership difference between branch
// and base: added = branch − base, removed = base − branch.
func (c *Catalog) BranchDelta(ctx context.Context, branch, base string) (*BranchDelta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	added, err := c.deltaSide(ctx, branch, base)
	if err != nil {
		return nil, err
	}
	removed, err := c.deltaSide(ctx, base, branch)
	if err != nil {
		return nil, err
	}

	return &BranchDelta{Added: added, Removed: removed}, nil
}

func (c *Catalog) deltaSide(ctx context.Context, have, notIn string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT chunk_id FROM branch_chunks WHERE branch = ?
		AND chunk_id NOT IN (SELECT chunk_id FROM branch_chunks WHERE branch = ?)
		ORDER BY chunk_id`, have, notIn)
	if err != nil {
		return nil, errors.StorageError("failed to compute branch delta", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.StorageError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
