package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// UpsertChunks inserts or replaces chunk rows in one transaction.
// Empty input is a no-op.
func (c *Catalog) UpsertChunks(ctx context.Context, rows []ChunkRow) error {
	if len(rows) == 0 {
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, content_hash, file_path, start_line, end_line, node_type, name, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			node_type = excluded.node_type,
			name = excluded.name,
			language = excluded.language`)
	if err != nil {
		return errors.StorageError("failed to prepare chunk upsert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.ChunkID, row.ContentHash, row.FilePath,
			row.StartLine, row.EndLine,
			nullable(row.NodeType), nullable(row.Name), row.Language); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to upsert chunk %s", row.ChunkID), err)
		}
		c.chunkCache.Remove(row.ChunkID)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit chunk upsert", err)
	}
	return nil
}

const chunkColumns = `chunk_id, content_hash, file_path, start_line, end_line,
	COALESCE(node_type, ''), COALESCE(name, ''), language`

func scanChunk(scan func(...any) error) (ChunkRow, error) {
	var row ChunkRow
	err := scan(&row.ChunkID, &row.ContentHash, &row.FilePath,
		&row.StartLine, &row.EndLine, &row.NodeType, &row.Name, &row.Language)
	return row, err
}

// GetChunk returns one chunk row, or (nil, nil) when absent.
func (c *Catalog) GetChunk(ctx context.Context, chunkID string) (*ChunkRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	if row, ok := c.chunkCache.Get(chunkID); ok {
		return &row, nil
	}

	row, err := scanChunk(c.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE chunk_id = ?`, chunkID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError("failed to read chunk", err)
	}

	c.chunkCache.Add(chunkID, row)
	return &row, nil
}

// GetChunks returns the chunk rows for the given ids, in database order.
// Missing ids are silently absent from the result.
func (c *Catalog) GetChunks(ctx context.Context, chunkIDs []string) ([]ChunkRow, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	var rows []ChunkRow
	err := inBatches(chunkIDs, func(batch []string) error {
		query := `SELECT ` + chunkColumns + ` FROM chunks WHERE chunk_id IN (` + placeholders(len(batch)) + `)`
		result, err := c.db.QueryContext(ctx, query, stringArgs(batch)...)
		if err != nil {
			return errors.StorageError("failed to read chunks", err)
		}
		defer result.Close()

		for result.Next() {
			row, err := scanChunk(result.Scan)
			if err != nil {
				return errors.StorageError("failed to scan chunk", err)
			}
			rows = append(rows, row)
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ChunksByFile returns all chunk rows for a file path.
func (c *Catalog) ChunksByFile(ctx context.Context, filePath string) ([]ChunkRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE file_path = ? ORDER BY start_line`, filePath)
	if err != nil {
		return nil, errors.StorageError("failed to read chunks by file", err)
	}
	defer result.Close()

	var rows []ChunkRow
	for result.Next() {
		row, err := scanChunk(result.Scan)
		if err != nil {
			return nil, errors.StorageError("failed to scan chunk", err)
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

// DeleteChunks removes chunk rows and their branch memberships.
func (c *Catalog) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
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

	err = inBatches(chunkIDs, func(batch []string) error {
		ph := placeholders(len(batch))
		args := stringArgs(batch)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM branch_chunks WHERE chunk_id IN (`+ph+`)`, args...); err != nil {
			return errors.StorageError("failed to delete branch memberships", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE chunk_id IN (`+ph+`)`, args...); err != nil {
			return errors.StorageError("failed to delete chunks", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit chunk delete", err)
	}

	for _, id := range chunkIDs {
		c.chunkCache.Remove(id)
	}
	return nil
}

// DeleteChunksByFile removes every chunk of a file (and its branch
// memberships), returning the removed chunk ids.
func (c *Catalog) DeleteChunksByFile(ctx context.Context, filePath string) ([]string, error) {
	chunks, err := c.ChunksByFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ChunkID
	}

	if err := c.DeleteChunks(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ChunksByHashes returns the chunk rows whose content hash is in hashes.
func (c *Catalog) ChunksByHashes(ctx context.Context, hashes []string) ([]ChunkRow, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	var rows []ChunkRow
	err := inBatches(hashes, func(batch []string) error {
		query := `SELECT ` + chunkColumns + ` FROM chunks WHERE content_hash IN (` + placeholders(len(batch)) + `)`
		result, err := c.db.QueryContext(ctx, query, stringArgs(batch)...)
		if err != nil {
			return errors.StorageError("failed to read chunks by hash", err)
		}
		defer result.Close()

		for result.Next() {
			row, err := scanChunk(result.Scan)
			if err != nil {
				return errors.StorageError("failed to scan chunk", err)
			}
			rows = append(rows, row)
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReferencedHashes returns the subset of hashes still referenced by at
// least one chunk.
func (c *Catalog) ReferencedHashes(ctx context.Context, hashes []string) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	referenced := make(map[string]bool)
	err := inBatches(hashes, func(batch []string) error {
		query := `SELECT DISTINCT content_hash FROM chunks WHERE content_hash IN (` + placeholders(len(batch)) + `)`
		result, err := c.db.QueryContext(ctx, query, stringArgs(batch)...)
		if err != nil {
			return errors.StorageError("failed to query referenced hashes", err)
		}
		defer result.Close()

		for result.Next() {
			var h string
			if err := result.Scan(&h); err != nil {
				return errors.StorageError("failed to scan hash", err)
			}
			referenced[h] = true
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(referenced))
	for _, h := range hashes {
		if referenced[h] {
			out = append(out, h)
			referenced[h] = false
		}
	}
	return out, nil
}

// ChunkCount returns the number of chunk rows.
func (c *Catalog) ChunkCount(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, errors.StorageError("catalog is closed", nil)
	}

	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, errors.StorageError("failed to count chunks", err)
	}
	return count, nil
}
