package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// UpsertEmbeddings inserts or updates embeddings in one transaction.
// On conflict the vector bytes and model are overwritten but the stored
// chunk_text is preserved (the text that produced the first embedding
// stays the canonical one for its hash).
func (c *Catalog) UpsertEmbeddings(ctx context.Context, rows []EmbeddingRow) error {
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
		INSERT INTO embeddings (content_hash, embedding, chunk_text, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			embedding = excluded.embedding,
			model = excluded.model,
			created_at = excluded.created_at`)
	if err != nil {
		return errors.StorageError("failed to prepare embedding upsert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.ContentHash, row.Embedding, row.ChunkText, row.Model, row.CreatedAt); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to upsert embedding %s", row.ContentHash), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit embedding upsert", err)
	}
	return nil
}

// GetEmbedding returns one embedding row, or (nil, nil) when absent.
func (c *Catalog) GetEmbedding(ctx context.Context, contentHash string) (*EmbeddingRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	var row EmbeddingRow
	err := c.db.QueryRowContext(ctx, `
		SELECT content_hash, embedding, chunk_text, model, created_at
		FROM embeddings WHERE content_hash = ?`, contentHash).
		Scan(&row.ContentHash, &row.Embedding, &row.ChunkText, &row.Model, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError("failed to read embedding", err)
	}
	return &row, nil
}

// GetEmbeddings returns the embedding rows for the given hashes.
func (c *Catalog) GetEmbeddings(ctx context.Context, hashes []string) ([]EmbeddingRow, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	var rows []EmbeddingRow
	err := inBatches(hashes, func(batch []string) error {
		query := `SELECT content_hash, embedding, chunk_text, model, created_at
			FROM embeddings WHERE content_hash IN (` + placeholders(len(batch)) + `)`
		result, err := c.db.QueryContext(ctx, query, stringArgs(batch)...)
		if err != nil {
			return errors.StorageError("failed to read embeddings", err)
		}
		defer result.Close()

		for result.Next() {
			var row EmbeddingRow
			if err := result.Scan(&row.ContentHash, &row.Embedding,
				&row.ChunkText, &row.Model, &row.CreatedAt); err != nil {
				return errors.StorageError("failed to scan embedding", err)
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

// GetMissingEmbeddings returns the subset of hashes with no stored
// embedding, preserving input order.
func (c *Catalog) GetMissingEmbeddings(ctx context.Context, hashes []string) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	found := make(map[string]bool, len(hashes))
	err := inBatches(hashes, func(batch []string) error {
		query := `SELECT content_hash FROM embeddings WHERE content_hash IN (` + placeholders(len(batch)) + `)`
		result, err := c.db.QueryContext(ctx, query, stringArgs(batch)...)
		if err != nil {
			return errors.StorageError("failed to query embeddings", err)
		}
		defer result.Close()

		for result.Next() {
			var h string
			if err := result.Scan(&h); err != nil {
				return errors.StorageError("failed to scan hash", err)
			}
			found[h] = true
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	missing := make([]string, 0, len(hashes))
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if !found[h] && !seen[h] {
			missing = append(missing, h)
			seen[h] = true
		}
	}
	return missing, nil
}

// EmbeddingCount returns the number of stored embeddings.
func (c *Catalog) EmbeddingCount(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, errors.StorageError("catalog is closed", nil)
	}

	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, errors.StorageError("failed to count embeddings", err)
	}
	return count, nil
}
