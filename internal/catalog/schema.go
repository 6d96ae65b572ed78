package catalog

import (
	"database/sql"
	"strconv"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 2

const schemaV1 = `
-- Metadata table (must be created first for schema_version)
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

-- Embeddings stored by content hash (deduplicated across branches)
CREATE TABLE IF NOT EXISTS embeddings (
	content_hash TEXT PRIMARY KEY,
	embedding BLOB NOT NULL,
	chunk_text TEXT NOT NULL,
	model TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

-- Chunks table: stores chunk metadata
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	file_path TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	node_type TEXT,
	name TEXT,
	language TEXT NOT NULL
);

-- Branch catalog: which chunks exist on which branch
CREATE TABLE IF NOT EXISTS branch_chunks (
	branch TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	PRIMARY KEY (branch, chunk_id)
);

-- Indexes for fast lookups
CREATE INDEX IF NOT EXISTS idx_chunks_content_hash ON chunks(content_hash);
CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_branch_chunks_branch ON branch_chunks(branch);
CREATE INDEX IF NOT EXISTS idx_branch_chunks_chunk_id ON branch_chunks(chunk_id);
`

const schemaV2 = `
-- Symbols table: function/class/method definitions extracted from source files
CREATE TABLE IF NOT EXISTS symbols (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_col INTEGER NOT NULL,
	language TEXT NOT NULL
);

-- Call edges: relationships between symbols (caller -> callee)
CREATE TABLE IF NOT EXISTS call_edges (
	id TEXT PRIMARY KEY,
	from_symbol_id TEXT NOT NULL,
	target_name TEXT NOT NULL,
	to_symbol_id TEXT,
	call_type TEXT NOT NULL,
	line INTEGER NOT NULL,
	col INTEGER NOT NULL,
	is_resolved INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (from_symbol_id) REFERENCES symbols(id)
);

-- Branch-symbol catalog: which symbols exist on which branch
CREATE TABLE IF NOT EXISTS branch_symbols (
	branch TEXT NOT NULL,
	symbol_id TEXT NOT NULL,
	PRIMARY KEY (branch, symbol_id)
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_call_edges_from ON call_edges(from_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_to ON call_edges(to_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_target_name ON call_edges(target_name);
CREATE INDEX IF NOT EXISTS idx_branch_symbols_branch ON branch_symbols(branch);
CREATE INDEX IF NOT EXISTS idx_branch_symbols_symbol_id ON branch_symbols(symbol_id);
`

// migrate applies schema migrations in ascending order. Migrations are
// idempotent (CREATE TABLE IF NOT EXISTS) so a partially applied run is
// safe to repeat.
func (c *Catalog) migrate() error {
	version, err := c.schemaVersion()
	if err != nil {
		return err
	}

	if version >= CurrentSchemaVersion {
		return nil
	}

	if version < 1 {
		if _, err := c.db.Exec(schemaV1); err != nil {
			return errors.StorageError("failed to apply schema v1", err)
		}
		if err := c.setSchemaVersion(1); err != nil {
			return err
		}
	}

	if version < 2 {
		if _, err := c.db.Exec(schemaV2); err != nil {
			return errors.StorageError("failed to apply schema v2", err)
		}
		if err := c.setSchemaVersion(2); err != nil {
			return err
		}
	}

	return nil
}

// schemaVersion reads the stored version, treating a missing metadata
// table or row as version 0 (fresh database).
func (c *Catalog) schemaVersion() (int, error) {
	var value string
	err := c.db.QueryRow(
		`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&value)
	if err != nil {
		// Fresh database: no version row yet, or no metadata table at all.
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, nil
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, nil
	}
	return version, nil
}

func (c *Catalog) setSchemaVersion(version int) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(version))
	if err != nil {
		return errors.StorageError("failed to set schema version", err)
	}
	return nil
}
