package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// sqlBindParamBatchSize bounds IN (?,...) clauses. SQLite defaults to
// 999 bind parameters (SQLITE_MAX_VARIABLE_NUMBER); 900 stays safely under.
const sqlBindParamBatchSize = 900

// chunkCacheSize is the number of hot chunk rows kept in memory.
const chunkCacheSize = 1024

// Catalog is the single-writer relational store. Every operation holds
// the catalog mutex for its duration; batched writes run in one
// transaction so the hold time is bounded by a single commit.
type Catalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool

	chunkCache *lru.Cache[string, ChunkRow]
}

// Open opens (creating if needed) the catalog at path and migrates the
// schema to the current version. The parent directory is created when
// missing; WAL journaling and NORMAL synchronous mode are enabled.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.IOError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StorageError("failed to open database", err)
	}

	// Single writer: one connection prevents lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set via PRAGMA.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.StorageError("failed to set pragma", err)
		}
	}

	cache, _ := lru.New[string, ChunkRow](chunkCacheSize)

	c := &Catalog{
		db:         db,
		path:       path,
		chunkCache: cache,
	}

	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return c, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the catalog. Idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	// Checkpoint before close to fold the WAL into the main database.
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

// GetMeta reads a metadata value. Returns ("", nil) when the key is absent.
func (c *Catalog) GetMeta(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", errors.StorageError("catalog is closed", nil)
	}

	var value string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.StorageError("failed to read metadata", err)
	}
	return value, nil
}

// SetMeta writes a metadata key-value pair.
func (c *Catalog) SetMeta(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.StorageError("catalog is closed", nil)
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return errors.StorageError("failed to write metadata", err)
	}
	return nil
}

// inBatches invokes fn over slices of at most sqlBindParamBatchSize items.
func inBatches(items []string, fn func(batch []string) error) error {
	for start := 0; start < len(items); start += sqlBindParamBatchSize {
		end := start + sqlBindParamBatchSize
		if end > len(items) {
			end = len(items)
		}
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// placeholders builds "?,?,..." for n bind parameters.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func stringArgs(items []string) []any {
	args := make([]any, len(items))
	for i, s := range items {
		args[i] = s
	}
	return args
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
