package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// UpsertSymbols inserts or replaces symbol rows in one transaction.
func (c *Catalog) UpsertSymbols(ctx context.Context, rows []SymbolRow) error {
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
		INSERT OR REPLACE INTO symbols (id, file_path, name, kind, start_line, start_col, end_line, end_col, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.StorageError("failed to prepare symbol upsert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.FilePath, row.Name, row.Kind,
			row.StartLine, row.StartCol, row.EndLine, row.EndCol, row.Language); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to upsert symbol %s", row.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit symbol upsert", err)
	}
	return nil
}

const symbolColumns = `id, file_path, name, kind, start_line, start_col, end_line, end_col, language`

func scanSymbol(scan func(...any) error) (SymbolRow, error) {
	var row SymbolRow
	err := scan(&row.ID, &row.FilePath, &row.Name, &row.Kind,
		&row.StartLine, &row.StartCol, &row.EndLine, &row.EndCol, &row.Language)
	return row, err
}

// GetSymbol returns one symbol row, or (nil, nil) when absent.
func (c *Catalog) GetSymbol(ctx context.Context, id string) (*SymbolRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	row, err := scanSymbol(c.db.QueryRowContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError("failed to read symbol", err)
	}
	return &row, nil
}

// FindSymbolsByName returns all symbols with the given name.
func (c *Catalog) FindSymbolsByName(ctx context.Context, name string) ([]SymbolRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.QueryContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE name = ? ORDER BY file_path, start_line`, name)
	if err != nil {
		return nil, errors.StorageError("failed to find symbols", err)
	}
	defer result.Close()

	var rows []SymbolRow
	for result.Next() {
		row, err := scanSymbol(result.Scan)
		if err != nil {
			return nil, errors.StorageError("failed to scan symbol", err)
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

// SymbolsByFile returns all symbols defined in a file.
func (c *Catalog) SymbolsByFile(ctx context.Context, filePath string) ([]SymbolRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.QueryContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE file_path = ? ORDER BY start_line`, filePath)
	if err != nil {
		return nil, errors.StorageError("failed to read symbols by file", err)
	}
	defer result.Close()

	var rows []SymbolRow
	for result.Next() {
		row, err := scanSymbol(result.Scan)
		if err != nil {
			return nil, errors.StorageError("failed to scan symbol", err)
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

// DeleteSymbolsByFile removes a file's symbols and, first, every call
// edge originating from them (explicit ordering instead of FK cascade:
// edges may reference symbols only by name). Returns the removed symbol ids.
func (c *Catalog) DeleteSymbolsByFile(ctx context.Context, filePath string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	idRows, err := tx.QueryContext(ctx,
		`SELECT id FROM symbols WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, errors.StorageError("failed to list file symbols", err)
	}
	var ids []string
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			idRows.Close()
			return nil, errors.StorageError("failed to scan symbol id", err)
		}
		ids = append(ids, id)
	}
	if err := idRows.Err(); err != nil {
		idRows.Close()
		return nil, errors.StorageError("failed to list file symbols", err)
	}
	idRows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	err = inBatches(ids, func(batch []string) error {
		ph := placeholders(len(batch))
		args := stringArgs(batch)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM call_edges WHERE from_symbol_id IN (`+ph+`)`, args...); err != nil {
			return errors.StorageError("failed to delete call edges", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM branch_symbols WHERE symbol_id IN (`+ph+`)`, args...); err != nil {
			return errors.StorageError("failed to delete branch symbols", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM symbols WHERE id IN (`+ph+`)`, args...); err != nil {
			return errors.StorageError("failed to delete symbols", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.StorageError("failed to commit symbol delete", err)
	}
	return ids, nil
}

// UpsertCallEdges inserts or replaces call edge rows in one transaction.
func (c *Catalog) UpsertCallEdges(ctx context.Context, rows []CallEdgeRow) error {
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
		INSERT OR REPLACE INTO call_edges (id, from_symbol_id, target_name, to_symbol_id, call_type, line, col, is_resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.StorageError("failed to prepare call edge upsert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		resolved := 0
		if row.IsResolved {
			resolved = 1
		}
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.FromSymbolID, row.TargetName, nullable(row.ToSymbolID),
			row.CallType, row.Line, row.Col, resolved); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to upsert call edge %s", row.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit call edge upsert", err)
	}
	return nil
}

const callEdgeColumns = `id, from_symbol_id, target_name, COALESCE(to_symbol_id, ''), call_type, line, col, is_resolved`

func scanCallEdge(scan func(...any) error) (CallEdgeRow, error) {
	var row CallEdgeRow
	var resolved int
	err := scan(&row.ID, &row.FromSymbolID, &row.TargetName, &row.ToSymbolID,
		&row.CallType, &row.Line, &row.Col, &resolved)
	row.IsResolved = resolved != 0
	return row, err
}

// GetCallEdge returns one call edge row, or (nil, nil) when absent.
func (c *Catalog) GetCallEdge(ctx context.Context, id string) (*CallEdgeRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	row, err := scanCallEdge(c.db.QueryRowContext(ctx,
		`SELECT `+callEdgeColumns+` FROM call_edges WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError("failed to read call edge", err)
	}
	return &row, nil
}

// UnresolvedCallEdges returns every edge whose target has not been bound
// to a symbol yet.
func (c *Catalog) UnresolvedCallEdges(ctx context.Context) ([]CallEdgeRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.QueryContext(ctx,
		`SELECT `+callEdgeColumns+` FROM call_edges WHERE is_resolved = 0 ORDER BY id`)
	if err != nil {
		return nil, errors.StorageError("failed to read unresolved edges", err)
	}
	defer result.Close()

	var rows []CallEdgeRow
	for result.Next() {
		row, err := scanCallEdge(result.Scan)
		if err != nil {
			return nil, errors.StorageError("failed to scan call edge", err)
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

// ResolveCallEdge binds an edge to a target symbol and marks it resolved.
func (c *Catalog) ResolveCallEdge(ctx context.Context, id, toSymbolID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.StorageError("catalog is closed", nil)
	}

	_, err := c.db.ExecContext(ctx,
		`UPDATE call_edges SET to_symbol_id = ?, is_resolved = 1 WHERE id = ?`, toSymbolID, id)
	if err != nil {
		return errors.StorageError("failed to resolve call edge", err)
	}
	return nil
}

// Callers returns the call edges on a branch targeting the given name,
// together with the symbols they originate from.
func (c *Catalog) Callers(ctx context.Context, name, branch string) ([]CallerInfo, error) {
	return c.callJoin(ctx, `
		SELECT e.id, e.from_symbol_id, e.target_name, COALESCE(e.to_symbol_id, ''),
			e.call_type, e.line, e.col, e.is_resolved,
			s.id, s.file_path, s.name, s.kind,
			s.start_line, s.start_col, s.end_line, s.end_col, s.language
		FROM call_edges e
		JOIN symbols s ON s.id = e.from_symbol_id
		JOIN branch_symbols bs ON bs.symbol_id = s.id AND bs.branch = ?
		WHERE e.target_name = ?
		ORDER BY s.file_path, e.line`, branch, name)
}

// Callees returns the call edges on a branch originating from the given
// symbol, together with that symbol's row.
func (c *Catalog) Callees(ctx context.Context, fromSymbolID, branch string) ([]CallerInfo, error) {
	return c.callJoin(ctx, `
		SELECT e.id, e.from_symbol_id, e.target_name, COALESCE(e.to_symbol_id, ''),
			e.call_type, e.line, e.col, e.is_resolved,
			s.id, s.file_path, s.name, s.kind,
			s.start_line, s.start_col, s.end_line, s.end_col, s.language
		FROM call_edges e
		JOIN symbols s ON s.id = e.from_symbol_id
		JOIN branch_symbols bs ON bs.symbol_id = s.id AND bs.branch = ?
		WHERE e.from_symbol_id = ?
		ORDER BY e.line`, branch, fromSymbolID)
}

func (c *Catalog) callJoin(ctx context.Context, query string, args ...any) ([]CallerInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.StorageError("catalog is closed", nil)
	}

	result, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError("failed to query call graph", err)
	}
	defer result.Close()

	var infos []CallerInfo
	for result.Next() {
		var info CallerInfo
		var resolved int
		if err := result.Scan(
			&info.Edge.ID, &info.Edge.FromSymbolID, &info.Edge.TargetName, &info.Edge.ToSymbolID,
			&info.Edge.CallType, &info.Edge.Line, &info.Edge.Col, &resolved,
			&info.Symbol.ID, &info.Symbol.FilePath, &info.Symbol.Name, &info.Symbol.Kind,
			&info.Symbol.StartLine, &info.Symbol.StartCol,
			&info.Symbol.EndLine, &info.Symbol.EndCol, &info.Symbol.Language); err != nil {
			return nil, errors.StorageError("failed to scan call graph row", err)
		}
		info.Edge.IsResolved = resolved != 0
		infos = append(infos, info)
	}
	return infos, result.Err()
}
