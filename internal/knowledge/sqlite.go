package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteIndex reads symbol metadata from a SQLite database produced by
// the indexing pipeline. All queries are read-only.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLite opens a symbol database.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("index path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, int((5 * time.Second).Milliseconds()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize symbol index schema: %w", err)
	}
	return idx, nil
}

// initSchema creates tables when opening a fresh database so tests and
// first runs work against an empty index.
func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS symbols (
		key TEXT PRIMARY KEY,
		is_public INTEGER NOT NULL DEFAULT 0,
		entry_point_type TEXT NOT NULL DEFAULT '',
		pattern_name TEXT NOT NULL DEFAULT '',
		entry_point_justification TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		line_number INTEGER NOT NULL DEFAULT 0,
		domain TEXT NOT NULL DEFAULT '',
		reference_count INTEGER NOT NULL DEFAULT 0,
		vector_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_domain ON symbols(domain);
	CREATE INDEX IF NOT EXISTS idx_symbols_public ON symbols(is_public);
	CREATE TABLE IF NOT EXISTS domain_capabilities (
		domain TEXT NOT NULL,
		capability TEXT NOT NULL,
		PRIMARY KEY (domain, capability)
	);`
	_, err := s.db.Exec(schema)
	return err
}

const symbolColumns = `key, is_public, entry_point_type, pattern_name,
	entry_point_justification, file_path, line_number, domain,
	reference_count, vector_id`

// SymbolByKey implements Index.
func (s *SQLiteIndex) SymbolByKey(ctx context.Context, key string) (*SymbolRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE key = ?`, key)

	rec, err := scanSymbol(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSymbolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query symbol %q: %w", key, err)
	}
	return rec, nil
}

// SymbolsInDomain implements Index.
func (s *SQLiteIndex) SymbolsInDomain(ctx context.Context, domain string) ([]SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE domain = ? ORDER BY key`, domain)
	if err != nil {
		return nil, fmt.Errorf("query domain %q: %w", domain, err)
	}
	defer rows.Close()
	return collectSymbols(rows)
}

// DomainCapabilities implements Index.
func (s *SQLiteIndex) DomainCapabilities(ctx context.Context, domain string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT capability FROM domain_capabilities WHERE domain = ? ORDER BY capability`, domain)
	if err != nil {
		return nil, fmt.Errorf("query capabilities for %q: %w", domain, err)
	}
	defer rows.Close()

	var caps []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// PublicSymbols implements Index.
func (s *SQLiteIndex) PublicSymbols(ctx context.Context) ([]SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE is_public = 1 ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query public symbols: %w", err)
	}
	defer rows.Close()
	return collectSymbols(rows)
}

// UpsertSymbol writes one symbol record. Used by the indexing pipeline;
// the audit itself never calls this.
func (s *SQLiteIndex) UpsertSymbol(ctx context.Context, rec SymbolRecord) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO symbols (`+symbolColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		is_public = excluded.is_public,
		entry_point_type = excluded.entry_point_type,
		pattern_name = excluded.pattern_name,
		entry_point_justification = excluded.entry_point_justification,
		file_path = excluded.file_path,
		line_number = excluded.line_number,
		domain = excluded.domain,
		reference_count = excluded.reference_count,
		vector_id = excluded.vector_id`,
		rec.Key, rec.IsPublic, rec.EntryPointType, rec.PatternName,
		rec.EntryPointJustification, rec.FilePath, rec.LineNumber,
		rec.Domain, rec.ReferenceCount, rec.VectorID)
	if err != nil {
		return fmt.Errorf("upsert symbol %q: %w", rec.Key, err)
	}
	return nil
}

// AddCapability declares one capability for a domain.
func (s *SQLiteIndex) AddCapability(ctx context.Context, domain, capability string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO domain_capabilities (domain, capability) VALUES (?, ?)
	ON CONFLICT(domain, capability) DO NOTHING`, domain, capability)
	if err != nil {
		return fmt.Errorf("add capability %q to %q: %w", capability, domain, err)
	}
	return nil
}

// Close the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func scanSymbol(scan func(dest ...any) error) (*SymbolRecord, error) {
	var rec SymbolRecord
	var isPublic int
	err := scan(&rec.Key, &isPublic, &rec.EntryPointType, &rec.PatternName,
		&rec.EntryPointJustification, &rec.FilePath, &rec.LineNumber,
		&rec.Domain, &rec.ReferenceCount, &rec.VectorID)
	if err != nil {
		return nil, err
	}
	rec.IsPublic = isPublic != 0
	return &rec, nil
}

func collectSymbols(rows *sql.Rows) ([]SymbolRecord, error) {
	var out []SymbolRecord
	for rows.Next() {
		rec, err := scanSymbol(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
