// Package sqlstore implements internal/store.Store on top of an embedded
// SQLite database, the concrete mail store a deployment wires behind
// internal/dispatch (spec.md §6 "Store interface consumed"). Folders and
// messages share one EAV-style objects/properties schema since the
// protocol's property set is open-ended, unlike a fixed-column mail
// store; recipients and attachments get their own row-oriented tables.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"

	"github.com/tonimelisma/fxicsd/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const walJournalSizeLimit = 67108864 // 64 MiB

// Store is a SQLite-backed internal/store.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmts statements
}

type statements struct {
	insertObject   *sql.Stmt
	lookupChild    *sql.Stmt
	availableProps *sql.Stmt
	getProp        *sql.Stmt
	upsertProp     *sql.Stmt
	listChildren   *sql.Stmt
	listMessages   *sql.Stmt
	markDeleted    *sql.Stmt
	hardDelete     *sql.Stmt
	replicaGUID    *sql.Stmt
	replicaID      *sql.Stmt
	namedProp      *sql.Stmt
	reserveCounter *sql.Stmt
}

// Open creates or opens the SQLite database at path (":memory:" for
// tests), applies pending migrations, and prepares the statements the
// store reuses across calls.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: prepare statements: %w", err)
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlstore: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("sqlstore: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	defs := []struct {
		dest **sql.Stmt
		sql  string
	}{
		{&s.stmts.insertObject, `INSERT INTO objects (fid, is_folder, parent_handle, associated) VALUES (?, ?, ?, ?)`},
		{&s.stmts.lookupChild, `SELECT handle FROM objects WHERE parent_handle = ? AND fid = ? AND is_folder = ? AND deleted = 0`},
		{&s.stmts.availableProps, `SELECT tag FROM properties WHERE handle = ?`},
		{&s.stmts.getProp, `SELECT value_type, value_blob FROM properties WHERE handle = ? AND tag = ?`},
		{&s.stmts.upsertProp, `INSERT INTO properties (handle, tag, value_type, value_blob) VALUES (?, ?, ?, ?)
			ON CONFLICT(handle, tag) DO UPDATE SET value_type = excluded.value_type, value_blob = excluded.value_blob`},
		{&s.stmts.listChildren, `SELECT handle FROM objects WHERE parent_handle = ? AND is_folder = 1 AND deleted = 0 ORDER BY handle`},
		{&s.stmts.listMessages, `SELECT handle FROM objects WHERE parent_handle = ? AND is_folder = 0 AND associated = ? AND deleted = 0 ORDER BY handle`},
		{&s.stmts.markDeleted, `UPDATE objects SET deleted = 1 WHERE parent_handle = ? AND fid = ? AND is_folder = 0`},
		{&s.stmts.hardDelete, `DELETE FROM objects WHERE parent_handle = ? AND fid = ? AND is_folder = 0`},
		{&s.stmts.replicaGUID, `SELECT guid FROM replicas WHERE replica_id = ?`},
		{&s.stmts.replicaID, `SELECT replica_id FROM replicas WHERE guid = ?`},
		{&s.stmts.namedProp, `SELECT guid, kind, lid, name FROM named_props WHERE tag = ?`},
		{&s.stmts.reserveCounter, `UPDATE globcnt SET next_value = next_value + ? WHERE id = 1 RETURNING next_value - ?`},
	}

	for _, d := range defs {
		stmt, err := s.db.PrepareContext(ctx, d.sql)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", d.sql, err)
		}

		*d.dest = stmt
	}

	return nil
}
