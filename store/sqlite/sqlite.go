/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Keeps imported customer datasets and saved programs between server
  restarts. The same schema runs on PostgreSQL (store/postgres) with
  only placeholder and type differences.

KEY TABLES:
  customer_rows: One row per imported input row, seq keeps import order
  programs:      Program definitions as JSON (versioned)

INDEXES:
  - idx_customer_rows_customer: Per-customer lookups and replacement on import

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite allows a single writer; the
  mutex keeps writers from failing with SQLITE_BUSY.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers do not block
  the writer.

USAGE:
  store, err := sqlite.New("./data/cashback.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  rows, err := store.ListCustomers(ctx)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Imported input rows
	CREATE TABLE IF NOT EXISTS customer_rows (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id TEXT NOT NULL,
		order_history TEXT NOT NULL,
		imported_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customer_rows_customer
		ON customer_rows(customer_id);

	-- Programs
	CREATE TABLE IF NOT EXISTS programs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CUSTOMER STORE
// =============================================================================

// ImportCustomers replaces the stored rows of every id in rows, atomically.
func (s *Store) ImportCustomers(ctx context.Context, rows []cashback.CustomerRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, id := range store.DistinctIDs(rows) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM customer_rows WHERE customer_id = ?", id); err != nil {
			return 0, fmt.Errorf("replace customer %s: %w", id, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO customer_rows (customer_id, order_history, imported_at) VALUES (?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.CustomerID, r.OrderHistory, now); err != nil {
			return 0, fmt.Errorf("insert customer %s: %w", r.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(rows), nil
}

// ListCustomers returns every stored row in import order.
func (s *Store) ListCustomers(ctx context.Context) ([]cashback.CustomerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT customer_id, order_history FROM customer_rows ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []cashback.CustomerRow{}
	for rows.Next() {
		var r cashback.CustomerRow
		if err := rows.Scan(&r.CustomerID, &r.OrderHistory); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetCustomer retrieves every row of one customer.
func (s *Store) GetCustomer(ctx context.Context, id string) (cashback.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT order_history FROM customer_rows WHERE customer_id = ? ORDER BY seq", id)
	if err != nil {
		return cashback.Customer{}, err
	}
	defer rows.Close()

	c := cashback.Customer{ID: id}
	for rows.Next() {
		var history string
		if err := rows.Scan(&history); err != nil {
			return cashback.Customer{}, err
		}
		c.Histories = append(c.Histories, history)
	}
	if err := rows.Err(); err != nil {
		return cashback.Customer{}, err
	}
	if len(c.Histories) == 0 {
		return cashback.Customer{}, generic.ErrCustomerNotFound
	}
	return c, nil
}

func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT customer_id) FROM customer_rows").Scan(&n)
	return n, err
}

func (s *Store) DeleteCustomers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM customer_rows")
	return err
}

// =============================================================================
// PROGRAM STORE
// =============================================================================

// SaveProgram saves a program record.
func (s *Store) SaveProgram(ctx context.Context, p store.ProgramRecord) (store.ProgramRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO programs (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = programs.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.ConfigJSON, now, now); err != nil {
		return store.ProgramRecord{}, err
	}
	return s.getProgram(ctx, p.ID)
}

// GetProgram retrieves a program by ID.
func (s *Store) GetProgram(ctx context.Context, id string) (store.ProgramRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProgram(ctx, id)
}

func (s *Store) getProgram(ctx context.Context, id string) (store.ProgramRecord, error) {
	var p store.ProgramRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM programs WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return store.ProgramRecord{}, generic.ErrProgramNotFound
	}
	if err != nil {
		return store.ProgramRecord{}, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

// ListPrograms returns all programs.
func (s *Store) ListPrograms(ctx context.Context) ([]store.ProgramRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM programs ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programs := []store.ProgramRecord{}
	for rows.Next() {
		var p store.ProgramRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// DeleteProgram removes a program.
func (s *Store) DeleteProgram(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrProgramNotFound
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"customer_rows", "programs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

var _ store.Store = (*Store)(nil)
