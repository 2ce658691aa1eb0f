// Package postgres provides a PostgreSQL-backed store.Store through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS customer_rows (
    seq BIGSERIAL PRIMARY KEY,
    customer_id TEXT NOT NULL,
    order_history TEXT NOT NULL,
    imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_customer_rows_customer ON customer_rows(customer_id);

CREATE TABLE IF NOT EXISTS programs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    config_json JSONB NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type Store struct {
	db *sql.DB
}

// New connects to uri, pings the server, and creates the schema.
func New(ctx context.Context, uri string) (*Store, error) {
	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) ImportCustomers(ctx context.Context, rows []cashback.CustomerRow) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	ids := store.DistinctIDs(rows)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM customer_rows WHERE customer_id = $1", id); err != nil {
			return 0, fmt.Errorf("replace customer %s: %w", id, err)
		}
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO customer_rows (customer_id, order_history) VALUES ($1, $2)",
			r.CustomerID, r.OrderHistory,
		); err != nil {
			return 0, fmt.Errorf("insert customer %s: %w", r.CustomerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(rows), nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]cashback.CustomerRow, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT customer_id, order_history FROM customer_rows ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
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

func (s *Store) GetCustomer(ctx context.Context, id string) (cashback.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT order_history FROM customer_rows WHERE customer_id = $1 ORDER BY seq", id)
	if err != nil {
		return cashback.Customer{}, fmt.Errorf("get customer: %w", err)
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
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT customer_id) FROM customer_rows").Scan(&n)
	return n, err
}

func (s *Store) DeleteCustomers(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM customer_rows")
	return err
}

// =============================================================================
// PROGRAMS
// =============================================================================

const programColumns = "id, name, config_json::text, version, created_at, updated_at"

func (s *Store) SaveProgram(ctx context.Context, p store.ProgramRecord) (store.ProgramRecord, error) {
	query := `
		INSERT INTO programs (id, name, config_json)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			config_json = EXCLUDED.config_json,
			version = programs.version + 1,
			updated_at = NOW()
		RETURNING ` + programColumns

	saved, err := scanProgram(s.db.QueryRowContext(ctx, query, p.ID, p.Name, p.ConfigJSON))
	if err != nil {
		return store.ProgramRecord{}, fmt.Errorf("save program: %w", err)
	}
	return saved, nil
}

func (s *Store) GetProgram(ctx context.Context, id string) (store.ProgramRecord, error) {
	p, err := scanProgram(s.db.QueryRowContext(ctx, "SELECT "+programColumns+" FROM programs WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ProgramRecord{}, generic.ErrProgramNotFound
	}
	return p, err
}

func (s *Store) ListPrograms(ctx context.Context) ([]store.ProgramRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+programColumns+" FROM programs ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	programs := []store.ProgramRecord{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func (s *Store) DeleteProgram(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (store.ProgramRecord, error) {
	var p store.ProgramRecord
	err := row.Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

var _ store.Store = (*Store)(nil)
