/*
Package store defines the persistence contract for customer datasets and
saved programs.

PURPOSE:
  The engine never touches storage. Handlers load the input table and a
  program through this interface, run the simulation in memory, and
  return the tables. Simulation results are never written back.

IMPLEMENTATIONS:
  store/sqlite:   Single-file or ":memory:" database (default)
  store/postgres: Shared PostgreSQL database through pgx
  store/memory:   Maps behind a RWMutex, for tests and demos

CUSTOMER ROWS:
  Rows are kept as imported, one per input row, in import order. Several
  rows may share a customer id; the engine merges them. Re-importing an id
  replaces every stored row of that id.

SEE ALSO:
  - store/storetest: Conformance suite every implementation runs
  - cashback/engine.go: CustomerSource
*/
package store

import (
	"context"
	"time"

	"github.com/warp/cashback-engine/cashback"
)

// ProgramRecord is a stored program with its JSON definition.
type ProgramRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is implemented by every backend.
type Store interface {
	cashback.CustomerSource

	// ImportCustomers stores rows and returns how many were written.
	ImportCustomers(ctx context.Context, rows []cashback.CustomerRow) (int, error)
	// GetCustomer returns every row of one customer, merged.
	// Returns generic.ErrCustomerNotFound if the id is unknown.
	GetCustomer(ctx context.Context, id string) (cashback.Customer, error)
	// CountCustomers counts distinct customer ids.
	CountCustomers(ctx context.Context) (int, error)
	DeleteCustomers(ctx context.Context) error

	// SaveProgram inserts or updates a program. Updates bump Version.
	SaveProgram(ctx context.Context, p ProgramRecord) (ProgramRecord, error)
	// GetProgram returns generic.ErrProgramNotFound if the id is unknown.
	GetProgram(ctx context.Context, id string) (ProgramRecord, error)
	ListPrograms(ctx context.Context) ([]ProgramRecord, error)
	DeleteProgram(ctx context.Context, id string) error

	Close() error
}

// DistinctIDs returns the ids of rows in first-seen order.
func DistinctIDs(rows []cashback.CustomerRow) []string {
	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if !seen[r.CustomerID] {
			seen[r.CustomerID] = true
			ids = append(ids, r.CustomerID)
		}
	}
	return ids
}
