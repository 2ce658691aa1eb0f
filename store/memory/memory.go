// Package memory provides an in-memory store (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	rows     []cashback.CustomerRow
	programs map[string]store.ProgramRecord
	now      func() time.Time
}

func New() *Memory {
	return &Memory{
		programs: make(map[string]store.ProgramRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) ImportCustomers(_ context.Context, rows []cashback.CustomerRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := make(map[string]bool, len(rows))
	for _, id := range store.DistinctIDs(rows) {
		replaced[id] = true
	}
	kept := m.rows[:0]
	for _, r := range m.rows {
		if !replaced[r.CustomerID] {
			kept = append(kept, r)
		}
	}
	m.rows = append(kept, rows...)
	return len(rows), nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]cashback.CustomerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]cashback.CustomerRow, len(m.rows))
	copy(result, m.rows)
	return result, nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (cashback.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := cashback.Customer{ID: id}
	for _, r := range m.rows {
		if r.CustomerID == id {
			c.Histories = append(c.Histories, r.OrderHistory)
		}
	}
	if len(c.Histories) == 0 {
		return cashback.Customer{}, generic.ErrCustomerNotFound
	}
	return c, nil
}

func (m *Memory) CountCustomers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(store.DistinctIDs(m.rows)), nil
}

func (m *Memory) DeleteCustomers(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	return nil
}

// =============================================================================
// PROGRAMS
// =============================================================================

func (m *Memory) SaveProgram(_ context.Context, p store.ProgramRecord) (store.ProgramRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.programs[p.ID]; ok {
		p.Version = existing.Version + 1
		p.CreatedAt = existing.CreatedAt
	} else {
		p.Version = 1
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.programs[p.ID] = p
	return p, nil
}

func (m *Memory) GetProgram(_ context.Context, id string) (store.ProgramRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.programs[id]
	if !ok {
		return store.ProgramRecord{}, generic.ErrProgramNotFound
	}
	return p, nil
}

// ListPrograms returns programs ordered by name, then id.
func (m *Memory) ListPrograms(_ context.Context) ([]store.ProgramRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]store.ProgramRecord, 0, len(m.programs))
	for _, p := range m.programs {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeleteProgram(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.programs[id]; !ok {
		return generic.ErrProgramNotFound
	}
	delete(m.programs, id)
	return nil
}

var _ store.Store = (*Memory)(nil)
