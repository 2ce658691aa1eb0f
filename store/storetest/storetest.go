// Package storetest is the behaviour every store.Store implementation must
// show. Implementation packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store"
)

// Run executes the suite. newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"ImportKeepsOrder", testImportKeepsOrder},
		{"ReimportReplacesCustomer", testReimportReplacesCustomer},
		{"GetCustomerMergesRows", testGetCustomerMergesRows},
		{"DeleteCustomers", testDeleteCustomers},
		{"ProgramVersioning", testProgramVersioning},
		{"ProgramNotFound", testProgramNotFound},
		{"ListPrograms", testListPrograms},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func rows(pairs ...string) []cashback.CustomerRow {
	out := make([]cashback.CustomerRow, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, cashback.CustomerRow{CustomerID: pairs[i], OrderHistory: pairs[i+1]})
	}
	return out
}

func testImportKeepsOrder(t *testing.T, s store.Store) {
	// GIVEN: An empty store
	// WHEN: Importing three rows, two for the same customer
	// THEN: Rows come back as imported and the count is distinct

	ctx := context.Background()
	n, err := s.ImportCustomers(ctx, rows("b", "h1", "a", "h2", "b", "h3"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows("b", "h1", "a", "h2", "b", "h3"), got)

	count, err := s.CountCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testReimportReplacesCustomer(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.ImportCustomers(ctx, rows("a", "old", "b", "keep"))
	require.NoError(t, err)

	_, err = s.ImportCustomers(ctx, rows("a", "new"))
	require.NoError(t, err)

	got, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows("b", "keep", "a", "new"), got)
}

func testGetCustomerMergesRows(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.ImportCustomers(ctx, rows("a", "h1", "b", "x", "a", "h2"))
	require.NoError(t, err)

	c, err := s.GetCustomer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", c.ID)
	assert.Equal(t, []string{"h1", "h2"}, c.Histories)

	_, err = s.GetCustomer(ctx, "zzz")
	assert.ErrorIs(t, err, generic.ErrCustomerNotFound)
}

func testDeleteCustomers(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.ImportCustomers(ctx, rows("a", "h1"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteCustomers(ctx))

	got, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	count, err := s.CountCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testProgramVersioning(t *testing.T, s store.Store) {
	// GIVEN: A saved program
	// WHEN: Saving it again under the same id
	// THEN: Version goes up and the new config is returned

	ctx := context.Background()
	first, err := s.SaveProgram(ctx, store.ProgramRecord{ID: "p1", Name: "Default", ConfigJSON: `{"expiry_days":180}`})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := s.SaveProgram(ctx, store.ProgramRecord{ID: "p1", Name: "Default v2", ConfigJSON: `{"expiry_days":90}`})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	got, err := s.GetProgram(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Default v2", got.Name)
	assert.JSONEq(t, `{"expiry_days":90}`, got.ConfigJSON)
	assert.False(t, got.CreatedAt.IsZero())
}

func testProgramNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetProgram(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrProgramNotFound)

	err = s.DeleteProgram(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrProgramNotFound)
}

func testListPrograms(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, p := range []store.ProgramRecord{
		{ID: "2", Name: "Summer", ConfigJSON: `{}`},
		{ID: "1", Name: "Default", ConfigJSON: `{}`},
	} {
		_, err := s.SaveProgram(ctx, p)
		require.NoError(t, err)
	}

	list, err := s.ListPrograms(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Name)
	assert.Equal(t, "Summer", list[1].Name)

	require.NoError(t, s.DeleteProgram(ctx, "1"))
	list, err = s.ListPrograms(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
