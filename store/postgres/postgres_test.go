package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/store"
	"github.com/warp/cashback-engine/store/postgres"
	"github.com/warp/cashback-engine/store/storetest"
)

// Runs against a real server only when CASHBACK_TEST_DATABASE_URL is set.
// Every subtest starts from empty tables.
func TestPostgresStore(t *testing.T) {
	uri := os.Getenv("CASHBACK_TEST_DATABASE_URL")
	if uri == "" {
		t.Skip("CASHBACK_TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := postgres.New(ctx, uri)
		require.NoError(t, err)
		require.NoError(t, s.DeleteCustomers(ctx))
		programs, err := s.ListPrograms(ctx)
		require.NoError(t, err)
		for _, p := range programs {
			require.NoError(t, s.DeleteProgram(ctx, p.ID))
		}
		return s
	})
}
