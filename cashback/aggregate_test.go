package cashback_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TEST DATASET
// =============================================================================

// dataset: three customers over Jan-Mar 2024 under twoBracketProgram.
//
//	alice: 1000 in Jan (0-1000), 500 in Feb (1000-∞)
//	bob:   200 in Jan, 300 gold in Mar (both 0-1000)
//	carol: only an invalid date, never simulated
func dataset() []cashback.CustomerRow {
	return []cashback.CustomerRow{
		{CustomerID: "alice", OrderHistory: history(
			record("#a1", "2024-01-05", 1000, 0, 0),
			record("#a2", "2024-02-10", 500, 0, 20),
		)},
		{CustomerID: "bob", OrderHistory: history(
			record("#b1", "2024-01-20", 200, 0, 0),
			record("#b2", "2024-03-01", 0, 300, 0),
		)},
		{CustomerID: "carol", OrderHistory: record("#c1", "not-a-date", 100, 0, 0)},
	}
}

func simulate(t *testing.T, rows []cashback.CustomerRow) []cashback.CustomerResult {
	t.Helper()
	engine := cashback.NewEngine(twoBracketProgram(), cashback.WithWorkers(2))
	results, err := engine.Simulate(context.Background(), rows)
	require.NoError(t, err)
	return results
}

// =============================================================================
// LIFETIME VIEW
// =============================================================================

func TestBuildLifetimeReport(t *testing.T) {
	// GIVEN: Three customers, one without valid orders
	// WHEN: Building the lifetime report
	// THEN: Only alice and bob appear, traces concatenated in input order

	report := cashback.BuildLifetimeReport(simulate(t, dataset()))

	require.Len(t, report.Customers, 2)
	assert.Equal(t, "alice", report.Customers[0].CustomerID)
	assert.Equal(t, "bob", report.Customers[1].CustomerID)
	require.Len(t, report.Trace, 4)
	assert.Equal(t, []string{"#a1", "#a2", "#b1", "#b2"}, []string{
		report.Trace[0].OrderID, report.Trace[1].OrderID, report.Trace[2].OrderID, report.Trace[3].OrderID,
	})

	alice := report.Customers[0]
	assert.Equal(t, 2, alice.Orders)
	assertDec(t, "1500", alice.Revenue())
	assertDec(t, "500", alice.RepeatRevenue)
	// a1: 4% of 1000 = 40. a2 priced at 1000-∞: 10% of 500 = 50, redeems min(40, 250) = 40.
	assertDec(t, "90", alice.EarnedCashback())
	assertDec(t, "40", alice.CoinsUsed)
	assertDec(t, "50", alice.FinalWallet)
	assertDec(t, "1440", alice.FinalLTV)
	assert.Equal(t, "1000-∞", alice.FinalBracket)
	assertDec(t, "60", alice.TotalDiscount())
	assertDec(t, "44.44", alice.RedemptionRate())
}

func TestBuildLifetimeReport_Empty(t *testing.T) {
	report := cashback.BuildLifetimeReport(nil)

	assert.NotNil(t, report.Customers)
	assert.NotNil(t, report.Trace)
	assert.Empty(t, report.Customers)

	overview := report.Overview()
	assert.Equal(t, 0, overview.Users)
	assert.True(t, overview.RedemptionRate().IsZero(), "no division by zero")
}

func TestSummarizeByBracket(t *testing.T) {
	report := cashback.BuildLifetimeReport(simulate(t, dataset()))

	rows := cashback.SummarizeByBracket(report.Customers, twoBracketProgram().Brackets)

	require.Len(t, rows, 2)
	assert.Equal(t, "0-1000", rows[0].Bracket)
	assert.Equal(t, 1, rows[0].Users, "bob ends below 1000")
	assertDec(t, "300", rows[0].GoldRevenue)
	assert.Equal(t, "1000-∞", rows[1].Bracket)
	assert.Equal(t, 1, rows[1].Users)
	assertDec(t, "50", rows[1].CoinBalance)
	assertDec(t, "20", rows[1].PromoAmount)
}

func TestSummarizeTraceByMonth(t *testing.T) {
	report := cashback.BuildLifetimeReport(simulate(t, dataset()))

	rows := cashback.SummarizeTraceByMonth(report.Trace, false)

	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01", rows[0].Month)
	assert.Equal(t, 2, rows[0].Users)
	assertDec(t, "1200", rows[0].Revenue())
	assert.Equal(t, "2024-02", rows[1].Month)
	assert.Equal(t, "2024-03", rows[2].Month)

	split := cashback.SummarizeTraceByMonth(report.Trace, true)
	require.Len(t, split, 3, "jan only has 0-1000 rows")
	assert.Equal(t, "1000-∞", split[1].Bracket)
}

// =============================================================================
// MONTH-SCOPED VIEW
// =============================================================================

func TestSummarizeMonths_MatchesTrace(t *testing.T) {
	// GIVEN: The same simulation results
	// WHEN: Summarizing each month without a bracket split
	// THEN: Revenue equals the trace rows of that month

	results := simulate(t, dataset())
	report := cashback.BuildLifetimeReport(results)
	months := []string{"2024-01", "2024-02", "2024-03", "2024-04"}

	rows := cashback.SummarizeMonths(results, twoBracketProgram().Brackets, cashback.MonthRequest{Months: months})

	require.Len(t, rows, len(months))
	for i, m := range months {
		want := decimal.Zero
		for _, r := range report.Trace {
			if r.Month == m {
				want = want.Add(r.OrderValue())
			}
		}
		assert.Equal(t, m, rows[i].Month)
		assert.True(t, want.Equal(rows[i].Revenue()), "month %s: want %s got %s", m, want, rows[i].Revenue())
	}
	assert.Equal(t, 0, rows[3].Users, "april has no orders")
}

func TestSummarizeMonths_ByBracket(t *testing.T) {
	// GIVEN: February where alice is priced at 1000-∞
	// WHEN: Splitting by bracket
	// THEN: Every configured bracket has a row; alice's balance lands in 1000-∞

	results := simulate(t, dataset())

	rows := cashback.SummarizeMonths(results, twoBracketProgram().Brackets, cashback.MonthRequest{
		Months: []string{"2024-02"}, ByBracket: true,
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "0-1000", rows[0].Bracket)
	assert.Equal(t, 0, rows[0].Users)
	assert.True(t, rows[0].CoinBalance.IsZero())

	assert.Equal(t, "1000-∞", rows[1].Bracket)
	assert.Equal(t, 1, rows[1].Users)
	assertDec(t, "500", rows[1].SilverRevenue)
	assertDec(t, "50", rows[1].CoinBalance, "terminal wallet")
	assertDec(t, "50", rows[1].MonthEndWalletBalance)
}

func TestSummarizeMonths_TerminalVersusMonthEndBalance(t *testing.T) {
	// GIVEN: bob's January order; his history continues into March
	// WHEN: Summarizing January
	// THEN: CoinBalance is his terminal wallet, MonthEndWalletBalance the January one

	results := simulate(t, dataset())

	rows := cashback.SummarizeMonths(results, twoBracketProgram().Brackets, cashback.MonthRequest{
		Months: []string{"2024-01"}, ByBracket: true,
	})

	require.Len(t, rows, 2)
	// alice: Jan wallet 40, terminal 50 in 1000-∞. bob: Jan wallet 8, terminal 8-8+6 = 6.
	assert.Equal(t, 2, rows[0].Users)
	assertDec(t, "48", rows[0].MonthEndWalletBalance)
	assertDec(t, "6", rows[0].CoinBalance, "bob ends in 0-1000")
	assertDec(t, "50", rows[1].CoinBalance, "alice ends in 1000-∞")
	assert.Equal(t, 0, rows[1].Users)
}

func TestMonthRequest_Validate(t *testing.T) {
	err := cashback.MonthRequest{Months: []string{"2024-01", "24-1"}}.Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidMonth))
	var me *generic.MonthError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "24-1", me.Month)
}
