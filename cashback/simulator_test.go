package cashback_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// singleBracketProgram prices everything at silver 4%, gold 2%, redeem 20%.
func singleBracketProgram(expiry int) cashback.Program {
	return cashback.Program{
		Brackets:   []cashback.Bracket{cashback.NewOpenBracket(0)},
		Tiers:      map[string]cashback.Tier{"0-∞": cashback.NewTier(4, 2, 20)},
		ExpiryDays: expiry,
	}
}

func record(id, date string, silver, gold, promo float64) string {
	return fmt.Sprintf(`{:order_id "%s" :order_date #t "%s" :silver_revenue %v :gold_revenue %v :promo_amount %v}`,
		id, date, silver, gold, promo)
}

func history(records ...string) string {
	return "[" + strings.Join(records, " ") + "]"
}

func dated(t *testing.T, id, date string, silver float64) cashback.DatedOrder {
	t.Helper()
	orders := cashback.ValidOrders(cashback.ParseOrderHistory(record(id, date, silver, 0, 0)))
	require.Len(t, orders, 1)
	return orders[0]
}

// =============================================================================
// CONCRETE SCENARIO
// =============================================================================

func TestSimulator_TwoOrderScenario(t *testing.T) {
	// GIVEN: Single bracket (silver 4%, redeem 20%), expiry 180
	//        Orders: 2024-01-01 silver 1000, 2024-01-31 silver 1000
	// WHEN: Simulating
	// THEN: Order 1 earns 40, uses 0; order 2 earns 40, uses 40
	//       Final LTV 1960, final wallet 40

	sim := cashback.Simulator{Program: singleBracketProgram(180)}
	orders := cashback.ParseOrderHistory(history(
		record("#1", "2024-01-01", 1000, 0, 0),
		record("#2", "2024-01-31", 1000, 0, 0),
	))

	res := sim.Run("c1", orders)

	require.Len(t, res.Trace, 2)
	first, second := res.Trace[0], res.Trace[1]

	assertDec(t, "40", first.SilverCashback)
	assertDec(t, "0", first.CoinsUsed)
	assertDec(t, "1000", first.AmountPaid)
	assertDec(t, "40", first.WalletBalance)
	assert.Equal(t, 1, first.OrderIndex)

	assertDec(t, "40", second.SilverCashback)
	assertDec(t, "40", second.CoinsUsed)
	assertDec(t, "960", second.AmountPaid)
	assertDec(t, "1960", second.CumulativeLTV)
	assert.Equal(t, "2024-01", second.Month)

	assertDec(t, "40", res.FinalWallet)
	assertDec(t, "1960", res.FinalLTV)
	assert.Equal(t, "0-∞", res.FinalBracket)
}

func TestSimulator_FirstOrderNeverRedeems(t *testing.T) {
	// GIVEN: A fresh state
	// WHEN: Stepping the first order
	// THEN: Coins used is zero whatever the rate

	p := singleBracketProgram(180)
	p.Tiers["0-∞"] = cashback.NewTier(50, 50, 100)
	sim := cashback.Simulator{Program: p}

	next, row := sim.Step(cashback.NewState(), "c1", dated(t, "#1", "2024-01-01", 100))

	assert.True(t, row.CoinsUsed.IsZero())
	assertDec(t, "50", next.Wallet.Balance().Value)
}

func TestSimulator_Step_DoesNotMutateInput(t *testing.T) {
	sim := cashback.Simulator{Program: singleBracketProgram(180)}
	s1, _ := sim.Step(cashback.NewState(), "c1", dated(t, "#1", "2024-01-01", 1000))

	s2, _ := sim.Step(s1, "c1", dated(t, "#2", "2024-01-02", 1000))

	assertDec(t, "40", s1.Wallet.Balance().Value, "input wallet untouched")
	assertDec(t, "1000", s1.CumulativeLTV)
	assert.Equal(t, 1, s1.OrderIndex)
	assert.Equal(t, 2, s2.OrderIndex)
}

func TestSimulator_ExpiryBeforeRedemption(t *testing.T) {
	// GIVEN: 30-day window, orders 31 days apart
	// WHEN: Simulating
	// THEN: The first order's coins expire before the second can use them

	sim := cashback.Simulator{Program: singleBracketProgram(30)}
	orders := cashback.ParseOrderHistory(history(
		record("#1", "2024-01-01", 1000, 0, 0),
		record("#2", "2024-02-01", 1000, 0, 0),
	))

	res := sim.Run("c1", orders)

	require.Len(t, res.Trace, 2)
	assertDec(t, "40", res.Trace[1].CoinsExpired)
	assertDec(t, "0", res.Trace[1].CoinsUsed)
	assertDec(t, "2000", res.FinalLTV)
}

func TestSimulator_BracketFeedback(t *testing.T) {
	// GIVEN: 0-1000 at silver 4%, 1000-∞ at silver 10%
	// WHEN: The first order pays 1000
	// THEN: The first order is priced at 0-1000, the second at 1000-∞

	sim := cashback.Simulator{Program: twoBracketProgram()}
	orders := cashback.ParseOrderHistory(history(
		record("#1", "2024-01-01", 1000, 0, 0),
		record("#2", "2024-01-10", 100, 0, 0),
	))

	res := sim.Run("c1", orders)

	require.Len(t, res.Trace, 2)
	assert.Equal(t, "0-1000", res.Trace[0].Bracket)
	assert.Equal(t, "1000-∞", res.Trace[1].Bracket)
	assertDec(t, "10", res.Trace[1].SilverCashback)
}

func TestSimulator_BracketNeverDropsForNonNegativePayments(t *testing.T) {
	sim := cashback.Simulator{Program: twoBracketProgram()}
	var records []string
	for i := 1; i <= 12; i++ {
		records = append(records, record(fmt.Sprintf("#%d", i), fmt.Sprintf("2024-%d-15", i), 150, 50, 0))
	}
	brackets := sim.Program.Brackets

	res := sim.Run("c1", cashback.ParseOrderHistory(history(records...)))

	require.Len(t, res.Trace, 12)
	prev := -1
	for _, row := range res.Trace {
		rank := cashback.BracketRank(row.Bracket, brackets)
		assert.GreaterOrEqual(t, rank, prev, "order %s", row.OrderID)
		assert.False(t, row.AmountPaid.IsNegative())
		prev = rank
	}
}

func TestSimulator_PromoCanMakeLTVNegative(t *testing.T) {
	sim := cashback.Simulator{Program: singleBracketProgram(180)}

	res := sim.Run("c1", cashback.ParseOrderHistory(record("#1", "2024-01-01", 10, 0, 50)))

	require.Len(t, res.Trace, 1)
	assertDec(t, "-40", res.Trace[0].AmountPaid)
	assertDec(t, "-40", res.FinalLTV)
}

func TestSimulator_InvalidDatesDroppedAndSorted(t *testing.T) {
	// GIVEN: Orders out of date order plus one with a bad date
	// WHEN: Simulating
	// THEN: Bad order skipped, the rest replayed chronologically

	sim := cashback.Simulator{Program: singleBracketProgram(180)}
	orders := cashback.ParseOrderHistory(history(
		record("#late", "2024-03-01", 10, 0, 0),
		record("#bad", "2024-02-30", 99, 0, 0),
		record("#early", "2024-01-01", 10, 0, 0),
	))

	res := sim.Run("c1", orders)

	require.Len(t, res.Trace, 2)
	assert.Equal(t, "#early", res.Trace[0].OrderID)
	assert.Equal(t, "#late", res.Trace[1].OrderID)
	assert.True(t, res.Trace[0].OrderDate.Equal(generic.NewTimePoint(2024, time.January, 1)))
}

func TestSimulator_NoValidOrders(t *testing.T) {
	sim := cashback.Simulator{Program: singleBracketProgram(180)}

	res := sim.Run("c1", cashback.ParseOrderHistory(`{:order_id "#1"}`))

	assert.Empty(t, res.Trace)
	assert.True(t, res.FinalWallet.IsZero())
	assert.True(t, res.FinalLTV.IsZero())
	assert.Equal(t, "0-∞", res.FinalBracket)
}

func TestSimulator_NegativeRedeemRateRedeemsNothing(t *testing.T) {
	p := singleBracketProgram(180)
	p.Tiers["0-∞"] = cashback.NewTier(4, 2, -20)
	sim := cashback.Simulator{Program: p}

	res := sim.Run("c1", cashback.ParseOrderHistory(history(
		record("#1", "2024-01-01", 1000, 0, 0),
		record("#2", "2024-01-02", 1000, 0, 0),
	)))

	require.Len(t, res.Trace, 2)
	assertDec(t, "0", res.Trace[1].CoinsUsed)
	assertDec(t, "80", res.FinalWallet)
}
