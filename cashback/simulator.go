/*
simulator.go - Per-customer wallet simulation

PURPOSE:
  Replays one customer's valid orders, in date order, as a fold:

    (State, order) -> (State', TraceRow)

  State carries the cumulative LTV, the wallet, and the order count.
  Step never mutates the state it receives, so any single step can be
  tested in isolation.

PER-ORDER SEQUENCE:
  1. bracket   = ResolveBracket(LTV before this order)
  2. wallet.Expire(order date, expiry window)
  3. value     = silver + gold
  4. earned    = silver*silver% + gold*gold%
  5. coinsUsed = min(wallet, value*redeem%)   (0 on the first valid order)
  6. wallet.Credit(earned, order date)
  7. paid      = value - coinsUsed - promo;  LTV += paid  (may go negative)
  8. emit TraceRow with the post-step wallet and LTV

WORKED EXAMPLE (one bracket: silver 4%, redeem 20%, expiry 180):
  2024-01-01 silver 1000: earn 40, use 0,  paid 1000, LTV 1000, wallet 40
  2024-01-31 silver 1000: earn 40, use 40, paid 960,  LTV 1960, wallet 40
*/
package cashback

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// STATE
// =============================================================================

type State struct {
	CumulativeLTV decimal.Decimal
	Wallet        generic.LotLedger
	OrderIndex    int
}

// NewState is the state of a customer before their first order: empty
// wallet, zero LTV.
func NewState() State {
	return State{Wallet: generic.NewLotLedger(generic.UnitCoins)}
}

// DatedOrder is an order whose date parsed.
type DatedOrder struct {
	Order
	Date generic.TimePoint
}

// ValidOrders drops orders with unparseable dates and sorts the rest by
// date. Same-day orders keep their source order.
func ValidOrders(orders []Order) []DatedOrder {
	valid := make([]DatedOrder, 0, len(orders))
	for _, o := range orders {
		if d, ok := o.Date(); ok {
			valid = append(valid, DatedOrder{Order: o, Date: d})
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Date.Before(valid[j].Date)
	})
	return valid
}

// =============================================================================
// SIMULATOR
// =============================================================================

type Simulator struct {
	Program Program
}

// Step prices one order against state and returns the next state.
func (s Simulator) Step(state State, customerID string, order DatedOrder) (State, TraceRow) {
	next := State{
		CumulativeLTV: state.CumulativeLTV,
		Wallet:        state.Wallet.Clone(),
		OrderIndex:    state.OrderIndex + 1,
	}

	bracket := ResolveBracket(state.CumulativeLTV, s.Program.Brackets)
	tier := s.Program.TierFor(bracket)

	expired := next.Wallet.Expire(order.Date, s.Program.ExpiryDays)

	value := order.SilverRevenue.Add(order.GoldRevenue)
	silverCB := generic.Percent(order.SilverRevenue, tier.SilverCashbackPct)
	goldCB := generic.Percent(order.GoldRevenue, tier.GoldCashbackPct)
	earned := silverCB.Add(goldCB)

	coinsUsed := decimal.Zero
	if next.OrderIndex > 1 {
		maxUsable := generic.NewAmountFromDecimal(generic.Percent(value, tier.RedeemPct), generic.UnitCoins)
		// A negative cap (negative redeem rate) redeems nothing.
		want := next.Wallet.Balance().Min(maxUsable).Max(maxUsable.Zero())
		coinsUsed = next.Wallet.Redeem(want).Value
	}

	next.Wallet.Credit(generic.NewAmountFromDecimal(earned, generic.UnitCoins), order.Date)

	paid := value.Sub(coinsUsed).Sub(order.PromoAmount)
	next.CumulativeLTV = next.CumulativeLTV.Add(paid)

	row := TraceRow{
		CustomerID:     customerID,
		OrderID:        order.ID,
		OrderDate:      order.Date,
		Month:          order.Date.MonthKey(),
		OrderIndex:     next.OrderIndex,
		Bracket:        bracket,
		SilverRevenue:  order.SilverRevenue,
		GoldRevenue:    order.GoldRevenue,
		PromoAmount:    order.PromoAmount,
		SilverCashback: silverCB,
		GoldCashback:   goldCB,
		CoinsUsed:      coinsUsed,
		CoinsExpired:   expired.Value,
		AmountPaid:     paid,
		CumulativeLTV:  next.CumulativeLTV,
		WalletBalance:  next.Wallet.Balance().Value,
	}
	return next, row
}

// Run simulates every valid order of one customer.
func (s Simulator) Run(customerID string, orders []Order) CustomerResult {
	valid := ValidOrders(orders)
	state := NewState()
	trace := make([]TraceRow, 0, len(valid))
	for _, o := range valid {
		var row TraceRow
		state, row = s.Step(state, customerID, o)
		trace = append(trace, row)
	}
	return CustomerResult{
		CustomerID:   customerID,
		Trace:        trace,
		FinalWallet:  state.Wallet.Balance().Value,
		FinalLTV:     state.CumulativeLTV,
		FinalBracket: ResolveBracket(state.CumulativeLTV, s.Program.Brackets),
	}
}
