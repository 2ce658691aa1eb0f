/*
Package cashback simulates loyalty-cashback wallets per customer.

PURPOSE:
  Replays each customer's purchase history through a wallet that earns
  cashback on every order, redeems it against later orders, loses it after
  an expiry window, and moves the customer between LTV brackets whose
  rates price the next order.

PIPELINE:
  raw rows -> ParseOrderHistory -> Simulator (ResolveBracket + LotLedger)
           -> []TraceRow -> reducers (lifetime, bracket, month)

FEEDBACK LOOP:
  The bracket that prices order N is resolved from the cumulative amount
  paid BEFORE order N. Order N's own payment only moves the customer for
  order N+1. The final bracket (from the terminal LTV) is reported
  separately from the bracket that priced the last order.

WHAT THIS PACKAGE DOES NOT DO:
  - No I/O: rows come in as values, tables go out as values
  - No logging per order: bad fields and bad dates are absorbed silently
  - No configuration checks inside the simulation: call Program.Validate

SEE ALSO:
  - order.go: Embedded record parser
  - simulator.go: Per-customer fold
  - aggregate.go: Pure reducers over traces
  - engine.go: Parallel driver across customers
*/
package cashback

import (
	"github.com/shopspring/decimal"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// INPUT ROWS
// =============================================================================

// CustomerRow is one row of the input table. Column names are trimmed by
// whoever builds the row.
type CustomerRow struct {
	CustomerID   string
	OrderHistory string
}

// Customer is every input row sharing one customer id.
type Customer struct {
	ID        string
	Histories []string
}

// Orders parses every history blob of the customer, in row order.
func (c Customer) Orders() []Order {
	var orders []Order
	for _, h := range c.Histories {
		orders = append(orders, ParseOrderHistory(h)...)
	}
	return orders
}

// GroupCustomers merges rows by customer id, keeping first-seen order.
func GroupCustomers(rows []CustomerRow) []Customer {
	index := make(map[string]int, len(rows))
	customers := make([]Customer, 0, len(rows))
	for _, r := range rows {
		i, ok := index[r.CustomerID]
		if !ok {
			i = len(customers)
			index[r.CustomerID] = i
			customers = append(customers, Customer{ID: r.CustomerID})
		}
		customers[i].Histories = append(customers[i].Histories, r.OrderHistory)
	}
	return customers
}

// =============================================================================
// TRACE ROW - One valid order, fully priced
// =============================================================================

// TraceRow records every quantity computed for one valid order. It is the
// unit every aggregation is built from.
type TraceRow struct {
	CustomerID string
	OrderID    string
	OrderDate  generic.TimePoint
	Month      string // YYYY-MM
	OrderIndex int    // 1-based among the customer's valid orders

	// Bracket that priced this order (resolved from LTV before the order).
	Bracket string

	SilverRevenue decimal.Decimal
	GoldRevenue   decimal.Decimal
	PromoAmount   decimal.Decimal

	SilverCashback decimal.Decimal
	GoldCashback   decimal.Decimal
	CoinsUsed      decimal.Decimal
	CoinsExpired   decimal.Decimal // removed from the wallet before pricing

	AmountPaid decimal.Decimal

	// State after the order.
	CumulativeLTV decimal.Decimal
	WalletBalance decimal.Decimal
}

func (r TraceRow) OrderValue() decimal.Decimal     { return r.SilverRevenue.Add(r.GoldRevenue) }
func (r TraceRow) EarnedCashback() decimal.Decimal { return r.SilverCashback.Add(r.GoldCashback) }

// CustomerResult is the terminal state of one customer's simulation.
type CustomerResult struct {
	CustomerID   string
	Trace        []TraceRow
	FinalWallet  decimal.Decimal
	FinalLTV     decimal.Decimal
	FinalBracket string
}
