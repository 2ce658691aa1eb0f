/*
aggregate.go - Pure reducers over simulation traces

PURPOSE:
  Every table the engine produces is a fold over []CustomerResult. None
  of them re-run the simulation, so the lifetime view and the month view
  always agree on the orders they share.

TABLES:
  LifetimeReport:      One CustomerSummary per customer with a valid order,
                       plus the concatenated trace
  SummarizeByBracket:  Lifetime summaries grouped by terminal bracket
  SummarizeTraceByMonth: Trace rows grouped by month (optionally bracket)
  SummarizeMonths:     Month-scoped view for requested months

UNIQUE CUSTOMERS:
  User counts come from grouping rows by customer, never from a set shared
  across the whole iteration.

RATES:
  Redemption rate is redeemed / earned * 100, and zero when nothing was earned.
*/
package cashback

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TOTALS - Additive figures shared by every table
// =============================================================================

type Totals struct {
	SilverRevenue  decimal.Decimal
	GoldRevenue    decimal.Decimal
	PromoAmount    decimal.Decimal
	SilverCashback decimal.Decimal
	GoldCashback   decimal.Decimal
	CoinsUsed      decimal.Decimal
	CoinsExpired   decimal.Decimal
}

func (t *Totals) AddRow(r TraceRow) {
	t.SilverRevenue = t.SilverRevenue.Add(r.SilverRevenue)
	t.GoldRevenue = t.GoldRevenue.Add(r.GoldRevenue)
	t.PromoAmount = t.PromoAmount.Add(r.PromoAmount)
	t.SilverCashback = t.SilverCashback.Add(r.SilverCashback)
	t.GoldCashback = t.GoldCashback.Add(r.GoldCashback)
	t.CoinsUsed = t.CoinsUsed.Add(r.CoinsUsed)
	t.CoinsExpired = t.CoinsExpired.Add(r.CoinsExpired)
}

func (t *Totals) Merge(o Totals) {
	t.SilverRevenue = t.SilverRevenue.Add(o.SilverRevenue)
	t.GoldRevenue = t.GoldRevenue.Add(o.GoldRevenue)
	t.PromoAmount = t.PromoAmount.Add(o.PromoAmount)
	t.SilverCashback = t.SilverCashback.Add(o.SilverCashback)
	t.GoldCashback = t.GoldCashback.Add(o.GoldCashback)
	t.CoinsUsed = t.CoinsUsed.Add(o.CoinsUsed)
	t.CoinsExpired = t.CoinsExpired.Add(o.CoinsExpired)
}

func (t Totals) Revenue() decimal.Decimal        { return t.SilverRevenue.Add(t.GoldRevenue) }
func (t Totals) EarnedCashback() decimal.Decimal { return t.SilverCashback.Add(t.GoldCashback) }
func (t Totals) TotalDiscount() decimal.Decimal  { return t.PromoAmount.Add(t.CoinsUsed) }

// RedemptionRate is the share of earned cashback that was redeemed, in percent.
func (t Totals) RedemptionRate() decimal.Decimal {
	return generic.Ratio(t.CoinsUsed, t.EarnedCashback())
}

// =============================================================================
// LIFETIME (FULL-HISTORY) VIEW
// =============================================================================

type CustomerSummary struct {
	CustomerID string
	Totals
	Orders        int
	RepeatRevenue decimal.Decimal // order value of every valid order but the first
	FinalWallet   decimal.Decimal
	FinalLTV      decimal.Decimal
	FinalBracket  string
}

// Summarize folds one customer's trace into lifetime totals.
func Summarize(res CustomerResult) CustomerSummary {
	s := CustomerSummary{
		CustomerID:   res.CustomerID,
		Orders:       len(res.Trace),
		FinalWallet:  res.FinalWallet,
		FinalLTV:     res.FinalLTV,
		FinalBracket: res.FinalBracket,
	}
	for _, r := range res.Trace {
		s.AddRow(r)
		if r.OrderIndex > 1 {
			s.RepeatRevenue = s.RepeatRevenue.Add(r.OrderValue())
		}
	}
	return s
}

type LifetimeReport struct {
	Customers []CustomerSummary
	Trace     []TraceRow
}

// BuildLifetimeReport keeps customers with at least one valid order, in
// input order, and concatenates their traces.
func BuildLifetimeReport(results []CustomerResult) LifetimeReport {
	report := LifetimeReport{
		Customers: []CustomerSummary{},
		Trace:     []TraceRow{},
	}
	for _, res := range results {
		if len(res.Trace) == 0 {
			continue
		}
		report.Customers = append(report.Customers, Summarize(res))
		report.Trace = append(report.Trace, res.Trace...)
	}
	return report
}

// Overview is the headline figure set of a lifetime report.
type Overview struct {
	Users int
	Totals
}

func (r LifetimeReport) Overview() Overview {
	o := Overview{Users: len(r.Customers)}
	for _, c := range r.Customers {
		o.Merge(c.Totals)
	}
	return o
}

// =============================================================================
// BRACKET SUMMARY
// =============================================================================

type BracketSummary struct {
	Bracket string
	Users   int
	Totals
	RepeatRevenue decimal.Decimal
	CoinBalance   decimal.Decimal
}

// SummarizeByBracket groups customers by terminal bracket. Every configured
// bracket gets a row, empty ones included.
func SummarizeByBracket(customers []CustomerSummary, brackets []Bracket) []BracketSummary {
	rows := make([]BracketSummary, len(brackets))
	index := make(map[string]int, len(brackets))
	for i, b := range brackets {
		rows[i].Bracket = b.Label
		if _, dup := index[b.Label]; !dup {
			index[b.Label] = i
		}
	}
	for _, c := range customers {
		i, ok := index[c.FinalBracket]
		if !ok {
			continue
		}
		rows[i].Users++
		rows[i].Merge(c.Totals)
		rows[i].RepeatRevenue = rows[i].RepeatRevenue.Add(c.RepeatRevenue)
		rows[i].CoinBalance = rows[i].CoinBalance.Add(c.FinalWallet)
	}
	return rows
}

// =============================================================================
// TRACE MONTH SUMMARY
// =============================================================================

type TraceMonthSummary struct {
	Month   string
	Bracket string // empty unless split by bracket
	Users   int
	Totals
	// Wallet balance of the last trace row in the group.
	WalletBalance decimal.Decimal
}

// SummarizeTraceByMonth groups trace rows by month, and by pricing bracket
// when byBracket is set. Groups come out sorted by month, then bracket label.
func SummarizeTraceByMonth(trace []TraceRow, byBracket bool) []TraceMonthSummary {
	type key struct{ month, bracket string }
	groups := make(map[key]*TraceMonthSummary)
	users := make(map[key]map[string]struct{})
	var keys []key

	for _, r := range trace {
		k := key{month: r.Month}
		if byBracket {
			k.bracket = r.Bracket
		}
		g, ok := groups[k]
		if !ok {
			g = &TraceMonthSummary{Month: k.month, Bracket: k.bracket}
			groups[k] = g
			users[k] = make(map[string]struct{})
			keys = append(keys, k)
		}
		g.AddRow(r)
		g.WalletBalance = r.WalletBalance
		users[k][r.CustomerID] = struct{}{}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].month != keys[j].month {
			return keys[i].month < keys[j].month
		}
		return keys[i].bracket < keys[j].bracket
	})

	out := make([]TraceMonthSummary, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		g.Users = len(users[k])
		out = append(out, *g)
	}
	return out
}

// =============================================================================
// MONTH-SCOPED VIEW
// =============================================================================

// MonthRequest selects the months of a month-scoped run.
type MonthRequest struct {
	Months    []string
	ByBracket bool
}

func (r MonthRequest) Validate() error {
	for _, m := range r.Months {
		if !generic.ValidMonthKey(m) {
			return &generic.MonthError{Month: m}
		}
	}
	return nil
}

type MonthSummary struct {
	Month   string
	Bracket string // empty unless split by bracket
	Users   int
	Totals

	// Terminal wallet of every contributing customer, bucketed by the
	// customer's terminal bracket.
	CoinBalance decimal.Decimal

	// Wallet right after each contributing customer's last order of the
	// month, bucketed by that order's bracket.
	MonthEndWalletBalance decimal.Decimal
}

// SummarizeMonths folds the retained traces once per requested month. An
// order counts toward a month when its month key matches; with ByBracket
// it lands in the bucket of the bracket that priced it.
func SummarizeMonths(results []CustomerResult, brackets []Bracket, req MonthRequest) []MonthSummary {
	out := make([]MonthSummary, 0, len(req.Months)*max(1, len(brackets)))
	for _, month := range req.Months {
		out = append(out, summarizeMonth(results, brackets, month, req.ByBracket)...)
	}
	return out
}

func summarizeMonth(results []CustomerResult, brackets []Bracket, month string, byBracket bool) []MonthSummary {
	var buckets []MonthSummary
	index := make(map[string]int)
	if byBracket {
		buckets = make([]MonthSummary, len(brackets))
		for i, b := range brackets {
			buckets[i] = MonthSummary{Month: month, Bracket: b.Label}
			if _, dup := index[b.Label]; !dup {
				index[b.Label] = i
			}
		}
	} else {
		buckets = []MonthSummary{{Month: month}}
	}

	bucketOf := func(label string) (int, bool) {
		if !byBracket {
			return 0, true
		}
		i, ok := index[label]
		return i, ok
	}

	for _, res := range results {
		touched := make(map[int]bool)
		var last *TraceRow
		for i := range res.Trace {
			r := &res.Trace[i]
			if r.Month != month {
				continue
			}
			b, ok := bucketOf(r.Bracket)
			if !ok {
				continue
			}
			buckets[b].AddRow(*r)
			touched[b] = true
			last = r
		}
		if last == nil {
			continue
		}
		for b := range touched {
			buckets[b].Users++
		}
		if b, ok := bucketOf(res.FinalBracket); ok {
			buckets[b].CoinBalance = buckets[b].CoinBalance.Add(res.FinalWallet)
		}
		if b, ok := bucketOf(last.Bracket); ok {
			buckets[b].MonthEndWalletBalance = buckets[b].MonthEndWalletBalance.Add(last.WalletBalance)
		}
	}
	return buckets
}
