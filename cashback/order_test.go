package cashback_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/cashback"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// =============================================================================
// PARSER
// =============================================================================

func TestParseOrderHistory_FullRecord(t *testing.T) {
	// GIVEN: One well-formed record with thousands separators and an M suffix
	// WHEN: Parsing
	// THEN: Every field round-trips

	blob := `[{:order_id "#A1" :order_date #t "2024-01-05" :silver_revenue 1,000.50M :gold_revenue 200 :promo_amount 25.5}]`

	orders := cashback.ParseOrderHistory(blob)

	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, "#A1", o.ID)
	assert.Equal(t, "2024-01-05", o.DateText)
	assertDec(t, "1000.50", o.SilverRevenue)
	assertDec(t, "200", o.GoldRevenue)
	assertDec(t, "25.5", o.PromoAmount)
}

func TestParseOrderHistory_MultipleRecordsInOrder(t *testing.T) {
	blob := `[{:order_id "#B2" :order_date #t "2024-02-01" :silver_revenue 10}
	          {:order_id "#B1" :order_date #t "2024-01-01" :silver_revenue 20}]`

	orders := cashback.ParseOrderHistory(blob)

	require.Len(t, orders, 2)
	assert.Equal(t, "#B2", orders[0].ID, "source order kept")
	assert.Equal(t, "#B1", orders[1].ID)
}

func TestParseOrderHistory_MissingFieldsDefault(t *testing.T) {
	// GIVEN: A record with only an order id
	// WHEN: Parsing
	// THEN: Date is N/A and amounts are zero

	orders := cashback.ParseOrderHistory(`{:order_id "#X"}`)

	require.Len(t, orders, 1)
	assert.Equal(t, "#X", orders[0].ID)
	assert.Equal(t, cashback.Missing, orders[0].DateText)
	assert.True(t, orders[0].SilverRevenue.IsZero())
	assert.True(t, orders[0].GoldRevenue.IsZero())
	assert.True(t, orders[0].PromoAmount.IsZero())

	_, ok := orders[0].Date()
	assert.False(t, ok, "N/A date is invalid")
}

func TestParseOrderHistory_MalformedValues(t *testing.T) {
	blob := `{:order_id :order_date "2024-01-01" :silver_revenue abc :gold_revenue 12,5}`

	orders := cashback.ParseOrderHistory(blob)

	require.Len(t, orders, 1)
	assert.Equal(t, cashback.Missing, orders[0].ID)
	assert.Equal(t, cashback.Missing, orders[0].DateText, "date without #t is rejected")
	assert.True(t, orders[0].SilverRevenue.IsZero())
	assertDec(t, "125", orders[0].GoldRevenue, "commas are dropped")
}

func TestParseOrderHistory_Edges(t *testing.T) {
	assert.Empty(t, cashback.ParseOrderHistory(""))
	assert.Empty(t, cashback.ParseOrderHistory("[]"))
	assert.Empty(t, cashback.ParseOrderHistory("{:order_id}"), "empty body carries no record")
	assert.Empty(t, cashback.ParseOrderHistory(`{:order_id "#1" :silver_revenue 5`), "unclosed record")
}

func TestParseOrderHistory_SingleQuotesAndLenientDate(t *testing.T) {
	orders := cashback.ParseOrderHistory(`{:order_id '#7' :order_date #t '2024-3-9' :silver_revenue 5.}`)

	require.Len(t, orders, 1)
	assert.Equal(t, "#7", orders[0].ID)
	assertDec(t, "5", orders[0].SilverRevenue)

	d, ok := orders[0].Date()
	require.True(t, ok)
	assert.Equal(t, "2024-03-09", d.String())
}

func TestGroupCustomers_MergesDuplicateIDs(t *testing.T) {
	rows := []cashback.CustomerRow{
		{CustomerID: "c1", OrderHistory: `{:order_id "#1" :order_date #t "2024-01-01"}`},
		{CustomerID: "c2", OrderHistory: ""},
		{CustomerID: "c1", OrderHistory: `{:order_id "#2" :order_date #t "2024-02-01"}`},
	}

	customers := cashback.GroupCustomers(rows)

	require.Len(t, customers, 2)
	assert.Equal(t, "c1", customers[0].ID)
	assert.Equal(t, "c2", customers[1].ID)
	assert.Len(t, customers[0].Orders(), 2)
	assert.Empty(t, customers[1].Orders())
}
