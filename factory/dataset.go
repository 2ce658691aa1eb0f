package factory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// CUSTOMER DATASET
// =============================================================================

const (
	ColumnCustomerID   = "customer_id"
	ColumnOrderHistory = "order_history"
)

// ReadCustomersCSV reads a customer export. The header row is required;
// column names are trimmed and matched exactly. Columns other than
// customer_id and order_history are ignored.
func ReadCustomersCSV(r io.Reader) ([]cashback.CustomerRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", generic.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, key := range []string{ColumnCustomerID, ColumnOrderHistory} {
		if _, ok := idx[key]; !ok {
			return nil, fmt.Errorf("%w: %s", generic.ErrMissingColumn, key)
		}
	}

	get := func(row []string, key string) string {
		pos := idx[key]
		if pos >= len(row) {
			return ""
		}
		return row[pos]
	}

	rows := []cashback.CustomerRow{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		id := strings.TrimSpace(get(record, ColumnCustomerID))
		if id == "" {
			continue
		}
		rows = append(rows, cashback.CustomerRow{
			CustomerID:   id,
			OrderHistory: get(record, ColumnOrderHistory),
		})
	}
}

// WriteTraceCSV writes trace rows as CSV with a header row.
func WriteTraceCSV(w io.Writer, trace []cashback.TraceRow) error {
	writer := csv.NewWriter(w)
	header := []string{
		"customer_id", "order_id", "order_date", "month", "order_index", "bracket",
		"silver_revenue", "gold_revenue", "promo_amount",
		"silver_cashback", "gold_cashback", "coins_used", "coins_expired",
		"amount_paid", "cumulative_ltv", "wallet_balance",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range trace {
		record := []string{
			r.CustomerID, r.OrderID, r.OrderDate.String(), r.Month, fmt.Sprint(r.OrderIndex), r.Bracket,
			r.SilverRevenue.String(), r.GoldRevenue.String(), r.PromoAmount.String(),
			r.SilverCashback.String(), r.GoldCashback.String(), r.CoinsUsed.String(), r.CoinsExpired.String(),
			r.AmountPaid.String(), r.CumulativeLTV.String(), r.WalletBalance.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
