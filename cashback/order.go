/*
order.go - Embedded order record parser

PURPOSE:
  Turns one customer's order-history blob into typed Order events. The
  blob is a loose, EDN-like text holding zero or more sub-records:

    [{:order_id "#A1" :order_date #t "2024-01-01" :silver_revenue 1,000.50M
      :gold_revenue 0 :promo_amount 25} {:order_id "#A2" ...}]

GRAMMAR:
  record  := "{:order_id" body "}"      body has no '}' and is not empty
  field   := marker WS+ value           first well-formed occurrence wins
  id      := ["']? [#A-Za-z0-9]+
  date    := "#t" WS+ quote [^"']+ quote
  number  := [0-9,]+ ("." [0-9]*)? "M"?  commas dropped, M ignored

LENIENCY CONTRACT:
  Parsing never fails. Every field is optional and falls back to a
  default when absent or malformed:
    order_id   -> "N/A"
    order_date -> "N/A"   (later rejected by Order.Date, order skipped)
    amounts    -> 0

SEE ALSO:
  - simulator.go: Sorts and filters the parsed orders by date
*/
package cashback

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/warp/cashback-engine/generic"
)

// Missing is the sentinel for an unresolved id or date.
const Missing = "N/A"

const (
	recordOpen = "{:order_id"

	markerID     = ":order_id"
	markerDate   = ":order_date"
	markerSilver = ":silver_revenue"
	markerGold   = ":gold_revenue"
	markerPromo  = ":promo_amount"
)

// =============================================================================
// ORDER
// =============================================================================

// Order is one parsed purchase. Immutable once parsed.
type Order struct {
	ID            string
	DateText      string
	SilverRevenue decimal.Decimal
	GoldRevenue   decimal.Decimal
	PromoAmount   decimal.Decimal
}

// Date parses DateText. Orders whose date does not parse are not part of
// the customer's valid sequence.
func (o Order) Date() (generic.TimePoint, bool) {
	return generic.ParseDate(o.DateText)
}

// =============================================================================
// OPTIONAL FIELDS
// =============================================================================

type optional[T any] struct {
	value T
	ok    bool
}

func some[T any](v T) optional[T] { return optional[T]{value: v, ok: true} }

func (o optional[T]) orDefault(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// =============================================================================
// PARSER
// =============================================================================

// ParseOrderHistory extracts every sub-record from blob in source order.
func ParseOrderHistory(blob string) []Order {
	var orders []Order
	rest := blob
	for {
		start := strings.Index(rest, recordOpen)
		if start < 0 {
			return orders
		}
		body := rest[start+1:]
		end := strings.IndexByte(body, '}')
		if end < 0 {
			return orders
		}
		if end == len(markerID) {
			// "{:order_id}" carries nothing; look for the next opening.
			rest = body
			continue
		}
		orders = append(orders, parseRecord(body[:end]))
		rest = body[end+1:]
	}
}

func parseRecord(body string) Order {
	return Order{
		ID:            field(body, markerID, readID).orDefault(Missing),
		DateText:      field(body, markerDate, readDate).orDefault(Missing),
		SilverRevenue: field(body, markerSilver, readNumber).orDefault(decimal.Zero),
		GoldRevenue:   field(body, markerGold, readNumber).orDefault(decimal.Zero),
		PromoAmount:   field(body, markerPromo, readNumber).orDefault(decimal.Zero),
	}
}

// field finds the first occurrence of marker whose value reads cleanly.
func field[T any](body, marker string, read func(string) (T, bool)) optional[T] {
	from := 0
	for {
		i := strings.Index(body[from:], marker)
		if i < 0 {
			return optional[T]{}
		}
		pos := from + i + len(marker)
		from = pos
		value, ok := skipSpace(body[pos:])
		if !ok {
			continue
		}
		if v, ok := read(value); ok {
			return some(v)
		}
	}
}

// skipSpace requires at least one whitespace rune and drops all of them.
func skipSpace(s string) (string, bool) {
	trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
	return trimmed, len(trimmed) < len(s)
}

func isQuote(b byte) bool { return b == '"' || b == '\'' }

func readID(s string) (string, bool) {
	if s != "" && isQuote(s[0]) {
		s = s[1:]
	}
	n := 0
	for n < len(s) && isIDByte(s[n]) {
		n++
	}
	if n == 0 {
		return "", false
	}
	return s[:n], true
}

func isIDByte(b byte) bool {
	return b == '#' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func readDate(s string) (string, bool) {
	if !strings.HasPrefix(s, "#t") {
		return "", false
	}
	s, ok := skipSpace(s[len("#t"):])
	if !ok || s == "" || !isQuote(s[0]) {
		return "", false
	}
	s = s[1:]
	end := strings.IndexAny(s, `"'`)
	if end <= 0 {
		return "", false
	}
	return s[:end], true
}

func readNumber(s string) (decimal.Decimal, bool) {
	n := 0
	for n < len(s) && (isDigit(s[n]) || s[n] == ',') {
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	if n < len(s) && s[n] == '.' {
		n++
		for n < len(s) && isDigit(s[n]) {
			n++
		}
	}
	digits := strings.TrimSuffix(strings.ReplaceAll(s[:n], ",", ""), ".")
	if digits == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
