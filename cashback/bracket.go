package cashback

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LTV BRACKET
// =============================================================================

// Bracket is one LTV tier range. An invalid Max means the bracket has no
// upper bound.
type Bracket struct {
	Min   decimal.Decimal
	Max   decimal.NullDecimal
	Label string
}

// NewBracket builds a bounded bracket labelled "min-max".
func NewBracket(min, max float64) Bracket {
	b := Bracket{
		Min: decimal.NewFromFloat(min),
		Max: decimal.NewNullDecimal(decimal.NewFromFloat(max)),
	}
	b.Label = b.DefaultLabel()
	return b
}

// NewOpenBracket builds an unbounded bracket labelled "min-∞".
func NewOpenBracket(min float64) Bracket {
	b := Bracket{Min: decimal.NewFromFloat(min)}
	b.Label = b.DefaultLabel()
	return b
}

func (b Bracket) IsUnbounded() bool { return !b.Max.Valid }

// DefaultLabel renders the bracket range the way the configuration screens
// name it when no label is given.
func (b Bracket) DefaultLabel() string {
	if b.IsUnbounded() {
		return b.Min.String() + "-∞"
	}
	return b.Min.String() + "-" + b.Max.Decimal.String()
}

// below reports whether value is strictly under the bracket's upper bound.
func (b Bracket) below(value decimal.Decimal) bool {
	return b.IsUnbounded() || b.Max.Decimal.GreaterThan(value)
}

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveBracket returns the label of the first bracket whose upper bound is
// strictly greater than value, or the last label if value clears them all.
//
// Brackets are scanned in the order given. Sorting and contiguity are the
// caller's job (see Program.Validate); an unsorted or gapped list resolves
// deterministically but not meaningfully. An empty list resolves to "".
func ResolveBracket(value decimal.Decimal, brackets []Bracket) string {
	if len(brackets) == 0 {
		return ""
	}
	for _, b := range brackets {
		if b.below(value) {
			return b.Label
		}
	}
	return brackets[len(brackets)-1].Label
}

// BracketRank returns the position of label in brackets, or -1.
func BracketRank(label string, brackets []Bracket) int {
	for i, b := range brackets {
		if b.Label == label {
			return i
		}
	}
	return -1
}
