/*
program.go - Simulation configuration and its validation

PURPOSE:
  A Program is everything a simulation run needs besides the data:
  the LTV brackets, the rates of each bracket, and the expiry window.

CONFIGURATION CONTRACT:
  The simulator trusts the program. Brackets must be sorted ascending,
  start at zero, touch each other without gaps, and end with the only
  unbounded bracket. Every bracket label needs a tier.

  Validate checks exactly that contract. The core never calls it; the
  factory and the API call it before a program is accepted.

EXAMPLE:
  program := cashback.Program{
      Brackets: []cashback.Bracket{
          cashback.NewBracket(0, 5000),
          cashback.NewOpenBracket(5000),
      },
      Tiers: map[string]cashback.Tier{
          "0-5000": cashback.NewTier(4, 2, 20),
          "5000-∞": cashback.NewTier(5, 3, 25),
      },
      ExpiryDays: 180,
  }
  if err := program.Validate(); err != nil { ... }
*/
package cashback

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TIER
// =============================================================================

// Tier holds the percentage rates of one bracket. Values are not clamped.
type Tier struct {
	SilverCashbackPct decimal.Decimal
	GoldCashbackPct   decimal.Decimal
	RedeemPct         decimal.Decimal
}

func NewTier(silverPct, goldPct, redeemPct float64) Tier {
	return Tier{
		SilverCashbackPct: decimal.NewFromFloat(silverPct),
		GoldCashbackPct:   decimal.NewFromFloat(goldPct),
		RedeemPct:         decimal.NewFromFloat(redeemPct),
	}
}

// =============================================================================
// PROGRAM
// =============================================================================

type Program struct {
	Name       string
	Brackets   []Bracket
	Tiers      map[string]Tier
	ExpiryDays int
}

// TierFor returns the tier of label. Unknown labels price at zero rates.
func (p Program) TierFor(label string) Tier {
	if t, ok := p.Tiers[label]; ok {
		return t
	}
	return Tier{}
}

// Labels returns the bracket labels in configured order.
func (p Program) Labels() []string {
	labels := make([]string, len(p.Brackets))
	for i, b := range p.Brackets {
		labels[i] = b.Label
	}
	return labels
}

// =============================================================================
// VALIDATION
// =============================================================================

var (
	ErrNoBrackets       = errors.New("at least one bracket is required")
	ErrEmptyLabel       = errors.New("bracket label is empty")
	ErrDuplicateLabel   = errors.New("bracket label is not unique")
	ErrBracketBounds    = errors.New("bracket max must be greater than min")
	ErrFirstBracket     = errors.New("first bracket must start at 0")
	ErrBracketGap       = errors.New("bracket must start where the previous one ends")
	ErrUnboundedNotLast = errors.New("only the last bracket may be unbounded")
	ErrMissingTier      = errors.New("bracket has no tier")
	ErrNegativeExpiry   = errors.New("expiry days must not be negative")
)

// ProgramError locates a configuration violation.
type ProgramError struct {
	Index int // bracket position, -1 when not about a bracket
	Label string
	Err   error
}

func (e *ProgramError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid program: %v", e.Err)
	}
	return fmt.Sprintf("invalid program: bracket %d (%q): %v", e.Index, e.Label, e.Err)
}

func (e *ProgramError) Unwrap() []error {
	return []error{e.Err, generic.ErrInvalidProgram}
}

// Validate checks the bracket and tier contract the simulator relies on.
func (p Program) Validate() error {
	if p.ExpiryDays < 0 {
		return &ProgramError{Index: -1, Err: ErrNegativeExpiry}
	}
	if len(p.Brackets) == 0 {
		return &ProgramError{Index: -1, Err: ErrNoBrackets}
	}

	seen := make(map[string]bool, len(p.Brackets))
	last := len(p.Brackets) - 1
	for i, b := range p.Brackets {
		fail := func(err error) error { return &ProgramError{Index: i, Label: b.Label, Err: err} }

		switch {
		case b.Label == "":
			return fail(ErrEmptyLabel)
		case seen[b.Label]:
			return fail(ErrDuplicateLabel)
		case b.IsUnbounded() && i != last:
			return fail(ErrUnboundedNotLast)
		case !b.IsUnbounded() && !b.Max.Decimal.GreaterThan(b.Min):
			return fail(ErrBracketBounds)
		case i == 0 && !b.Min.IsZero():
			return fail(ErrFirstBracket)
		case i > 0 && !b.Min.Equal(p.Brackets[i-1].Max.Decimal):
			return fail(ErrBracketGap)
		}
		if _, ok := p.Tiers[b.Label]; !ok {
			return fail(ErrMissingTier)
		}
		seen[b.Label] = true
	}
	return nil
}
