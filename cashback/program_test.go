package cashback_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

// twoBracketProgram: 0-1000 earns 4% silver, 1000-∞ earns 10% silver.
func twoBracketProgram() cashback.Program {
	return cashback.Program{
		Name: "two-bracket",
		Brackets: []cashback.Bracket{
			cashback.NewBracket(0, 1000),
			cashback.NewOpenBracket(1000),
		},
		Tiers: map[string]cashback.Tier{
			"0-1000": cashback.NewTier(4, 2, 20),
			"1000-∞": cashback.NewTier(10, 5, 50),
		},
		ExpiryDays: 180,
	}
}

// =============================================================================
// BRACKET RESOLVER
// =============================================================================

func TestResolveBracket(t *testing.T) {
	brackets := []cashback.Bracket{
		cashback.NewBracket(0, 5000),
		cashback.NewBracket(5000, 10000),
		cashback.NewOpenBracket(10000),
	}

	tests := []struct {
		value string
		want  string
	}{
		{"0", "0-5000"},
		{"4999.99", "0-5000"},
		{"5000", "5000-10000"},
		{"9999", "5000-10000"},
		{"10000", "10000-∞"},
		{"1000000", "10000-∞"},
		{"-250", "0-5000"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, cashback.ResolveBracket(dec(tt.value), brackets))
		})
	}
}

func TestResolveBracket_FallsBackToLastLabel(t *testing.T) {
	// GIVEN: Brackets that all have an upper bound
	// WHEN: Value clears every bound
	// THEN: The last label is returned

	brackets := []cashback.Bracket{cashback.NewBracket(0, 10), cashback.NewBracket(10, 20)}

	assert.Equal(t, "10-20", cashback.ResolveBracket(dec("500"), brackets))
	assert.Equal(t, "", cashback.ResolveBracket(dec("5"), nil), "no brackets")
}

func TestBracket_Labels(t *testing.T) {
	assert.Equal(t, "0-5000", cashback.NewBracket(0, 5000).Label)
	assert.Equal(t, "100000-∞", cashback.NewOpenBracket(100000).Label)
	assert.True(t, cashback.NewOpenBracket(5).IsUnbounded())

	brackets := twoBracketProgram().Brackets
	assert.Equal(t, 1, cashback.BracketRank("1000-∞", brackets))
	assert.Equal(t, -1, cashback.BracketRank("nope", brackets))
}

// =============================================================================
// PROGRAM VALIDATION
// =============================================================================

func TestProgram_Validate_OK(t *testing.T) {
	require.NoError(t, twoBracketProgram().Validate())
	assert.Equal(t, []string{"0-1000", "1000-∞"}, twoBracketProgram().Labels())
}

func TestProgram_Validate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *cashback.Program)
		want   error
	}{
		{"no brackets", func(p *cashback.Program) { p.Brackets = nil }, cashback.ErrNoBrackets},
		{"negative expiry", func(p *cashback.Program) { p.ExpiryDays = -1 }, cashback.ErrNegativeExpiry},
		{"empty label", func(p *cashback.Program) { p.Brackets[0].Label = "" }, cashback.ErrEmptyLabel},
		{"duplicate label", func(p *cashback.Program) { p.Brackets[1].Label = "0-1000" }, cashback.ErrDuplicateLabel},
		{"first not zero", func(p *cashback.Program) { p.Brackets[0].Min = decimal.NewFromInt(1) }, cashback.ErrFirstBracket},
		{"gap", func(p *cashback.Program) { p.Brackets[1].Min = decimal.NewFromInt(1200) }, cashback.ErrBracketGap},
		{"max not above min", func(p *cashback.Program) {
			p.Brackets[0].Max = decimal.NewNullDecimal(decimal.Zero)
		}, cashback.ErrBracketBounds},
		{"unbounded not last", func(p *cashback.Program) {
			p.Brackets[0].Max = decimal.NullDecimal{}
		}, cashback.ErrUnboundedNotLast},
		{"missing tier", func(p *cashback.Program) { delete(p.Tiers, "1000-∞") }, cashback.ErrMissingTier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := twoBracketProgram()
			tt.mutate(&p)

			err := p.Validate()

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, generic.ErrInvalidProgram))
			assert.True(t, generic.IsClientError(err))

			var pe *cashback.ProgramError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestProgram_TierFor_UnknownLabel(t *testing.T) {
	tier := twoBracketProgram().TierFor("missing")

	assert.True(t, tier.SilverCashbackPct.IsZero())
	assert.True(t, tier.GoldCashbackPct.IsZero())
	assert.True(t, tier.RedeemPct.IsZero())
}
