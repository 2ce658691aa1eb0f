package factory_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/factory"
	"github.com/warp/cashback-engine/generic"
)

const twoBracketJSON = `{
  "name": "Two brackets",
  "expiry_days": 90,
  "brackets": [
    {"min": 0, "max": 5000},
    {"min": 5000, "max": null}
  ],
  "tiers": {
    "0-5000": {"silver_cashback_pct": 4, "gold_cashback_pct": 2, "redeem_pct": 20},
    "5000-∞": {"silver_cashback_pct": 6.5, "gold_cashback_pct": 3, "redeem_pct": 30}
  }
}`

// =============================================================================
// JSON
// =============================================================================

func TestParseProgram_JSON(t *testing.T) {
	// GIVEN: A two-bracket definition without labels
	// WHEN: Parsing
	// THEN: Labels are generated and tiers attached by label

	program, err := factory.NewProgramFactory().ParseProgram(twoBracketJSON)

	require.NoError(t, err)
	assert.Equal(t, "Two brackets", program.Name)
	assert.Equal(t, 90, program.ExpiryDays)
	assert.Equal(t, []string{"0-5000", "5000-∞"}, program.Labels())
	assert.True(t, program.Brackets[1].IsUnbounded())
	assert.Equal(t, "6.5", program.TierFor("5000-∞").SilverCashbackPct.String())
}

func TestParseProgram_ExplicitLabels(t *testing.T) {
	jsonStr := `{
	  "expiry_days": 30,
	  "brackets": [{"min": 0, "max": 100, "label": "new"}, {"min": 100, "label": "loyal"}],
	  "tiers": {"new": {"silver_cashback_pct": 1}, "loyal": {"silver_cashback_pct": 2}}
	}`

	program, err := factory.NewProgramFactory().ParseProgram(jsonStr)

	require.NoError(t, err)
	assert.Equal(t, []string{"new", "loyal"}, program.Labels())
	assert.True(t, program.TierFor("loyal").RedeemPct.IsZero())
}

func TestParseProgram_Invalid(t *testing.T) {
	f := factory.NewProgramFactory()

	_, err := f.ParseProgram(`{not json`)
	assert.ErrorContains(t, err, "failed to parse program JSON")

	// Gap between brackets.
	_, err = f.ParseProgram(`{
	  "brackets": [{"min": 0, "max": 100}, {"min": 200}],
	  "tiers": {"0-100": {}, "200-∞": {}}
	}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cashback.ErrBracketGap))
	assert.True(t, generic.IsClientError(err))

	// Tier missing for a generated label.
	_, err = f.ParseProgram(`{"brackets": [{"min": 0}], "tiers": {}}`)
	assert.True(t, errors.Is(err, cashback.ErrMissingTier))
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewProgramFactory()
	program, err := f.ParseProgram(twoBracketJSON)
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(program))

	require.NoError(t, err)
	assert.Equal(t, program.Labels(), again.Labels())
	assert.Equal(t, program.ExpiryDays, again.ExpiryDays)
	for _, label := range program.Labels() {
		assert.True(t, program.TierFor(label).RedeemPct.Equal(again.TierFor(label).RedeemPct))
	}
}

// =============================================================================
// YAML
// =============================================================================

func TestParseProgramYAML(t *testing.T) {
	data := []byte(`
name: Summer
expiry_days: 60
brackets:
  - min: 0
    max: 1000
  - min: 1000
    max: null
tiers:
  "0-1000":
    silver_cashback_pct: 3
    gold_cashback_pct: 1
    redeem_pct: 10
  "1000-∞":
    silver_cashback_pct: 5
    gold_cashback_pct: 2
    redeem_pct: 25
`)

	program, err := factory.NewProgramFactory().ParseProgramYAML(data)

	require.NoError(t, err)
	assert.Equal(t, "Summer", program.Name)
	assert.Equal(t, []string{"0-1000", "1000-∞"}, program.Labels())
	assert.Equal(t, "25", program.TierFor("1000-∞").RedeemPct.String())
}

func TestLoadProgramFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "program.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(twoBracketJSON), 0o600))

	program, err := factory.NewProgramFactory().LoadProgramFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, program.Brackets, 2)

	_, err = factory.NewProgramFactory().LoadProgramFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read program file")
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefaultProgram(t *testing.T) {
	program := factory.DefaultProgram()

	require.NoError(t, program.Validate())
	assert.Equal(t, 180, program.ExpiryDays)
	assert.Equal(t, []string{
		"0-5000", "5000-10000", "10000-25000", "25000-50000", "50000-100000", "100000-∞",
	}, program.Labels())
	for _, label := range program.Labels() {
		tier := program.TierFor(label)
		assert.Equal(t, "4", tier.SilverCashbackPct.String(), label)
		assert.Equal(t, "2", tier.GoldCashbackPct.String(), label)
		assert.Equal(t, "20", tier.RedeemPct.String(), label)
	}
}

func TestDefaultProgramJSON_IsDecodable(t *testing.T) {
	pj := factory.DefaultProgramJSON()

	assert.Len(t, pj.Brackets, 6)
	assert.Nil(t, pj.Brackets[5].Max)
	assert.True(t, strings.HasSuffix(pj.Brackets[5].Label, "∞"))
}
