/*
Package factory provides JSON/YAML to Go program conversion and dataset loading.

PURPOSE:
  Converts program definitions (brackets, tiers, expiry window) into
  cashback.Program values, and customer CSV exports into the row table
  the engine consumes. Analysts can edit a program file and re-run a
  simulation without touching code.

JSON SCHEMA:
  {
    "name": "Default",
    "expiry_days": 180,
    "brackets": [
      {"min": 0,    "max": 5000},
      {"min": 5000, "max": null}
    ],
    "tiers": {
      "0-5000": {"silver_cashback_pct": 4, "gold_cashback_pct": 2, "redeem_pct": 20},
      "5000-∞": {"silver_cashback_pct": 5, "gold_cashback_pct": 3, "redeem_pct": 25}
    }
  }

  A null (or missing) max makes the bracket unbounded. A missing label is
  generated as "min-max" or "min-∞", and the tiers map is keyed by the
  final labels.

USAGE:
  factory := NewProgramFactory()
  program, err := factory.ParseProgram(jsonString)
  program, err := factory.ParseProgramYAML(yamlBytes)
  program, err := factory.LoadProgramFile("programs/summer.yaml")

  // Original screen defaults
  program := factory.DefaultProgram()

SEE ALSO:
  - cashback/program.go: Program type and Validate
  - dataset.go: CSV customer table loader
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/cashback-engine/cashback"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProgramJSON is the JSON/YAML representation of a program.
type ProgramJSON struct {
	ID         string              `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string              `json:"name" yaml:"name"`
	ExpiryDays int                 `json:"expiry_days" yaml:"expiry_days"`
	Brackets   []BracketJSON       `json:"brackets" yaml:"brackets"`
	Tiers      map[string]TierJSON `json:"tiers" yaml:"tiers"`
}

// BracketJSON represents one LTV bracket. Max nil means unbounded.
type BracketJSON struct {
	Min   float64  `json:"min" yaml:"min"`
	Max   *float64 `json:"max" yaml:"max"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// TierJSON holds the percentage rates of one bracket.
type TierJSON struct {
	SilverCashbackPct float64 `json:"silver_cashback_pct" yaml:"silver_cashback_pct"`
	GoldCashbackPct   float64 `json:"gold_cashback_pct" yaml:"gold_cashback_pct"`
	RedeemPct         float64 `json:"redeem_pct" yaml:"redeem_pct"`
}

// =============================================================================
// PROGRAM FACTORY
// =============================================================================

// ProgramFactory converts program definitions to cashback.Program.
type ProgramFactory struct{}

func NewProgramFactory() *ProgramFactory {
	return &ProgramFactory{}
}

// ParseProgram parses and validates a JSON program definition.
func (f *ProgramFactory) ParseProgram(jsonStr string) (cashback.Program, error) {
	var pj ProgramJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return cashback.Program{}, fmt.Errorf("failed to parse program JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// ParseProgramYAML parses and validates a YAML program definition.
func (f *ProgramFactory) ParseProgramYAML(data []byte) (cashback.Program, error) {
	var pj ProgramJSON
	if err := yaml.Unmarshal(data, &pj); err != nil {
		return cashback.Program{}, fmt.Errorf("failed to parse program YAML: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadProgramFile reads a program from disk. Files ending in .yaml or .yml
// are read as YAML, everything else as JSON.
func (f *ProgramFactory) LoadProgramFile(path string) (cashback.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cashback.Program{}, fmt.Errorf("read program file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseProgramYAML(data)
	default:
		return f.ParseProgram(string(data))
	}
}

// FromJSON converts ProgramJSON to a validated cashback.Program.
func (f *ProgramFactory) FromJSON(pj ProgramJSON) (cashback.Program, error) {
	program := cashback.Program{
		Name:       pj.Name,
		ExpiryDays: pj.ExpiryDays,
		Brackets:   make([]cashback.Bracket, 0, len(pj.Brackets)),
		Tiers:      make(map[string]cashback.Tier, len(pj.Tiers)),
	}

	for _, bj := range pj.Brackets {
		program.Brackets = append(program.Brackets, parseBracket(bj))
	}
	for label, tj := range pj.Tiers {
		program.Tiers[label] = cashback.NewTier(tj.SilverCashbackPct, tj.GoldCashbackPct, tj.RedeemPct)
	}

	if err := program.Validate(); err != nil {
		return cashback.Program{}, err
	}
	return program, nil
}

// ToJSON converts a Program back to its JSON representation. Labels are
// always written out.
func (f *ProgramFactory) ToJSON(program cashback.Program) ProgramJSON {
	pj := ProgramJSON{
		Name:       program.Name,
		ExpiryDays: program.ExpiryDays,
		Brackets:   make([]BracketJSON, 0, len(program.Brackets)),
		Tiers:      make(map[string]TierJSON, len(program.Tiers)),
	}

	for _, b := range program.Brackets {
		bj := BracketJSON{Min: b.Min.InexactFloat64(), Label: b.Label}
		if !b.IsUnbounded() {
			max := b.Max.Decimal.InexactFloat64()
			bj.Max = &max
		}
		pj.Brackets = append(pj.Brackets, bj)
	}
	for label, t := range program.Tiers {
		pj.Tiers[label] = TierJSON{
			SilverCashbackPct: t.SilverCashbackPct.InexactFloat64(),
			GoldCashbackPct:   t.GoldCashbackPct.InexactFloat64(),
			RedeemPct:         t.RedeemPct.InexactFloat64(),
		}
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseBracket(bj BracketJSON) cashback.Bracket {
	b := cashback.Bracket{Min: decimal.NewFromFloat(bj.Min), Label: strings.TrimSpace(bj.Label)}
	if bj.Max != nil {
		b.Max = decimal.NewNullDecimal(decimal.NewFromFloat(*bj.Max))
	}
	if b.Label == "" {
		b.Label = b.DefaultLabel()
	}
	return b
}

// =============================================================================
// PRESET PROGRAMS
// =============================================================================

// DefaultBracketBounds are the bracket edges of the default program. The
// last bracket is open-ended.
var DefaultBracketBounds = []float64{0, 5000, 10000, 25000, 50000, 100000}

const (
	DefaultExpiryDays        = 180
	DefaultSilverCashbackPct = 4
	DefaultGoldCashbackPct   = 2
	DefaultRedeemPct         = 20
)

// DefaultProgramJSON returns the default program: six brackets from 0 to
// 100000+, every one at silver 4%, gold 2%, redeem 20%, 180-day expiry.
func DefaultProgramJSON() ProgramJSON {
	pj := ProgramJSON{
		Name:       "Default",
		ExpiryDays: DefaultExpiryDays,
		Tiers:      make(map[string]TierJSON, len(DefaultBracketBounds)),
	}
	for i, min := range DefaultBracketBounds {
		bj := BracketJSON{Min: min}
		if i+1 < len(DefaultBracketBounds) {
			max := DefaultBracketBounds[i+1]
			bj.Max = &max
		}
		bj.Label = parseBracket(bj).Label
		pj.Brackets = append(pj.Brackets, bj)
		pj.Tiers[bj.Label] = TierJSON{
			SilverCashbackPct: DefaultSilverCashbackPct,
			GoldCashbackPct:   DefaultGoldCashbackPct,
			RedeemPct:         DefaultRedeemPct,
		}
	}
	return pj
}

// DefaultProgram is DefaultProgramJSON converted to a Program.
func DefaultProgram() cashback.Program {
	program, err := NewProgramFactory().FromJSON(DefaultProgramJSON())
	if err != nil {
		panic(fmt.Sprintf("default program is invalid: %v", err))
	}
	return program
}
