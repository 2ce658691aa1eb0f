/*
ledger.go - FIFO lot ledger with time-based expiry

PURPOSE:
  The LotLedger is the wallet of a single owner. Every credit becomes a
  lot stamped with the date it was earned. Redemptions drain lots
  oldest-first, and lots older than the expiry window disappear.

CRITICAL INVARIANTS:
  1. ORDERED: Lots are kept in EarnedAt order (insertion order, because
     callers credit in date order)
  2. NON-NEGATIVE: No lot balance ever goes below zero
  3. NO EMPTY LOTS: Zero-value credits are never stored; drained lots are removed
  4. SIMULATION TIME: Expiry is relative to the date passed in, never to now

EXPIRY RULE:
  A lot earned on day D with window W is usable on any day <= D+W and is
  removed on the first Expire call dated > D+W.

  Credit 40 on 2024-01-01, window 30:
    Expire(2024-01-31) -> lot kept   (30 days old)
    Expire(2024-02-01) -> lot gone   (31 days old)

FIFO EXAMPLE:
  Lots: [40 @ Jan 1, 25 @ Feb 1]
  Redeem(50) -> [15 @ Feb 1], returns 50

SEE ALSO:
  - types.go: Amount
  - time.go: DaysBetween
  - cashback/simulator.go: Drives one ledger per customer
*/
package generic

// =============================================================================
// LOT - One credit with its remaining balance
// =============================================================================

type Lot struct {
	Balance  Amount
	EarnedAt TimePoint
}

// =============================================================================
// LOT LEDGER
// =============================================================================

// LotLedger tracks expiring credits for one owner. The zero value is not
// usable; create ledgers with NewLotLedger. A LotLedger is not safe for
// concurrent use; each owner gets its own.
type LotLedger struct {
	unit Unit
	lots []Lot
}

func NewLotLedger(unit Unit) LotLedger {
	return LotLedger{unit: unit}
}

// Unit returns the unit every lot is measured in.
func (l *LotLedger) Unit() Unit { return l.unit }

// Expire removes every lot older than windowDays as of asOf and returns
// the total balance removed.
func (l *LotLedger) Expire(asOf TimePoint, windowDays int) Amount {
	expired := NewAmount(0, l.unit)
	kept := l.lots[:0]
	for _, lot := range l.lots {
		if DaysBetween(lot.EarnedAt, asOf) > windowDays {
			expired = expired.Add(lot.Balance)
			continue
		}
		kept = append(kept, lot)
	}
	// Clear the tail so dropped lots don't linger in the backing array.
	for i := len(kept); i < len(l.lots); i++ {
		l.lots[i] = Lot{}
	}
	l.lots = kept
	return expired
}

// Balance returns the sum of all remaining lots.
func (l *LotLedger) Balance() Amount {
	total := NewAmount(0, l.unit)
	for _, lot := range l.lots {
		total = total.Add(lot.Balance)
	}
	return total
}

// Redeem deducts amount oldest-first and returns what was actually deducted.
// The result equals amount whenever amount <= Balance().
func (l *LotLedger) Redeem(amount Amount) Amount {
	deducted := NewAmount(0, l.unit)
	remaining := amount
	for i := 0; i < len(l.lots) && remaining.IsPositive(); i++ {
		take := l.lots[i].Balance.Min(remaining)
		l.lots[i].Balance = l.lots[i].Balance.Sub(take)
		remaining = remaining.Sub(take)
		deducted = deducted.Add(take)
		if l.lots[i].Balance.IsPositive() {
			break
		}
	}
	// Leading lots that hit zero are gone.
	drained := 0
	for drained < len(l.lots) && !l.lots[drained].Balance.IsPositive() {
		drained++
	}
	l.lots = l.lots[drained:]
	return deducted
}

// Credit appends a lot earned at 'at'. Non-positive amounts are ignored.
func (l *LotLedger) Credit(amount Amount, at TimePoint) {
	if !amount.IsPositive() {
		return
	}
	l.lots = append(l.lots, Lot{Balance: NewAmountFromDecimal(amount.Value, l.unit), EarnedAt: at})
}

// Lots returns a copy of the remaining lots, oldest first.
func (l *LotLedger) Lots() []Lot {
	out := make([]Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Len returns the number of live lots.
func (l *LotLedger) Len() int { return len(l.lots) }

// Clone returns an independent copy of the ledger.
func (l *LotLedger) Clone() LotLedger {
	return LotLedger{unit: l.unit, lots: l.Lots()}
}
