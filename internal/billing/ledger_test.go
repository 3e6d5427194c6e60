package billing

import (
	"testing"

	"meterbot/internal/core"
)

func TestCalculationLedger_EvictsOldest(t *testing.T) {
	l := NewCalculationLedger(0)
	p := core.Period{Year: 2024, Month: 12}

	for i := 0; i < 7; i++ {
		l.Record(alice, core.Calculation{Period: p})
		p = p.Next()
	}

	if got := l.Len(alice); got != DefaultLedgerLimit {
		t.Fatalf("Len = %d, want %d", got, DefaultLedgerLimit)
	}
	recent := l.Recent(alice)
	if recent[0].Period != (core.Period{Year: 2025, Month: 6}) {
		t.Errorf("newest = %v", recent[0].Period)
	}
	if recent[4].Period != (core.Period{Year: 2025, Month: 2}) {
		t.Errorf("oldest kept = %v", recent[4].Period)
	}
	if len(l.Recent("bob")) != 0 {
		t.Error("ledgers are per user")
	}
}

func TestCalculationLedger_CustomLimit(t *testing.T) {
	l := NewCalculationLedger(2)
	for _, m := range []int{1, 2, 3} {
		l.Record(alice, core.Calculation{Period: core.Period{Year: 2025, Month: m}})
	}
	recent := l.Recent(alice)
	if len(recent) != 2 || recent[0].Period.Month != 3 || recent[1].Period.Month != 2 {
		t.Errorf("Recent = %+v", recent)
	}
}

func TestCalculationLedger_LimitCappedAtFive(t *testing.T) {
	l := NewCalculationLedger(100)
	p := core.Period{Year: 2024, Month: 1}
	for i := 0; i < 8; i++ {
		l.Record(alice, core.Calculation{Period: p})
		p = p.Next()
	}
	if got := l.Len(alice); got != DefaultLedgerLimit {
		t.Errorf("Len = %d, want %d", got, DefaultLedgerLimit)
	}
}
