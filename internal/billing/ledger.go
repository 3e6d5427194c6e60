package billing

import "meterbot/internal/core"

// DefaultLedgerLimit is how many calculations are kept per user. Larger
// limits are capped to it.
const DefaultLedgerLimit = 5

// CalculationLedger keeps the most recent calculations of each user.
type CalculationLedger struct {
	limit   int
	entries map[core.UserID][]core.Calculation
}

func NewCalculationLedger(limit int) *CalculationLedger {
	if limit <= 0 || limit > DefaultLedgerLimit {
		limit = DefaultLedgerLimit
	}
	return &CalculationLedger{
		limit:   limit,
		entries: make(map[core.UserID][]core.Calculation),
	}
}

// Record appends an entry and evicts the oldest ones beyond the limit.
func (l *CalculationLedger) Record(u core.UserID, c core.Calculation) {
	list := append(l.entries[u], c)
	if over := len(list) - l.limit; over > 0 {
		list = append([]core.Calculation(nil), list[over:]...)
	}
	l.entries[u] = list
}

// Recent returns the user's entries, most recent first.
func (l *CalculationLedger) Recent(u core.UserID) []core.Calculation {
	list := l.entries[u]
	out := make([]core.Calculation, len(list))
	for i, c := range list {
		out[len(list)-1-i] = c
	}
	return out
}

func (l *CalculationLedger) Len(u core.UserID) int {
	return len(l.entries[u])
}
