package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"
)

type confirmedPeriod struct {
	period   core.Period
	readings core.Readings
}

// ConfirmedHistory archives the readings accepted by each calculation and
// resolves the previous reading of a meter.
type ConfirmedHistory struct {
	baselines core.Baselines
	byUser    map[core.UserID][]confirmedPeriod
}

func NewConfirmedHistory(baselines core.Baselines) *ConfirmedHistory {
	if baselines == nil {
		baselines = core.DefaultBaselines()
	}
	return &ConfirmedHistory{
		baselines: baselines,
		byUser:    make(map[core.UserID][]confirmedPeriod),
	}
}

// Previous returns the most recently confirmed reading of c. Water and gas
// fall back to their baseline; electricity reports false until its first
// reading is confirmed.
func (h *ConfirmedHistory) Previous(u core.UserID, c core.Category) (decimal.Decimal, bool) {
	periods := h.byUser[u]
	for i := len(periods) - 1; i >= 0; i-- {
		if v, ok := periods[i].readings[c]; ok {
			return v, true
		}
	}
	return h.baselines.Baseline(c)
}

// Has reports whether the user already confirmed p.
func (h *ConfirmedHistory) Has(u core.UserID, p core.Period) bool {
	for _, cp := range h.byUser[u] {
		if cp.period == p {
			return true
		}
	}
	return false
}

// Confirm archives a snapshot of readings under p. Confirming the same
// period twice is refused.
func (h *ConfirmedHistory) Confirm(u core.UserID, p core.Period, r core.Readings) error {
	if h.Has(u, p) {
		return fmt.Errorf("%w: %s", core.ErrPeriodConfirmed, p.Label())
	}
	h.byUser[u] = append(h.byUser[u], confirmedPeriod{period: p, readings: r.Clone()})
	return nil
}

// Periods returns the confirmed periods of a user in insertion order.
func (h *ConfirmedHistory) Periods(u core.UserID) []core.Period {
	out := make([]core.Period, 0, len(h.byUser[u]))
	for _, cp := range h.byUser[u] {
		out = append(out, cp.period)
	}
	return out
}
