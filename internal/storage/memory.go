package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meterbot/internal/core"
)

// MemoryJournal keeps the journal in process memory. It backs the memory
// data backend and tests.
type MemoryJournal struct {
	mu       sync.RWMutex
	calcs    []core.ConfirmedCalculation
	clock    core.Period
	hasClock bool
	nextID   int64
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextID: 1}
}

func (m *MemoryJournal) SaveCalculation(_ context.Context, user core.UserID, calc core.Calculation, next core.Period) (core.ConfirmedCalculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.calcs {
		if c.User == user && c.Period == calc.Period {
			return core.ConfirmedCalculation{}, fmt.Errorf("%w: %s", core.ErrPeriodConfirmed, calc.Period)
		}
	}

	calc.Items = append([]core.LineItem(nil), calc.Items...)
	cc := core.ConfirmedCalculation{ID: m.nextID, User: user, Calculation: calc}
	m.nextID++
	m.calcs = append(m.calcs, cc)
	if !m.hasClock || m.clock.Before(next) {
		m.clock, m.hasClock = next, true
	}
	return cc, nil
}

func (m *MemoryJournal) ListCalculations(_ context.Context) ([]core.ConfirmedCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.ConfirmedCalculation(nil), m.calcs...), nil
}

func (m *MemoryJournal) ListUserCalculations(_ context.Context, user core.UserID, limit int) ([]core.ConfirmedCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.ConfirmedCalculation
	for i := len(m.calcs) - 1; i >= 0; i-- {
		if m.calcs[i].User != user {
			continue
		}
		out = append(out, m.calcs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryJournal) PendingExports(_ context.Context, limit int) ([]core.ConfirmedCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.ConfirmedCalculation
	for _, c := range m.calcs {
		if c.Exported() {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryJournal) GetCalculation(_ context.Context, id int64) (*core.ConfirmedCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.calcs {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
}

func (m *MemoryJournal) MarkExported(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.calcs {
		if m.calcs[i].ID == id {
			m.calcs[i].ExportedAt = at
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrNotFound, id)
}

func (m *MemoryJournal) LoadClock(_ context.Context) (core.Period, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock, m.hasClock, nil
}

func (m *MemoryJournal) SaveClock(_ context.Context, p core.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock, m.hasClock = p, true
	return nil
}

func (m *MemoryJournal) Ping(context.Context) error { return nil }

func (m *MemoryJournal) Close() error { return nil }
