package memory

import (
	"context"
	"fmt"
	"sync"

	"meterbot/internal/core"
	ports "meterbot/internal/sheets"
)

// Store is an in-memory spreadsheet. The export worker falls back to it when
// no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

var _ ports.CalculationWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendCalculation stores the rows and returns a synthetic range reference.
func (s *Store) AppendCalculation(_ context.Context, calc core.ConfirmedCalculation) (string, error) {
	if len(calc.Items) == 0 {
		return "", fmt.Errorf("calculation %d has no items", calc.ID)
	}
	rows := ports.Rows(calc)

	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of every row written so far.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
