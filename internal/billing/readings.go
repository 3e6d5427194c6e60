package billing

import (
	"github.com/shopspring/decimal"

	"meterbot/internal/core"
)

// ReadingStore holds readings entered for the current, unconfirmed period
// and the category each user is currently asked to fill in.
type ReadingStore struct {
	pending  map[core.UserID]core.Readings
	awaiting map[core.UserID]core.Category
}

func NewReadingStore() *ReadingStore {
	return &ReadingStore{
		pending:  make(map[core.UserID]core.Readings),
		awaiting: make(map[core.UserID]core.Category),
	}
}

// Set stores a reading, replacing any earlier one for the same category.
func (s *ReadingStore) Set(u core.UserID, c core.Category, v decimal.Decimal) {
	r, ok := s.pending[u]
	if !ok {
		r = make(core.Readings)
		s.pending[u] = r
	}
	r[c] = v
}

// Pending returns a copy of the user's unconfirmed readings.
func (s *ReadingStore) Pending(u core.UserID) core.Readings {
	r, ok := s.pending[u]
	if !ok {
		return core.Readings{}
	}
	return r.Clone()
}

func (s *ReadingStore) Clear(u core.UserID) {
	delete(s.pending, u)
}

// Await marks c as the category waiting for a value. Only one category can
// be awaited per user.
func (s *ReadingStore) Await(u core.UserID, c core.Category) {
	s.awaiting[u] = c
}

func (s *ReadingStore) Awaiting(u core.UserID) (core.Category, bool) {
	c, ok := s.awaiting[u]
	return c, ok
}

func (s *ReadingStore) StopAwaiting(u core.UserID) {
	delete(s.awaiting, u)
}
