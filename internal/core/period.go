package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Period is a monthly billing cycle.
type Period struct {
	Year  int
	Month int // 1-12
}

var ErrInvalidPeriod = errors.New("invalid period")

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// NewPeriod builds a validated period.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod parses the "YYYY-MM" form used in configuration.
func ParsePeriod(s string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: %q, want YYYY-MM", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, parts[0])
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, parts[1])
	}
	return NewPeriod(year, month)
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Next returns the following month, wrapping December into January.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Before orders periods by year, then month.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// MonthName returns the Russian month name.
func (p Period) MonthName() string {
	if p.Month < 1 || p.Month > 12 {
		return ""
	}
	return monthNames[p.Month-1]
}

// Label is the display form, e.g. "Декабрь 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.MonthName(), p.Year)
}

// String returns the "YYYY-MM" form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// MonthClock tracks the current billing period. It is not safe for
// concurrent use; the billing engine serializes access to it.
type MonthClock struct {
	current Period
}

func NewMonthClock(start Period) *MonthClock {
	return &MonthClock{current: start}
}

func (c *MonthClock) Current() Period {
	return c.current
}

// PreviousLabel returns the label of the month before the current one.
func (c *MonthClock) PreviousLabel() string {
	return c.current.Prev().Label()
}

// Advance moves the clock forward by exactly one month.
func (c *MonthClock) Advance() {
	c.current = c.current.Next()
}

// Reset moves the clock to p. Used when restoring persisted state.
func (c *MonthClock) Reset(p Period) {
	c.current = p
}
