package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxReading is the largest meter value accepted from a user.
var MaxReading = decimal.NewFromInt(99999)

// User-correctable conditions reported by the billing engine.
var (
	ErrInvalidFormat       = errors.New("reading is not a number")
	ErrOutOfRange          = errors.New("reading is out of range")
	ErrNegativeReading     = fmt.Errorf("reading is negative: %w", ErrOutOfRange)
	ErrReadingTooLarge     = fmt.Errorf("reading exceeds %s: %w", MaxReading, ErrOutOfRange)
	ErrNegativeConsumption = errors.New("reading is below the previous reading")
	ErrNoReadings          = errors.New("no pending readings")
	ErrEmptyHistory        = errors.New("no calculations recorded")
	ErrPeriodConfirmed     = errors.New("period already confirmed")
)

// ParseReading parses a meter value typed by a user. Both "12.5" and "12,5"
// are accepted.
func ParseReading(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, ErrInvalidFormat
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidFormat
	}
	if v.IsNegative() {
		return decimal.Zero, ErrNegativeReading
	}
	if v.GreaterThan(MaxReading) {
		return decimal.Zero, ErrReadingTooLarge
	}
	return v, nil
}
