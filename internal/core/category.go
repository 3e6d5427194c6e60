package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Water            Category = "water"
	ElectricityDay   Category = "electricity_day"
	ElectricityNight Category = "electricity_night"
	Gas              Category = "gas"
)

type (
	// Category is a metered utility.
	Category string

	// UserID identifies the owner of a chat session.
	UserID string

	// Readings maps a category to a meter value.
	Readings map[Category]decimal.Decimal
)

var ErrUnknownCategory = errors.New("unknown utility category")

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{Water, ElectricityDay, ElectricityNight, Gas}
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case Water, ElectricityDay, ElectricityNight, Gas:
		return true
	default:
		return false
	}
}

// IsElectricity reports whether the meter may have been installed without a
// known starting value.
func (c Category) IsElectricity() bool {
	return c == ElectricityDay || c == ElectricityNight
}

// Unit returns the billing unit of the category.
func (c Category) Unit() string {
	if c.IsElectricity() {
		return "кВт"
	}
	return "м3"
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a stored or configured key into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Clone returns an independent copy of the readings.
func (r Readings) Clone() Readings {
	out := make(Readings, len(r))
	for c, v := range r {
		out[c] = v
	}
	return out
}

// Ordered returns the categories present in r, in display order.
func (r Readings) Ordered() []Category {
	out := make([]Category, 0, len(r))
	for _, c := range Categories() {
		if _, ok := r[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
