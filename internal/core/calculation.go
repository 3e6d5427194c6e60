package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// LineItem is the billing result of one category in one period.
	LineItem struct {
		Category    Category
		Previous    decimal.Decimal
		Current     decimal.Decimal
		Consumption decimal.Decimal
		Rate        decimal.Decimal
		Cost        decimal.Decimal
		// Baseline marks the first reading of a meter without history.
		// It establishes the starting point and is not billed.
		Baseline bool
	}

	// Calculation is an itemized bill for one period.
	Calculation struct {
		Period    Period
		CreatedAt time.Time
		Items     []LineItem
		Total     decimal.Decimal
	}

	// ConfirmedCalculation is a calculation as persisted in the journal.
	ConfirmedCalculation struct {
		ID   int64
		User UserID
		Calculation
		ExportedAt time.Time
	}
)

// Readings returns the meter values the calculation confirmed.
func (c Calculation) Readings() Readings {
	out := make(Readings, len(c.Items))
	for _, it := range c.Items {
		out[it.Category] = it.Current
	}
	return out
}

// Consumption returns the billed consumption per category.
func (c Calculation) Consumption() map[Category]decimal.Decimal {
	out := make(map[Category]decimal.Decimal, len(c.Items))
	for _, it := range c.Items {
		out[it.Category] = it.Consumption
	}
	return out
}

// Exported reports whether the calculation has been delivered downstream.
func (c ConfirmedCalculation) Exported() bool {
	return !c.ExportedAt.IsZero()
}
