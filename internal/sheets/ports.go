package sheets

import (
	"context"

	"meterbot/internal/core"
)

// Ports for outbound adapters.
type (
	// CalculationWriter appends a confirmed calculation to a spreadsheet,
	// one row per line item.
	CalculationWriter interface {
		AppendCalculation(ctx context.Context, calc core.ConfirmedCalculation) (rowRef string, err error)
	}
)
