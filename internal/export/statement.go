// Package export renders confirmed calculations as downloadable statements.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"meterbot/internal/core"
)

const (
	summarySheet = "summary"
	itemsSheet   = "items"
)

var itemsHeader = []string{
	"Period", "Category", "Previous", "Current", "Consumption", "Unit", "Rate", "Cost", "Baseline",
}

// BuildStatementXLSX renders a user's confirmed calculations as a workbook
// with a summary sheet and one items row per line item.
func BuildStatementXLSX(user core.UserID, calcs []core.ConfirmedCalculation, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("create items sheet: %w", err)
	}

	total := decimal.Zero
	for _, c := range calcs {
		total = total.Add(c.Total)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Utility Statement")
	_ = f.SetCellValue(summarySheet, "A3", "User")
	_ = f.SetCellValue(summarySheet, "B3", string(user))
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", generated.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Periods")
	_ = f.SetCellValue(summarySheet, "B5", len(calcs))
	_ = f.SetCellValue(summarySheet, "A6", "Total")
	_ = f.SetCellValue(summarySheet, "B6", total.Round(2).InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A7", "Currency")
	_ = f.SetCellValue(summarySheet, "B7", core.Currency)

	_ = f.SetCellValue(summarySheet, "A9", "Period")
	_ = f.SetCellValue(summarySheet, "B9", "Total")
	for i, c := range calcs {
		row := i + 10
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), c.Period.String())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), c.Total.Round(2).InexactFloat64())
	}

	for i, h := range itemsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}
	row := 2
	for _, c := range calcs {
		for _, it := range c.Items {
			values := []any{
				c.Period.String(),
				string(it.Category),
				it.Previous.InexactFloat64(),
				it.Current.InexactFloat64(),
				it.Consumption.InexactFloat64(),
				it.Category.Unit(),
				it.Rate.InexactFloat64(),
				it.Cost.Round(2).InexactFloat64(),
				it.Baseline,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(itemsSheet, cell, v)
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
