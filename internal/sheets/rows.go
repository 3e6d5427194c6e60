package sheets

import (
	"strconv"
	"strings"
	"time"

	"meterbot/internal/core"
)

// Header is the column layout written by every CalculationWriter.
var Header = []string{
	"Calculation", "User", "Period", "Month", "Category", "Previous", "Current",
	"Consumption", "Unit", "Rate", "Cost", "Baseline", "Total", "Confirmed at",
}

// Rows flattens a calculation into spreadsheet rows in Header order.
func Rows(calc core.ConfirmedCalculation) [][]string {
	rows := make([][]string, 0, len(calc.Items))
	for _, it := range calc.Items {
		rows = append(rows, []string{
			strconv.FormatInt(calc.ID, 10),
			textCell(string(calc.User)),
			calc.Period.String(),
			calc.Period.Label(),
			string(it.Category),
			it.Previous.String(),
			it.Current.String(),
			it.Consumption.String(),
			it.Category.Unit(),
			it.Rate.String(),
			it.Cost.StringFixed(2),
			strconv.FormatBool(it.Baseline),
			calc.Total.StringFixed(2),
			calc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

// textCell keeps free text from being read as a formula by spreadsheets
// that interpret input, such as Sheets with USER_ENTERED.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
