package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"
	ports "meterbot/internal/sheets"
)

func TestStore_AppendCalculation(t *testing.T) {
	s := New()
	d := decimal.RequireFromString
	calc := core.ConfirmedCalculation{
		ID:   3,
		User: "42",
		Calculation: core.Calculation{
			Period:    core.Period{Year: 2025, Month: 1},
			CreatedAt: time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC),
			Items: []core.LineItem{
				{Category: core.ElectricityDay, Previous: d("1000"), Current: d("1100"), Consumption: d("100"), Rate: d("53.48"), Cost: d("5348")},
				{Category: core.ElectricityNight, Previous: d("500"), Current: d("500"), Consumption: d("0"), Rate: d("43.48"), Cost: d("0"), Baseline: true},
			},
			Total: d("5348"),
		},
	}

	ref, err := s.AppendCalculation(context.Background(), calc)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "mem:1-2" {
		t.Errorf("ref = %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 2 || len(rows[0]) != len(ports.Header) {
		t.Fatalf("rows = %v", rows)
	}
	want := []string{"3", "42", "2025-01", "Январь 2025", "electricity_day", "1000", "1100", "100", "кВт", "53.48", "5348.00", "false", "5348.00", "2025-01-31T08:00:00Z"}
	for i, v := range want {
		if rows[0][i] != v {
			t.Errorf("column %s = %q, want %q", ports.Header[i], rows[0][i], v)
		}
	}
	if rows[1][11] != "true" {
		t.Errorf("baseline flag = %q", rows[1][11])
	}

	if _, err := s.AppendCalculation(context.Background(), core.ConfirmedCalculation{ID: 4}); err == nil {
		t.Error("empty calculations must be refused")
	}
}
