package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentBilling)

	logger.InfoContext(context.Background(), "handled", FieldUser, "42")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec[FieldComponent] != ComponentBilling {
		t.Errorf("component = %v", rec[FieldComponent])
	}
	if rec[FieldUser] != "42" {
		t.Errorf("user = %v", rec[FieldUser])
	}
}

func TestStructuredLogger_LogCalculationConfirmed(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogCalculationConfirmed(context.Background(), core.ConfirmedCalculation{
		ID:   7,
		User: "42",
		Calculation: core.Calculation{
			Period: core.Period{Year: 2024, Month: 12},
			Total:  decimal.RequireFromString("1853.928"),
			Items:  []core.LineItem{{Category: core.Water}},
		},
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec[FieldPeriod] != "2024-12" || rec[FieldTotal] != "1853.928" || rec[FieldCalculationID] != float64(7) {
		t.Errorf("record = %v", rec)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q", got.Component())
	}

	logger := New(DefaultConfig()).WithComponent(ComponentWorker)
	if got := FromContext(NewContext(context.Background(), logger)); got != logger {
		t.Error("expected the stored logger")
	}
}

func TestLogFields_WithErrorSkipsNil(t *testing.T) {
	f := NewFields().WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not be recorded")
	}
	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Errorf("error = %v", f[FieldError])
	}
}
