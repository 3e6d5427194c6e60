package billing

import (
	"errors"
	"testing"

	"meterbot/internal/core"
)

func TestConfirmedHistory_Previous(t *testing.T) {
	h := NewConfirmedHistory(nil)
	dec1 := core.Period{Year: 2024, Month: 12}
	jan := core.Period{Year: 2025, Month: 1}

	if err := h.Confirm(alice, dec1, core.Readings{core.Water: dec("80"), core.ElectricityDay: dec("1000")}); err != nil {
		t.Fatal(err)
	}
	if err := h.Confirm(alice, jan, core.Readings{core.Water: dec("88")}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		user   core.UserID
		cat    core.Category
		want   string
		wantOK bool
	}{
		{name: "latest confirmed", user: alice, cat: core.Water, want: "88", wantOK: true},
		{name: "skips periods without the category", user: alice, cat: core.ElectricityDay, want: "1000", wantOK: true},
		{name: "gas falls back to baseline", user: alice, cat: core.Gas, want: "1366", wantOK: true},
		{name: "electricity without history", user: alice, cat: core.ElectricityNight, wantOK: false},
		{name: "other user uses baseline", user: "bob", cat: core.Water, want: "71", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.Previous(tt.user, tt.cat)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(dec(tt.want)) {
				t.Errorf("Previous = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfirmedHistory_ConfirmRejectsDuplicatePeriod(t *testing.T) {
	h := NewConfirmedHistory(nil)
	p := core.Period{Year: 2024, Month: 12}

	if err := h.Confirm(alice, p, core.Readings{core.Water: dec("80")}); err != nil {
		t.Fatal(err)
	}
	err := h.Confirm(alice, p, core.Readings{core.Water: dec("90")})
	if !errors.Is(err, core.ErrPeriodConfirmed) {
		t.Fatalf("err = %v, want ErrPeriodConfirmed", err)
	}
	if v, _ := h.Previous(alice, core.Water); !v.Equal(dec("80")) {
		t.Errorf("refused confirmation must not change history, got %s", v)
	}
	if err := h.Confirm("bob", p, core.Readings{core.Water: dec("90")}); err != nil {
		t.Errorf("periods are per user: %v", err)
	}
}

func TestConfirmedHistory_SnapshotIsCopied(t *testing.T) {
	h := NewConfirmedHistory(nil)
	r := core.Readings{core.Water: dec("80")}
	if err := h.Confirm(alice, core.Period{Year: 2024, Month: 12}, r); err != nil {
		t.Fatal(err)
	}
	r[core.Water] = dec("1")

	if v, _ := h.Previous(alice, core.Water); !v.Equal(dec("80")) {
		t.Errorf("history must not alias the caller's map, got %s", v)
	}
}

func TestReadingStore(t *testing.T) {
	s := NewReadingStore()
	s.Set(alice, core.Water, dec("80"))
	s.Set(alice, core.Water, dec("81"))
	s.Set(alice, core.Gas, dec("1400"))

	p := s.Pending(alice)
	if len(p) != 2 || !p[core.Water].Equal(dec("81")) {
		t.Fatalf("Pending = %v", p)
	}
	p[core.Water] = dec("0")
	if !s.Pending(alice)[core.Water].Equal(dec("81")) {
		t.Error("Pending must return a copy")
	}

	s.Await(alice, core.Gas)
	s.Await(alice, core.Water)
	if c, ok := s.Awaiting(alice); !ok || c != core.Water {
		t.Errorf("Awaiting = %v %v", c, ok)
	}
	s.StopAwaiting(alice)
	if _, ok := s.Awaiting(alice); ok {
		t.Error("expected idle")
	}

	s.Clear(alice)
	if len(s.Pending(alice)) != 0 {
		t.Error("Clear should drop pending readings")
	}
}
