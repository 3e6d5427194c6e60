package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"
)

type journal interface {
	SaveCalculation(ctx context.Context, user core.UserID, calc core.Calculation, next core.Period) (core.ConfirmedCalculation, error)
	ListCalculations(ctx context.Context) ([]core.ConfirmedCalculation, error)
	ListUserCalculations(ctx context.Context, user core.UserID, limit int) ([]core.ConfirmedCalculation, error)
	PendingExports(ctx context.Context, limit int) ([]core.ConfirmedCalculation, error)
	GetCalculation(ctx context.Context, id int64) (*core.ConfirmedCalculation, error)
	MarkExported(ctx context.Context, id int64, at time.Time) error
	LoadClock(ctx context.Context) (core.Period, bool, error)
	SaveClock(ctx context.Context, p core.Period) error
	Close() error
}

func newSQLite(t *testing.T) journal {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "meterbot.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newMemory(t *testing.T) journal {
	return NewMemoryJournal()
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleCalculation(p core.Period, water string) core.Calculation {
	cur := d(water)
	cons := cur.Sub(d("71"))
	cost := cons.Mul(d("205.992"))
	return core.Calculation{
		Period:    p,
		CreatedAt: time.Date(2024, 12, 20, 10, 30, 0, 123, time.UTC),
		Items: []core.LineItem{
			{Category: core.Water, Previous: d("71"), Current: cur, Consumption: cons, Rate: d("205.992"), Cost: cost},
			{Category: core.ElectricityDay, Previous: d("1234.5"), Current: d("1234.5"), Consumption: decimal.Zero, Rate: d("53.48"), Cost: decimal.Zero, Baseline: true},
		},
		Total: cost,
	}
}

func forEachJournal(t *testing.T, fn func(t *testing.T, j journal)) {
	for name, open := range map[string]func(*testing.T) journal{"sqlite": newSQLite, "memory": newMemory} {
		t.Run(name, func(t *testing.T) { fn(t, open(t)) })
	}
}

func TestJournal_SaveAndList(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j journal) {
		ctx := context.Background()
		dec24 := core.Period{Year: 2024, Month: 12}

		saved, err := j.SaveCalculation(ctx, "alice", sampleCalculation(dec24, "80"), dec24.Next())
		if err != nil {
			t.Fatalf("SaveCalculation: %v", err)
		}
		if saved.ID == 0 || saved.User != "alice" {
			t.Fatalf("saved = %+v", saved)
		}

		got, err := j.GetCalculation(ctx, saved.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Period != dec24 || !got.Total.Equal(d("1853.928")) {
			t.Errorf("calculation = %+v", got)
		}
		if !got.CreatedAt.Equal(sampleCalculation(dec24, "80").CreatedAt) {
			t.Errorf("created_at = %v", got.CreatedAt)
		}
		if len(got.Items) != 2 {
			t.Fatalf("items = %+v", got.Items)
		}
		if got.Items[0].Category != core.Water || !got.Items[0].Cost.Equal(d("1853.928")) {
			t.Errorf("first item = %+v", got.Items[0])
		}
		if !got.Items[1].Baseline || !got.Items[1].Current.Equal(d("1234.5")) {
			t.Errorf("baseline item = %+v", got.Items[1])
		}

		clock, ok, err := j.LoadClock(ctx)
		if err != nil || !ok || clock != (core.Period{Year: 2025, Month: 1}) {
			t.Errorf("clock = %v %v %v", clock, ok, err)
		}
	})
}

func TestJournal_RejectsDuplicatePeriod(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j journal) {
		ctx := context.Background()
		p := core.Period{Year: 2024, Month: 12}

		if _, err := j.SaveCalculation(ctx, "alice", sampleCalculation(p, "80"), p.Next()); err != nil {
			t.Fatal(err)
		}
		_, err := j.SaveCalculation(ctx, "alice", sampleCalculation(p, "90"), p.Next())
		if !errors.Is(err, core.ErrPeriodConfirmed) {
			t.Fatalf("err = %v, want ErrPeriodConfirmed", err)
		}
		if _, err := j.SaveCalculation(ctx, "bob", sampleCalculation(p, "90"), p.Next()); err != nil {
			t.Fatalf("another user may confirm the same period: %v", err)
		}

		all, err := j.ListCalculations(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 || all[0].User != "alice" || all[1].User != "bob" {
			t.Errorf("ListCalculations = %+v", all)
		}
	})
}

func TestJournal_ListUserCalculations(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j journal) {
		ctx := context.Background()
		p := core.Period{Year: 2024, Month: 12}
		for _, v := range []string{"72", "73", "74"} {
			if _, err := j.SaveCalculation(ctx, "alice", sampleCalculation(p, v), p.Next()); err != nil {
				t.Fatal(err)
			}
			p = p.Next()
		}
		if _, err := j.SaveCalculation(ctx, "bob", sampleCalculation(p, "99"), p.Next()); err != nil {
			t.Fatal(err)
		}

		recent, err := j.ListUserCalculations(ctx, "alice", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(recent) != 2 {
			t.Fatalf("got %d calculations", len(recent))
		}
		if !recent[0].Items[0].Current.Equal(d("74")) || !recent[1].Items[0].Current.Equal(d("73")) {
			t.Errorf("expected newest first, got %s, %s", recent[0].Items[0].Current, recent[1].Items[0].Current)
		}

		all, err := j.ListUserCalculations(ctx, "alice", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Errorf("unlimited list = %d entries", len(all))
		}
	})
}

func TestJournal_Exports(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j journal) {
		ctx := context.Background()
		p := core.Period{Year: 2024, Month: 12}
		first, err := j.SaveCalculation(ctx, "alice", sampleCalculation(p, "80"), p.Next())
		if err != nil {
			t.Fatal(err)
		}
		second, err := j.SaveCalculation(ctx, "alice", sampleCalculation(p.Next(), "85"), p.Next().Next())
		if err != nil {
			t.Fatal(err)
		}

		pending, err := j.PendingExports(ctx, 10)
		if err != nil || len(pending) != 2 || pending[0].ID != first.ID {
			t.Fatalf("pending = %+v, err = %v", pending, err)
		}

		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		if err := j.MarkExported(ctx, first.ID, at); err != nil {
			t.Fatal(err)
		}
		pending, err = j.PendingExports(ctx, 10)
		if err != nil || len(pending) != 1 || pending[0].ID != second.ID {
			t.Fatalf("pending after export = %+v, err = %v", pending, err)
		}

		got, err := j.GetCalculation(ctx, first.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Exported() || !got.ExportedAt.Equal(at) {
			t.Errorf("exported_at = %v", got.ExportedAt)
		}

		if err := j.MarkExported(ctx, 999, at); !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkExported(unknown) = %v", err)
		}
		if _, err := j.GetCalculation(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetCalculation(unknown) = %v", err)
		}
	})
}

func TestJournal_Clock(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j journal) {
		ctx := context.Background()
		if _, ok, err := j.LoadClock(ctx); err != nil || ok {
			t.Fatalf("empty journal should have no clock: ok=%v err=%v", ok, err)
		}
		want := core.Period{Year: 2025, Month: 7}
		if err := j.SaveClock(ctx, want); err != nil {
			t.Fatal(err)
		}
		if err := j.SaveClock(ctx, want.Next()); err != nil {
			t.Fatal(err)
		}
		got, ok, err := j.LoadClock(ctx)
		if err != nil || !ok || got != want.Next() {
			t.Errorf("clock = %v %v %v", got, ok, err)
		}
	})
}

func TestJournal_SaveCalculationNeverMovesClockBack(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j journal) {
		ctx := context.Background()
		dec := core.Period{Year: 2024, Month: 12}
		jan := dec.Next()

		// bob's January save commits before alice's December save
		if _, err := j.SaveCalculation(ctx, "bob", sampleCalculation(jan, "80"), jan.Next()); err != nil {
			t.Fatal(err)
		}
		if _, err := j.SaveCalculation(ctx, "alice", sampleCalculation(dec, "80"), jan); err != nil {
			t.Fatal(err)
		}

		got, ok, err := j.LoadClock(ctx)
		if err != nil || !ok || got != jan.Next() {
			t.Errorf("clock = %v %v %v, want %v", got, ok, err, jan.Next())
		}
	})
}

func TestSQLiteRepository_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meterbot.db")
	ctx := context.Background()
	p := core.Period{Year: 2024, Month: 12}

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.SaveCalculation(ctx, "alice", sampleCalculation(p, "80"), p.Next()); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	all, err := repo.ListCalculations(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("after reopen: %+v, %v", all, err)
	}
	version, dirty, err := MigrationVersion(path)
	if err != nil || dirty || version != 1 {
		t.Errorf("migration version = %d dirty=%v err=%v", version, dirty, err)
	}
}
