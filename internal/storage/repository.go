package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a calculation does not exist
var ErrNotFound = errors.New("calculation not found")

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the durable journal of confirmed calculations and the
// month clock.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveCalculation journals a confirmed calculation and moves the stored
// month clock forward to next, in one transaction. The clock never moves
// back, whatever order concurrent saves commit in. A second calculation for the
// same user and period fails with core.ErrPeriodConfirmed.
func (r *SQLiteRepository) SaveCalculation(ctx context.Context, user core.UserID, calc core.Calculation, next core.Period) (core.ConfirmedCalculation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ConfirmedCalculation{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM calculations WHERE user_id = ? AND period_year = ? AND period_month = ?`,
		string(user), calc.Period.Year, calc.Period.Month).Scan(&exists)
	if err != nil {
		return core.ConfirmedCalculation{}, fmt.Errorf("check period: %w", err)
	}
	if exists > 0 {
		return core.ConfirmedCalculation{}, fmt.Errorf("%w: %s", core.ErrPeriodConfirmed, calc.Period)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO calculations (user_id, period_year, period_month, total, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(user), calc.Period.Year, calc.Period.Month, calc.Total.String(), calc.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return core.ConfirmedCalculation{}, fmt.Errorf("insert calculation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ConfirmedCalculation{}, fmt.Errorf("calculation id: %w", err)
	}

	for i, it := range calc.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO calculation_items
				(calculation_id, position, category, previous_reading, current_reading, consumption, rate, cost, baseline)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, string(it.Category), it.Previous.String(), it.Current.String(),
			it.Consumption.String(), it.Rate.String(), it.Cost.String(), it.Baseline)
		if err != nil {
			return core.ConfirmedCalculation{}, fmt.Errorf("insert item %s: %w", it.Category, err)
		}
	}

	if err := advanceClock(ctx, tx, next); err != nil {
		return core.ConfirmedCalculation{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.ConfirmedCalculation{}, fmt.Errorf("commit calculation: %w", err)
	}

	slog.InfoContext(ctx, "Calculation saved to SQLite",
		"id", id,
		"user_id", user,
		"period", calc.Period.String(),
		"total", calc.Total.String(),
		"items", len(calc.Items))

	return core.ConfirmedCalculation{ID: id, User: user, Calculation: calc}, nil
}

// ListCalculations returns every journaled calculation in confirmation order
func (r *SQLiteRepository) ListCalculations(ctx context.Context) ([]core.ConfirmedCalculation, error) {
	return r.queryCalculations(ctx, `ORDER BY id ASC`)
}

// ListUserCalculations returns a user's calculations, most recent first.
// A non-positive limit returns all of them.
func (r *SQLiteRepository) ListUserCalculations(ctx context.Context, user core.UserID, limit int) ([]core.ConfirmedCalculation, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryCalculations(ctx, `WHERE user_id = ? ORDER BY id DESC LIMIT ?`, string(user), limit)
}

// PendingExports returns calculations not yet written to the spreadsheet,
// oldest first.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.ConfirmedCalculation, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryCalculations(ctx, `WHERE exported_at IS NULL ORDER BY id ASC LIMIT ?`, limit)
}

// GetCalculation loads one calculation with its items
func (r *SQLiteRepository) GetCalculation(ctx context.Context, id int64) (*core.ConfirmedCalculation, error) {
	calcs, err := r.queryCalculations(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(calcs) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return &calcs[0], nil
}

// MarkExported records that a calculation reached the spreadsheet
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calculations SET exported_at = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark calculation %d exported: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// LoadClock returns the stored billing period. ok is false when the journal
// has never stored one.
func (r *SQLiteRepository) LoadClock(ctx context.Context) (p core.Period, ok bool, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT period_year, period_month FROM billing_clock WHERE id = 1`).Scan(&p.Year, &p.Month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, false, nil
	}
	if err != nil {
		return core.Period{}, false, fmt.Errorf("load clock: %w", err)
	}
	return p, true, nil
}

// SaveClock stores the billing period
func (r *SQLiteRepository) SaveClock(ctx context.Context, p core.Period) error {
	return saveClock(ctx, r.db, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveClock(ctx context.Context, db execer, p core.Period) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO billing_clock (id, period_year, period_month, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET period_year = excluded.period_year,
			period_month = excluded.period_month, updated_at = excluded.updated_at`,
		p.Year, p.Month, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save clock: %w", err)
	}
	return nil
}

// advanceClock stores p unless the stored period is already later
func advanceClock(ctx context.Context, db execer, p core.Period) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO billing_clock (id, period_year, period_month, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET period_year = excluded.period_year,
			period_month = excluded.period_month, updated_at = excluded.updated_at
		WHERE (excluded.period_year, excluded.period_month) > (billing_clock.period_year, billing_clock.period_month)`,
		p.Year, p.Month, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("advance clock: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) queryCalculations(ctx context.Context, clause string, args ...any) ([]core.ConfirmedCalculation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, period_year, period_month, total, created_at, exported_at FROM calculations `+clause,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	var calcs []core.ConfirmedCalculation
	for rows.Next() {
		var (
			c         core.ConfirmedCalculation
			user      string
			total     string
			createdAt string
			exported  sql.NullString
		)
		if err := rows.Scan(&c.ID, &user, &c.Period.Year, &c.Period.Month, &total, &createdAt, &exported); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		c.User = core.UserID(user)
		if c.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("calculation %d total: %w", c.ID, err)
		}
		if c.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("calculation %d created_at: %w", c.ID, err)
		}
		if exported.Valid {
			if c.ExportedAt, err = time.Parse(timeLayout, exported.String); err != nil {
				return nil, fmt.Errorf("calculation %d exported_at: %w", c.ID, err)
			}
		}
		calcs = append(calcs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}
	rows.Close()

	if err := r.attachItems(ctx, calcs); err != nil {
		return nil, err
	}
	return calcs, nil
}

func (r *SQLiteRepository) attachItems(ctx context.Context, calcs []core.ConfirmedCalculation) error {
	if len(calcs) == 0 {
		return nil
	}

	index := make(map[int64]int, len(calcs))
	placeholders := make([]string, len(calcs))
	args := make([]any, len(calcs))
	for i, c := range calcs {
		index[c.ID] = i
		placeholders[i] = "?"
		args[i] = c.ID
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT calculation_id, category, previous_reading, current_reading, consumption, rate, cost, baseline
		FROM calculation_items WHERE calculation_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY calculation_id, position`, args...)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			category string
			values   [5]string
			item     core.LineItem
		)
		if err := rows.Scan(&id, &category, &values[0], &values[1], &values[2], &values[3], &values[4], &item.Baseline); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		if item.Category, err = core.ParseCategory(category); err != nil {
			return fmt.Errorf("calculation %d: %w", id, err)
		}
		targets := []*decimal.Decimal{&item.Previous, &item.Current, &item.Consumption, &item.Rate, &item.Cost}
		for i, v := range values {
			if *targets[i], err = decimal.NewFromString(v); err != nil {
				return fmt.Errorf("calculation %d item %s: %w", id, category, err)
			}
		}
		c := &calcs[index[id]]
		c.Items = append(c.Items, item)
	}
	return rows.Err()
}
