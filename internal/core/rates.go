package core

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Currency is the display currency of every cost.
const Currency = "драм"

var ErrIncompleteRates = errors.New("rate table is missing a category")

// RateTable maps every category to a unit price.
type RateTable struct {
	rates map[Category]decimal.Decimal
}

// Baselines holds the starting values of meters that always have a known
// initial reading.
type Baselines map[Category]decimal.Decimal

// DefaultRates returns the built-in tariff.
func DefaultRates() RateTable {
	return RateTable{rates: map[Category]decimal.Decimal{
		Water:            decimal.RequireFromString("205.992"),
		ElectricityDay:   decimal.RequireFromString("53.48"),
		ElectricityNight: decimal.RequireFromString("43.48"),
		Gas:              decimal.RequireFromString("143.7"),
	}}
}

// DefaultBaselines returns the seed readings for water and gas.
func DefaultBaselines() Baselines {
	return Baselines{
		Water: decimal.NewFromInt(71),
		Gas:   decimal.NewFromInt(1366),
	}
}

// NewRateTable builds a table that must cover every category.
func NewRateTable(rates map[Category]decimal.Decimal) (RateTable, error) {
	t := RateTable{rates: make(map[Category]decimal.Decimal, len(rates))}
	for _, c := range Categories() {
		r, ok := rates[c]
		if !ok {
			return RateTable{}, fmt.Errorf("%w: %s", ErrIncompleteRates, c)
		}
		if r.IsNegative() {
			return RateTable{}, fmt.Errorf("negative rate for %s: %s", c, r)
		}
		t.rates[c] = r
	}
	return t, nil
}

// Rate returns the unit price of c. The zero value falls back to the
// built-in tariff.
func (t RateTable) Rate(c Category) decimal.Decimal {
	if t.rates == nil {
		return DefaultRates().rates[c]
	}
	return t.rates[c]
}

// Baseline returns the seed reading of c, if it has one. Electricity never
// has a baseline.
func (b Baselines) Baseline(c Category) (decimal.Decimal, bool) {
	if c.IsElectricity() {
		return decimal.Zero, false
	}
	v, ok := b[c]
	return v, ok
}

type tariffFile struct {
	Rates     map[string]string `yaml:"rates"`
	Baselines map[string]string `yaml:"baselines"`
}

// LoadTariff reads rates and optional baselines from a YAML file:
//
//	rates:
//	  water: 205.992
//	  electricity_day: 53.48
//	  electricity_night: 43.48
//	  gas: 143.7
//	baselines:
//	  water: 71
//	  gas: 1366
//
// Baselines missing from the file keep their defaults.
func LoadTariff(path string) (RateTable, Baselines, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RateTable{}, nil, fmt.Errorf("read tariff file: %w", err)
	}

	var f tariffFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return RateTable{}, nil, fmt.Errorf("parse tariff file: %w", err)
	}

	rates, err := parseDecimalMap(f.Rates)
	if err != nil {
		return RateTable{}, nil, fmt.Errorf("rates: %w", err)
	}
	table, err := NewRateTable(rates)
	if err != nil {
		return RateTable{}, nil, err
	}

	baselines := DefaultBaselines()
	overrides, err := parseDecimalMap(f.Baselines)
	if err != nil {
		return RateTable{}, nil, fmt.Errorf("baselines: %w", err)
	}
	for c, v := range overrides {
		if c.IsElectricity() {
			return RateTable{}, nil, fmt.Errorf("baselines: %s cannot have a baseline", c)
		}
		baselines[c] = v
	}

	return table, baselines, nil
}

func parseDecimalMap(in map[string]string) (map[Category]decimal.Decimal, error) {
	out := make(map[Category]decimal.Decimal, len(in))
	for k, v := range in {
		c, err := ParseCategory(k)
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", k, v)
		}
		out[c] = d
	}
	return out, nil
}
