package billing

import (
	"errors"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"
)

// OutcomeKind tags the result of an action.
type OutcomeKind int

const (
	KindUnknown OutcomeKind = iota
	KindPrompt
	KindAccepted
	KindRejected
	KindBreakdown
	KindHistory
	KindEmpty
	KindWelcome
	KindHelp
)

var kindNames = map[OutcomeKind]string{
	KindUnknown:   "unknown",
	KindPrompt:    "prompt",
	KindAccepted:  "accepted",
	KindRejected:  "rejected",
	KindBreakdown: "breakdown",
	KindHistory:   "history",
	KindEmpty:     "empty",
	KindWelcome:   "welcome",
	KindHelp:      "help",
}

func (k OutcomeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Reason classifies a Rejected or Empty outcome.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidFormat
	ReasonOutOfRange
	ReasonNegativeConsumption
	ReasonNoReadings
	ReasonEmptyHistory
	ReasonPeriodConfirmed
)

var reasonNames = map[Reason]string{
	ReasonNone:                "none",
	ReasonInvalidFormat:       "invalid_format",
	ReasonOutOfRange:          "out_of_range",
	ReasonNegativeConsumption: "negative_consumption",
	ReasonNoReadings:          "no_readings",
	ReasonEmptyHistory:        "empty_history",
	ReasonPeriodConfirmed:     "period_confirmed",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "none"
}

// ReasonOf maps a domain error onto its reason.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, core.ErrInvalidFormat):
		return ReasonInvalidFormat
	case errors.Is(err, core.ErrOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, core.ErrNegativeConsumption):
		return ReasonNegativeConsumption
	case errors.Is(err, core.ErrNoReadings):
		return ReasonNoReadings
	case errors.Is(err, core.ErrEmptyHistory):
		return ReasonEmptyHistory
	case errors.Is(err, core.ErrPeriodConfirmed):
		return ReasonPeriodConfirmed
	default:
		return ReasonNone
	}
}

// Outcome is the tagged result of Engine.Handle. Which fields are set
// depends on Kind:
//
//	KindPrompt     Category, Period, Previous, HasPrevious
//	KindAccepted   Category, Period, Value, Previous, HasPrevious,
//	               Billable, Consumption, Cost
//	KindRejected   Reason, Err, Category (when awaiting a value),
//	               Period (for ReasonPeriodConfirmed)
//	KindBreakdown  Period, Calculation, Final
//	KindHistory    History (most recent first)
//	KindEmpty      Reason, Err
//	KindWelcome    Period, Rates, Baselines
//	KindHelp       Period, Rates
type Outcome struct {
	Kind   OutcomeKind
	Reason Reason
	Err    error

	Category    core.Category
	Period      core.Period
	Value       decimal.Decimal
	Previous    decimal.Decimal
	HasPrevious bool
	Billable    bool
	Consumption decimal.Decimal
	Cost        decimal.Decimal

	Calculation core.Calculation
	// Final is set when the breakdown was confirmed by a calculation
	// rather than shown as a preview.
	Final bool

	History []core.Calculation

	Rates     core.RateTable
	Baselines core.Baselines
}

func rejected(err error, c core.Category) Outcome {
	return Outcome{Kind: KindRejected, Reason: ReasonOf(err), Err: err, Category: c}
}
