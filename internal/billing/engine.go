package billing

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"meterbot/internal/core"
)

// Options configures an Engine. Zero values fall back to the built-in
// tariff, baselines and ledger size.
type Options struct {
	Start       core.Period
	Rates       core.RateTable
	Baselines   core.Baselines
	LedgerLimit int
	Now         func() time.Time
}

// Engine owns all billing state. The month clock is shared by every user,
// so all entry points run under a single lock.
type Engine struct {
	mu sync.Mutex

	clock     *core.MonthClock
	rates     core.RateTable
	baselines core.Baselines
	readings  *ReadingStore
	history   *ConfirmedHistory
	ledger    *CalculationLedger
	now       func() time.Time
}

// DefaultStart is the period a fresh engine starts in.
var DefaultStart = core.Period{Year: 2024, Month: 12}

func NewEngine(opts Options) *Engine {
	start := opts.Start
	if start.Validate() != nil {
		start = DefaultStart
	}
	baselines := opts.Baselines
	if baselines == nil {
		baselines = core.DefaultBaselines()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		clock:     core.NewMonthClock(start),
		rates:     opts.Rates,
		baselines: baselines,
		readings:  NewReadingStore(),
		history:   NewConfirmedHistory(baselines),
		ledger:    NewCalculationLedger(opts.LedgerLimit),
		now:       now,
	}
}

// Handle applies one action and reports its outcome.
func (e *Engine) Handle(a Action) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle(a)
}

// HandleDecoded builds the user's action with decode, which learns whether a
// value is awaited, and applies it under the same lock.
func (e *Engine) HandleDecoded(u core.UserID, decode func(awaiting bool) Action) (Action, Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, awaiting := e.readings.Awaiting(u)
	a := decode(awaiting)
	return a, e.handle(a)
}

func (e *Engine) handle(a Action) Outcome {
	if a.navigates() {
		e.readings.StopAwaiting(a.User)
	}

	switch a.Kind {
	case ActionSelectCategory:
		return e.selectCategory(a.User, a.Category)
	case ActionSubmitValue:
		return e.submitValue(a.User, a.Text)
	case ActionPreview:
		return e.preview(a.User)
	case ActionCalculate:
		return e.calculate(a.User)
	case ActionHistory:
		return e.recentHistory(a.User)
	case ActionStart:
		return Outcome{Kind: KindWelcome, Period: e.clock.Current(), Rates: e.rates, Baselines: e.baselines}
	case ActionHelp:
		return Outcome{Kind: KindHelp, Period: e.clock.Current(), Rates: e.rates}
	default:
		if c, ok := e.readings.Awaiting(a.User); ok {
			return rejected(core.ErrInvalidFormat, c)
		}
		return Outcome{Kind: KindUnknown}
	}
}

func (e *Engine) selectCategory(u core.UserID, c core.Category) Outcome {
	if !c.IsValid() {
		return Outcome{Kind: KindUnknown}
	}
	e.readings.Await(u, c)
	prev, ok := e.history.Previous(u, c)
	return Outcome{
		Kind:        KindPrompt,
		Category:    c,
		Period:      e.clock.Current(),
		Previous:    prev,
		HasPrevious: ok,
	}
}

func (e *Engine) submitValue(u core.UserID, text string) Outcome {
	c, ok := e.readings.Awaiting(u)
	if !ok {
		return Outcome{Kind: KindUnknown}
	}

	value, err := core.ParseReading(text)
	if err != nil {
		return rejected(err, c)
	}

	out := Outcome{Kind: KindAccepted, Category: c, Period: e.clock.Current(), Value: value}

	prev, ok := e.history.Previous(u, c)
	if !ok {
		// First reading of a new electricity meter: becomes next period's
		// starting point.
		e.readings.Set(u, c, value)
		e.readings.StopAwaiting(u)
		return out
	}

	consumption := value.Sub(prev)
	if consumption.IsNegative() {
		return rejected(fmt.Errorf("%w: %s < %s", core.ErrNegativeConsumption, value, prev), c)
	}

	e.readings.Set(u, c, value)
	e.readings.StopAwaiting(u)

	out.Previous = prev
	out.HasPrevious = true
	out.Billable = true
	out.Consumption = consumption
	out.Cost = consumption.Mul(e.rates.Rate(c))
	return out
}

func (e *Engine) preview(u core.UserID) Outcome {
	pending := e.readings.Pending(u)
	if len(pending) == 0 {
		return rejected(core.ErrNoReadings, "")
	}
	calc := e.breakdown(u, pending)
	return Outcome{Kind: KindBreakdown, Period: calc.Period, Calculation: calc}
}

func (e *Engine) calculate(u core.UserID) Outcome {
	pending := e.readings.Pending(u)
	if len(pending) == 0 {
		return rejected(core.ErrNoReadings, "")
	}

	calc := e.breakdown(u, pending)
	calc.CreatedAt = e.now()

	if err := e.history.Confirm(u, calc.Period, pending); err != nil {
		out := rejected(err, "")
		out.Period = calc.Period
		return out
	}
	e.ledger.Record(u, calc)
	e.readings.Clear(u)
	e.clock.Advance()

	return Outcome{Kind: KindBreakdown, Period: calc.Period, Calculation: calc, Final: true}
}

func (e *Engine) recentHistory(u core.UserID) Outcome {
	entries := e.ledger.Recent(u)
	if len(entries) == 0 {
		return Outcome{Kind: KindEmpty, Reason: ReasonEmptyHistory, Err: core.ErrEmptyHistory}
	}
	return Outcome{Kind: KindHistory, History: entries}
}

// breakdown itemizes pending readings against confirmed history. A meter
// without a previous reading is listed as a baseline with zero cost.
func (e *Engine) breakdown(u core.UserID, pending core.Readings) core.Calculation {
	calc := core.Calculation{Period: e.clock.Current(), Total: decimal.Zero}
	for _, c := range pending.Ordered() {
		item := core.LineItem{
			Category:    c,
			Current:     pending[c],
			Rate:        e.rates.Rate(c),
			Consumption: decimal.Zero,
			Cost:        decimal.Zero,
		}
		prev, ok := e.history.Previous(u, c)
		if ok {
			item.Previous = prev
			item.Consumption = item.Current.Sub(prev)
			item.Cost = item.Consumption.Mul(item.Rate)
		} else {
			item.Previous = item.Current
			item.Baseline = true
		}
		calc.Items = append(calc.Items, item)
		calc.Total = calc.Total.Add(item.Cost)
	}
	return calc
}

// Awaiting reports the category the user was asked to fill in, if any.
func (e *Engine) Awaiting(u core.UserID) (core.Category, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readings.Awaiting(u)
}

// Period returns the current billing period.
func (e *Engine) Period() core.Period {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Current()
}

// Recent returns the user's ledger, most recent first.
func (e *Engine) Recent(u core.UserID) []core.Calculation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Recent(u)
}

// Restore replays a previously confirmed calculation without advancing the
// clock. Calculations must be replayed in the order they were confirmed.
func (e *Engine) Restore(u core.UserID, calc core.Calculation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.history.Confirm(u, calc.Period, calc.Readings()); err != nil {
		return err
	}
	e.ledger.Record(u, calc)
	return nil
}

// ResetClock moves the month clock to p.
func (e *Engine) ResetClock(p core.Period) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Reset(p)
	return nil
}
