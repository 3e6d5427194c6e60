package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meterbot/internal/billing"
	"meterbot/internal/bot"
	"meterbot/internal/cache"
	"meterbot/internal/core"
	"meterbot/internal/export"
	"meterbot/internal/log"
	"meterbot/internal/metrics"
)

// Journal is the durable record of confirmed calculations
type Journal interface {
	SaveCalculation(ctx context.Context, user core.UserID, calc core.Calculation, next core.Period) (core.ConfirmedCalculation, error)
	ListCalculations(ctx context.Context) ([]core.ConfirmedCalculation, error)
	ListUserCalculations(ctx context.Context, user core.UserID, limit int) ([]core.ConfirmedCalculation, error)
	LoadClock(ctx context.Context) (core.Period, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Publisher announces confirmed calculations to the export worker
type Publisher interface {
	PublishCalculationConfirmed(ctx context.Context, calc core.ConfirmedCalculation) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	statementCacheSize = 64
	statementCacheTTL  = 10 * time.Minute
)

// Reply is what the transport sends back to the user
type Reply struct {
	Kind     string     `json:"kind"`
	Reason   string     `json:"reason,omitempty"`
	Text     string     `json:"text"`
	Keyboard [][]string `json:"keyboard"`
}

// BillingService orchestrates the billing engine, the journal and the
// calculation queue
type BillingService struct {
	engine    *billing.Engine
	journal   Journal
	publisher Publisher
	start     core.Period
	logger    *log.Logger
	sl        *log.StructuredLogger

	// rendered statements by user, dropped when the user confirms
	statements *cache.LRU[[]byte]
}

// NewBillingService wires the engine to its journal. publisher may be nil,
// in which case confirmed calculations are only journaled.
func NewBillingService(engine *billing.Engine, journal Journal, publisher Publisher, start core.Period, logger *log.Logger) *BillingService {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentBilling})
	}
	return &BillingService{
		engine:    engine,
		journal:   journal,
		publisher: publisher,
		start:     start,
		logger:    logger,
		sl:        log.NewStructuredLogger(logger),

		statements: cache.NewLRU[[]byte](statementCacheSize, statementCacheTTL),
	}
}

// HandleMessage runs one chat message through the engine and renders the
// reply
func (s *BillingService) HandleMessage(ctx context.Context, user core.UserID, text string) (Reply, error) {
	if user == "" {
		return Reply{}, errors.New("missing user id")
	}

	action, out := s.engine.HandleDecoded(user, func(awaiting bool) billing.Action {
		return bot.Decode(user, text, awaiting)
	})
	metrics.MessagesTotal.WithLabelValues(action.Kind.String()).Inc()
	metrics.OutcomesTotal.WithLabelValues(out.Kind.String(), out.Reason.String()).Inc()

	s.logger.DebugContext(ctx, "Message handled",
		log.FieldUser, string(user),
		log.FieldAction, action.Kind.String(),
		log.FieldOutcome, out.Kind.String(),
		log.FieldReason, out.Reason.String())

	if out.Kind == billing.KindBreakdown && out.Final {
		s.persist(ctx, user, out.Calculation)
	}

	return Reply{
		Kind:     out.Kind.String(),
		Reason:   reasonLabel(out.Reason),
		Text:     bot.Render(out),
		Keyboard: bot.Keyboard(),
	}, nil
}

// persist journals a confirmed calculation and announces it. The engine has
// already confirmed it, so failures are logged and not returned.
func (s *BillingService) persist(ctx context.Context, user core.UserID, calc core.Calculation) {
	confirmed, err := s.journal.SaveCalculation(ctx, user, calc, calc.Period.Next())
	if err != nil {
		metrics.JournalErrors.WithLabelValues(log.OpConfirm).Inc()
		fields := log.NewFields().WithUser(user)
		fields[log.FieldPeriod] = calc.Period.String()
		s.sl.LogError(ctx, "Failed to journal calculation", err, log.OpConfirm, fields)
		return
	}
	metrics.CalculationsConfirmed.Inc()
	s.statements.Delete(string(user))

	s.sl.LogCalculationConfirmed(ctx, confirmed)

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping calculation message",
			log.FieldCalculationID, confirmed.ID)
		return
	}
	if err := s.publisher.PublishCalculationConfirmed(ctx, confirmed); err != nil {
		metrics.PublishFailures.Inc()
		s.sl.LogError(ctx, "Failed to publish calculation message", err, log.OpPublish,
			log.NewFields().WithCalculation(confirmed.ID, confirmed.Period, confirmed.Total, len(confirmed.Items)))
	}
}

// Restore replays the journal into the engine and moves the month clock to
// the journaled position, or the configured start for an empty journal
func (s *BillingService) Restore(ctx context.Context) error {
	calcs, err := s.journal.ListCalculations(ctx)
	if err != nil {
		return fmt.Errorf("list calculations: %w", err)
	}
	for _, c := range calcs {
		if err := s.engine.Restore(c.User, c.Calculation); err != nil {
			return fmt.Errorf("restore calculation %d: %w", c.ID, err)
		}
	}

	clock, ok, err := s.journal.LoadClock(ctx)
	if err != nil {
		return fmt.Errorf("load clock: %w", err)
	}
	if !ok {
		clock = s.start
	}
	if err := s.engine.ResetClock(clock); err != nil {
		return fmt.Errorf("reset clock to %s: %w", clock, err)
	}

	s.logger.InfoContext(ctx, "Journal restored",
		log.FieldOperation, log.OpRestore,
		"calculations", len(calcs),
		log.FieldPeriod, clock.String())
	return nil
}

// History returns the user's recent calculations, newest first
func (s *BillingService) History(_ context.Context, user core.UserID) []core.Calculation {
	return s.engine.Recent(user)
}

// Statement builds an XLSX statement of every journaled calculation of the
// user
func (s *BillingService) Statement(ctx context.Context, user core.UserID) ([]byte, error) {
	if data, ok := s.statements.Get(string(user)); ok {
		return data, nil
	}

	calcs, err := s.journal.ListUserCalculations(ctx, user, 0)
	if err != nil {
		return nil, fmt.Errorf("list calculations of %s: %w", user, err)
	}
	if len(calcs) == 0 {
		return nil, core.ErrEmptyHistory
	}
	data, err := export.BuildStatementXLSX(user, calcs, time.Now())
	if err != nil {
		return nil, err
	}
	s.statements.Set(string(user), data)
	return data, nil
}

// Period returns the current billing period
func (s *BillingService) Period() core.Period {
	return s.engine.Period()
}

// Ready checks the journal and, when configured, the queue
func (s *BillingService) Ready(ctx context.Context) error {
	if err := s.journal.Ping(ctx); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.Ping(ctx); err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
	}
	return nil
}

// Close closes both the journal and the AMQP connection
func (s *BillingService) Close() error {
	var errs []error

	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close billing service: %w", errors.Join(errs...))
	}
	return nil
}

func reasonLabel(r billing.Reason) string {
	if r == billing.ReasonNone {
		return ""
	}
	return r.String()
}
