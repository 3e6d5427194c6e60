package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"meterbot/internal/amqp"
	"meterbot/internal/core"
	"meterbot/internal/log"
	"meterbot/internal/metrics"
	"meterbot/internal/sheets"
	"meterbot/internal/storage"
)

// Journal is the part of the journal the export worker reads and updates
type Journal interface {
	GetCalculation(ctx context.Context, id int64) (*core.ConfirmedCalculation, error)
	PendingExports(ctx context.Context, limit int) ([]core.ConfirmedCalculation, error)
	MarkExported(ctx context.Context, id int64, at time.Time) error
}

// Consumer delivers calculation messages from the queue
type Consumer interface {
	ConsumeCalculations(ctx context.Context, handler amqp.Handler) error
}

// ExportWorker copies confirmed calculations from the journal to a
// spreadsheet
type ExportWorker struct {
	journal   Journal
	sheets    sheets.CalculationWriter
	batchSize int
	now       func() time.Time
	logger    *log.Logger
}

func NewExportWorker(journal Journal, writer sheets.CalculationWriter, batchSize int, logger *log.Logger) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentWorker})
	}
	return &ExportWorker{
		journal:   journal,
		sheets:    writer,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// HandleMessage exports the calculation a queue message refers to. Unknown
// calculations are dropped; other failures requeue the message.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.CalculationConfirmedMessage) error {
	w.logger.InfoContext(ctx, "Processing calculation message",
		"event_id", msg.EventID,
		log.FieldCalculationID, msg.CalculationID,
		log.FieldUser, msg.UserID,
		log.FieldPeriod, msg.Period)

	calc, err := w.journal.GetCalculation(ctx, msg.CalculationID)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.ExportsTotal.WithLabelValues(metrics.ExportSkipped).Inc()
		w.logger.WarnContext(ctx, "Calculation not in journal, dropping message",
			log.FieldCalculationID, msg.CalculationID)
		return nil
	}
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(metrics.ExportFailed).Inc()
		return fmt.Errorf("get calculation %d: %w", msg.CalculationID, err)
	}

	return w.export(ctx, *calc)
}

// ExportPending exports calculations the queue never delivered. It returns
// the number exported.
func (w *ExportWorker) ExportPending(ctx context.Context) (int, error) {
	pending, err := w.journal.PendingExports(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Exporting pending calculations", "count", len(pending))

	exported := 0
	for _, calc := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.export(ctx, calc); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export calculation",
				log.FieldCalculationID, calc.ID,
				log.FieldError, err)
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Pending export completed",
		"total", len(pending),
		"exported", exported,
		"errors", len(pending)-exported)

	return exported, nil
}

func (w *ExportWorker) export(ctx context.Context, calc core.ConfirmedCalculation) error {
	if calc.Exported() {
		metrics.ExportsTotal.WithLabelValues(metrics.ExportSkipped).Inc()
		w.logger.DebugContext(ctx, "Calculation already exported",
			log.FieldCalculationID, calc.ID)
		return nil
	}

	ref, err := w.sheets.AppendCalculation(ctx, calc)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(metrics.ExportFailed).Inc()
		return fmt.Errorf("append calculation %d: %w", calc.ID, err)
	}

	// The rows are written; a failed mark only means a duplicate on the next sweep
	if err := w.journal.MarkExported(ctx, calc.ID, w.now().UTC()); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark calculation exported",
			log.FieldCalculationID, calc.ID,
			log.FieldError, err)
	}
	metrics.ExportsTotal.WithLabelValues(metrics.ExportOK).Inc()

	w.logger.InfoContext(ctx, "Calculation exported",
		log.FieldCalculationID, calc.ID,
		log.FieldUser, string(calc.User),
		log.FieldPeriod, calc.Period.String(),
		"sheets_ref", ref)
	return nil
}

// Schedule runs ExportPending on a cron schedule until ctx is done.
// Overlapping runs are skipped.
func (w *ExportWorker) Schedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := w.ExportPending(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Scheduled export failed", log.FieldError, err)
		}
		metrics.ExportLastRun.SetToCurrentTime()
	})
	if err != nil {
		return fmt.Errorf("parse export schedule %q: %w", spec, err)
	}

	w.logger.InfoContext(ctx, "Export schedule started", "schedule", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Run catches up on pending exports, then consumes queue messages and runs
// the schedule until ctx is done. A nil consumer runs the schedule alone.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer, schedule string) error {
	if _, err := w.ExportPending(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeCalculations(ctx, w.HandleMessage)
		})
	} else {
		w.logger.InfoContext(ctx, "Skipping AMQP consumption - no consumer configured")
	}
	g.Go(func() error {
		return w.Schedule(ctx, schedule)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
