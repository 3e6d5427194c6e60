package main

import (
	"context"
	"os"
	"time"

	"meterbot/internal/amqp"
	"meterbot/internal/cli"
	"meterbot/internal/config"
	"meterbot/internal/log"
	"meterbot/internal/sheets"
	gsheet "meterbot/internal/sheets/google"
	"meterbot/internal/sheets/memory"
	"meterbot/internal/storage"
	"meterbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(logger, cfg); err != nil {
		logger.Error("Worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(logger *log.Logger, cfg *config.Config) error {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	writer, err := newWriter(logger, cfg)
	if err != nil {
		return err
	}

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, exporting on schedule only", log.FieldError, err)
		} else {
			defer client.Close()
			consumer = client
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	w := worker.NewExportWorker(repo, writer, cfg.ExportBatchSize, logger)
	logger.Info("Starting export worker",
		"db_path", cfg.SQLiteDBPath,
		"schedule", cfg.ExportSchedule,
		"spreadsheet", cfg.GoogleSpreadsheetID != "",
		"amqp_enabled", consumer != nil)

	if err := w.Run(ctx, consumer, cfg.ExportSchedule); err != nil {
		return err
	}
	<-done
	return nil
}

func newWriter(logger *log.Logger, cfg *config.Config) (sheets.CalculationWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exports are kept in memory only")
		return memory.New(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	logger.Info("Google Sheets writer ready", "sheet", cfg.GoogleSheetName)
	return client, nil
}
