package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"meterbot/internal/backend"
	"meterbot/internal/cli"
	"meterbot/internal/config"
	apphttp "meterbot/internal/http"
	"meterbot/internal/log"
	"meterbot/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *log.Logger, cfg *config.Config) error {
	engine, err := cli.NewEngine(cfg)
	if err != nil {
		return err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		return err
	}

	svc := services.NewBillingService(engine, res.Journal, res.Publisher, cfg.Start(),
		logger.WithComponent(log.ComponentBilling))
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close billing service", log.FieldError, err)
		}
	}()

	restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = svc.Restore(restoreCtx)
	cancel()
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting meterbot server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldPeriod, svc.Period().String(),
		"amqp_enabled", res.Publisher != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
