// Command meterctl is the operator tool for meterbot: a terminal chat
// session against the billing engine, schema migrations and statement
// export.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meterbot/internal/backend"
	"meterbot/internal/cli"
	"meterbot/internal/config"
	"meterbot/internal/log"
	"meterbot/internal/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:           "meterctl",
		Short:         "Operate the meterbot billing journal",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			if logLevel == "" {
				logLevel = os.Getenv("LOG_LEVEL")
			}
			a.logger = cli.SetupLogger(logLevel, log.ComponentCLI)
			a.cfg = config.Load()
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newChatCmd(a),
		newMigrateCmd(a),
		newStatementCmd(a),
	)
	return root
}

// openService builds the billing service over the configured journal and
// replays it
func (a *app) openService(ctx context.Context) (*services.BillingService, error) {
	engine, err := cli.NewEngine(a.cfg)
	if err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	// the CLI never announces calculations on the queue
	bcfg.AMQPURL = ""

	res, err := backend.NewFactory(a.logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	svc := services.NewBillingService(engine, res.Journal, nil, a.cfg.Start(),
		a.logger.WithComponent(log.ComponentBilling))
	if err := svc.Restore(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("restore journal: %w", err)
	}
	return svc, nil
}
