package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meterbot/internal/core"
	"meterbot/internal/log"
)

func newStatementCmd(a *app) *cobra.Command {
	var user, out string
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Write a user's XLSX statement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			data, err := svc.Statement(cmd.Context(), core.UserID(user))
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("statement-%s.xlsx", user)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write statement: %w", err)
			}
			a.logger.Info("Statement written",
				log.FieldOperation, log.OpExport,
				log.FieldUser, user,
				"path", out,
				"bytes", len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default statement-<user>.xlsx)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
