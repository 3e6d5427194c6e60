package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"meterbot/internal/core"
	"meterbot/internal/services"
)

type messageHandler interface {
	HandleMessage(ctx context.Context, user core.UserID, text string) (services.Reply, error)
}

func newChatCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot from the terminal",
		Long:  "Reads one message per line from stdin and prints the bot's replies. Button labels are typed as text.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return chat(cmd.Context(), svc, core.UserID(user), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to chat as")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// chat feeds each non-empty input line to h until EOF
func chat(ctx context.Context, h messageHandler, user core.UserID, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		reply, err := h.HandleMessage(ctx, user, text)
		if err != nil {
			return err
		}
		printReply(out, reply)
	}
	return scanner.Err()
}

func printReply(out io.Writer, r services.Reply) {
	fmt.Fprintln(out, r.Text)
	for _, row := range r.Keyboard {
		fmt.Fprintf(out, "[ %s ]\n", strings.Join(row, " | "))
	}
	fmt.Fprintln(out)
}
