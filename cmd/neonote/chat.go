package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Ask the study assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			reply, err := app.chat.Send(cmd.Context(), sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "session %s, message %s\n", reply.SessionID, reply.MessageID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing conversation")
	return cmd
}
