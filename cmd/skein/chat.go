package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skein-dev/skein/internal/config"
	"github.com/skein-dev/skein/internal/orchestrator"
)

func newChatCommand() *cobra.Command {
	var (
		session    string
		stream     bool
		approveAll bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message, or start a REPL when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			printer := newEventPrinter(cmd.OutOrStdout(), cmd.InOrStdin(), approveAll)
			rt, err := newRuntime(cfg, printer)
			if err != nil {
				return err
			}
			defer rt.Close()
			printer.approve = func(approvalID string, decision orchestrator.Decision, instruction string) {
				rt.Orchestrator.HandleToolApproval(approvalID, decision, nil, instruction)
			}

			opts := orchestrator.SendOptions{ConversationID: session, Stream: stream}
			if len(args) > 0 {
				_, err := rt.Orchestrator.Send(cmd.Context(), orchestrator.TextPayload(strings.Join(args, " ")), opts)
				return err
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintln(cmd.OutOrStdout(), "skein chat (ctrl-d to exit)")
			for {
				fmt.Fprint(cmd.OutOrStdout(), "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if _, err := rt.Orchestrator.Send(cmd.Context(), orchestrator.TextPayload(text), opts); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			}
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "conversation id (default \"default\")")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream assistant output")
	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "approve every tool call without prompting")
	return cmd
}
