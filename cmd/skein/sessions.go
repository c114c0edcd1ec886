package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skein-dev/skein/internal/config"
	"github.com/skein-dev/skein/internal/events"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored conversations",
	}
	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsShowCommand())
	cmd.AddCommand(newSessionsClearCommand())
	return cmd
}

func sessionsRuntime() (*Runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, events.NewRecorder())
}

func newSessionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := sessionsRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			keys, err := rt.Conversations.Keys(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tMESSAGES\tUPDATED\tTOPIC")
			for _, key := range keys {
				meta, ok := rt.Conversations.Metadata(key)
				if !ok {
					fmt.Fprintf(w, "%s\t-\t-\t\n", key)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					key, meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"), meta.Topic)
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := sessionsRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			history, err := rt.Conversations.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, msg := range history {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", msg.Role, msg.Content.String())
				for _, call := range msg.ToolCalls {
					fmt.Fprintf(cmd.OutOrStdout(), "  → %s %s\n", call.Name, call.Arguments)
				}
			}
			return nil
		},
	}
}

func newSessionsClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := sessionsRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Conversations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
