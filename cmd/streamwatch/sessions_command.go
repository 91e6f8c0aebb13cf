package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"streamwatch/internal/sessionlog"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent recording sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := sessionlog.OpenStore(cfg.Paths.StateDir)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			sessions, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded sessions yet.")
				return nil
			}

			columns := []column{
				{header: "Started"},
				{header: "Account"},
				{header: "Duration", numeric: true},
				{header: "Reason"},
				{header: "Comments", numeric: true},
				{header: "Gifts", numeric: true},
				{header: "Follows", numeric: true},
				{header: "Shares", numeric: true},
				{header: "Joins", numeric: true},
			}
			rows := make([][]string, 0, len(sessions))
			for _, sum := range sessions {
				rows = append(rows, []string{
					sum.StartedAt.Format("2006-01-02 15:04:05"),
					sum.Account,
					sum.Duration().Round(time.Second).String(),
					sum.Reason,
					strconv.Itoa(sum.Comments),
					strconv.Itoa(sum.Gifts),
					strconv.Itoa(sum.Follows),
					strconv.Itoa(sum.Shares),
					strconv.Itoa(sum.Joins),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	return cmd
}
