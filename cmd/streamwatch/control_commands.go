package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"streamwatch/internal/control"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Request a graceful stop of the running monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := control.RequestStop(cfg.Paths.ControlDir, reason); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop requested; the monitor finishes active recordings before exiting.")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the monitor log")
	return cmd
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause [seconds]",
		Short: "Pause monitoring for a duration (default from config)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			seconds := 0
			if len(args) == 1 {
				seconds, err = strconv.Atoi(args[0])
				if err != nil || seconds <= 0 {
					return fmt.Errorf("seconds must be a positive integer, got %q", args[0])
				}
			}

			if err := control.RequestPause(cfg.Paths.ControlDir, seconds); err != nil {
				return err
			}
			if seconds > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Pause requested for %d seconds.\n", seconds)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Pause requested for the default %d seconds.\n", cfg.Monitor.PauseDefaultSeconds)
			}
			return nil
		},
	}
	return cmd
}
