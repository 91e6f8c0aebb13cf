package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"streamwatch/internal/control"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running monitor's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path := filepath.Join(cfg.Paths.ControlDir, control.StatusFileName)
			rec, err := control.ReadStatus(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintln(cmd.OutOrStdout(), "No status file found; the monitor does not appear to have run yet.")
					return nil
				}
				return fmt.Errorf("read status: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Status:     %s\n", colorizeStatus(rec.Status, colorize))
			fmt.Fprintf(out, "Updated:    %s (%s ago)\n",
				rec.Timestamp.Format(time.RFC3339),
				time.Since(rec.Timestamp).Round(time.Second),
			)
			fmt.Fprintf(out, "PID:        %d\n", rec.PID)
			fmt.Fprintf(out, "Recording:  %d\n", rec.ActiveRecordings)
			if len(rec.CurrentlyRecording) > 0 {
				fmt.Fprintf(out, "Accounts:   %s\n", strings.Join(rec.CurrentlyRecording, ", "))
			}
			if rec.ExtraInfo != "" {
				fmt.Fprintf(out, "Info:       %s\n", rec.ExtraInfo)
			}
			return nil
		},
	}
}

func colorizeStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	switch status {
	case "monitoring":
		return ansiGreen + status + ansiReset
	case "paused", "stopping":
		return ansiYellow + status + ansiReset
	case "stopped":
		return ansiRed + status + ansiReset
	default:
		return status
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
