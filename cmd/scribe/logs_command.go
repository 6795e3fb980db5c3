package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"scribe/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's current run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logPath := filepath.Join(cfg.Paths.LogDir, "scribe.log")
			out := cmd.OutOrStdout()

			if follow {
				err := logs.Follow(cmd.Context(), logPath, lines, out)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			tail, _, err := logs.LastLines(logPath, lines)
			if err != nil {
				return err
			}
			if len(tail) == 0 {
				fmt.Fprintf(out, "No log output at %s\n", logPath)
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	return cmd
}
