package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/logging"
	"scribe/internal/pipeline"
)

func newFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Transcribe a single file and exit",
		Long:  "Processes one local media file outside the daemon flow: no ledger, no dedup. The sidecar is written next to the file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  firstNonEmpty(ctx.logLevel(), cfg.Logging.Level, "warn"),
				Format: "console",
			})
			if err != nil {
				return err
			}

			sidecarPath, content, err := pipeline.ProcessFile(cmd.Context(), cfg, args[0], logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if content.Text != "" {
				fmt.Fprintln(out, content.Text)
			}
			if content.Description != "" {
				fmt.Fprintln(out, content.Description)
			}
			fmt.Fprintln(out, sidecarPath)
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
