package main

import (
	"github.com/spf13/cobra"

	"scribe/internal/daemonrun"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and transcribe new media files",
		Long:  "Runs the daemon in filesystem mode: new files under paths.watch_dir are classified, deduplicated, and processed; results are written as sidecar files next to the source.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.ModeWatch, daemonrun.Options{
				LogLevel: ctx.logLevel(),
			})
		},
	}
}

func newListenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to a relay and transcribe referenced media",
		Long:  "Runs the daemon in pubsub mode: events from relay.url are scanned for media locators, deduplicated, and processed; results are published back when relay.publish_results is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.ModeListen, daemonrun.Options{
				LogLevel: ctx.logLevel(),
			})
		},
	}
}
