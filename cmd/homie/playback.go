package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

func toggleCommand() *cobra.Command {
	return controlCommand("toggle", "Toggle play/pause", "play_pause")
}

func stopCommand() *cobra.Command {
	return controlCommand("stop", "Stop playback", "stop")
}

func nextCommand() *cobra.Command {
	return controlCommand("next", "Skip to the next track", "next")
}

func prevCommand() *cobra.Command {
	return controlCommand("prev", "Return to the previous track", "previous")
}

func controlCommand(use string, short string, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			resp, err := app.client.Control(ctx, action)
			if err != nil {
				return err
			}
			return app.printer.Print(resp)
		},
	}
}

func seekCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek within the current track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			position, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}

			resp, err := app.client.Seek(ctx, position)
			if err != nil {
				return err
			}
			return app.printer.Print(resp)
		},
	}
	return cmd
}
