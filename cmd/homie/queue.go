package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

func queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue commands",
	}

	cmd.AddCommand(queueListCommand())
	cmd.AddCommand(queueAddCommand())
	cmd.AddCommand(queueRemoveCommand())
	cmd.AddCommand(queueMoveCommand())

	return cmd
}

func queueListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			snap, err := app.client.Queue(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(snap)
		},
	}
	return cmd
}

func queueAddCommand() *cobra.Command {
	var artist string

	cmd := &cobra.Command{
		Use:   "add <track>",
		Short: "Add a track to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			resp, err := app.client.Enqueue(ctx, args[0], artist)
			if err != nil {
				return err
			}
			return app.printer.Print(resp)
		},
	}

	cmd.Flags().StringVar(&artist, "artist", "", "prefer results by this artist")
	return cmd
}

func queueRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <queue-item-id>",
		Short: "Remove a queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			resp, err := app.client.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			return app.printer.Print(resp)
		},
	}
	return cmd
}

func queueMoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a queue entry to a new index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			from, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}

			resp, err := app.client.Move(ctx, from, to)
			if err != nil {
				return err
			}
			return app.printer.Print(resp)
		},
	}
	return cmd
}
