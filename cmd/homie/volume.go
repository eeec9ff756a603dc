package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func volumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vol [<0..100>]",
		Short: "Show or set volume",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if len(args) == 0 {
				vol, err := app.client.Volume(ctx)
				if err != nil {
					return err
				}
				return app.printer.Print(vol)
			}

			percent, err := strconv.Atoi(args[0])
			if err != nil || percent < 0 || percent > 100 {
				return fmt.Errorf("volume must be 0..100")
			}

			resp, err := app.client.SetVolume(ctx, float64(percent)/100)
			if err != nil {
				return err
			}
			return app.printer.Print(resp)
		},
	}
	return cmd
}
