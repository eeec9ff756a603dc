package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnpc/jpc-homie/internal/adapters/config"
	"github.com/johnpc/jpc-homie/internal/adapters/output"
)

type app struct {
	client  *apiClient
	printer output.Printer
	timeout time.Duration
}

func main() {
	root := &cobra.Command{
		Use:   "homie",
		Short: "Homie dashboard CLI",
	}

	var (
		server  string
		timeout time.Duration
		jsonOut bool
	)

	root.PersistentFlags().StringVarP(&server, "server", "s", "", "homied base URL")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if server == "" {
			server = os.Getenv("HOMIE_SERVER")
		}
		if server == "" {
			server = cfg.Server
		}
		if server == "" {
			server = "http://127.0.0.1:8099"
		}
		if !cmd.Flags().Changed("json") && cfg.JSON {
			jsonOut = true
		}

		client, err := newAPIClient(server, timeout)
		if err != nil {
			return err
		}

		var printer output.Printer
		if jsonOut {
			printer = output.JSONPrinter{}
		} else {
			printer = output.HumanPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			client:  client,
			printer: printer,
			timeout: timeout,
		}))
		return nil
	}

	root.AddCommand(statusCommand())
	root.AddCommand(queueCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(seekCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}
