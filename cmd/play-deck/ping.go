package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/play-deck/internal/transport"
)

func newPingCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the playground service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			start := time.Now()
			if wait {
				err = client.WaitReady(cmd.Context(), transport.DefaultRetryDelays)
			} else {
				err = client.Health(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("%s: %w", client.BaseURL(), err)
			}
			fmt.Fprintf(a.out, "%s ok (%s)\n", client.BaseURL(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "retry with backoff while the service is starting")
	return cmd
}
