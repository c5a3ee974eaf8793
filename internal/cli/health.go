package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			status, err := client.Probe("/api/v1/health", &result)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)

			if result.Status != "ok" {
				return fmt.Errorf("server is %s (HTTP %d)", result.Status, status)
			}
			return nil
		},
	}
}
