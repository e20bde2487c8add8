package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/gepetto/pkg/llm"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

func newPingCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured endpoint answers a one-line chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			result := llm.NewConnectionTester(timeout).Test(cmd.Context(), client)
			w := cmd.OutOrStdout()

			if !result.Success {
				_, _ = color.New(color.FgRed).Fprintf(w, "FAIL %s\n", result.Message)
				return fmt.Errorf("ping %s failed (%s)", client.GetEndpoint(), result.ErrorType)
			}

			_, _ = color.New(color.FgGreen).Fprint(w, "OK ")
			_, _ = fmt.Fprintf(w, "%s model=%s latency=%dms tokens=%d cost=$%s\n",
				client.GetEndpoint(), result.Model, result.ResponseTimeMs, result.TotalTokens,
				result.Cost.StringFixed(pricing.CostPlaces))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "probe timeout")
	return cmd
}
