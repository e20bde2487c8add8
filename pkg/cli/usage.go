package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/gepetto/pkg/models"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

var errUsageDisabled = errors.New("usage ledger is not enabled (set GEPETTO_USAGE_ENABLED and GEPETTO_DATABASE_URL)")

func newUsageCmd(a *app) *cobra.Command {
	var (
		limit int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize recorded calls by model and list the most recent ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.usageRepo == nil {
				return errUsageDisabled
			}

			ctx := cmd.Context()
			summaries, err := a.usageRepo.SummarizeByModel(ctx, time.Now().Add(-since))
			if err != nil {
				return err
			}
			recent, err := a.usageRepo.ListRecent(ctx, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			bold := color.New(color.Bold)

			_, _ = fmt.Fprintf(w, "%s\n", bold.Sprintf("Successful calls in the last %s", since))
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "MODEL\tCALLS\tPROMPT\tCOMPLETION\tTOTAL\tCOST")
			for _, s := range summaries {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t$%s\n", s.Model, s.Calls,
					s.PromptTokens, s.CompletionTokens, s.TotalTokens, s.Cost.StringFixed(pricing.CostPlaces))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(w, "\n%s\n", bold.Sprintf("Last %d calls", limit))
			return printRecent(w, recent)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent calls to list")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "summary window")
	return cmd
}

func printRecent(w io.Writer, records []*models.UsageRecord) error {
	red := color.New(color.FgRed)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tKIND\tMODEL\tTOKENS\tCOST\tSTATUS")
	for _, r := range records {
		status := r.Status
		if r.Status == models.UsageStatusError {
			status = red.Sprint(r.Status)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t$%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.Model, r.TotalTokens,
			r.Cost.StringFixed(pricing.CostPlaces), status)
	}
	return tw.Flush()
}
