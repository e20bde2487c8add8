package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models in the price table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			bold := color.New(color.Bold)
			green := color.New(color.FgGreen)

			_, _ = fmt.Fprintln(tw, bold.Sprint("MODEL")+"\t"+bold.Sprint("INPUT/1K")+"\t"+bold.Sprint("OUTPUT/1K")+"\t")

			for _, m := range a.table.Models() {
				marker := ""
				if m.ID == a.table.DefaultModel() {
					marker = green.Sprint("default")
				}
				_, _ = fmt.Fprintf(tw, "%s\t$%s\t$%s\t%s\n", m.ID, m.InputPer1K.String(), m.OutputPer1K.String(), marker)
			}

			return tw.Flush()
		},
	}
}

func newPriceCmd(a *app) *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "price <model> <tokens>",
		Short: "Price a token count for a model",
		Long: `Price a token count at the model's output rate (or input rate with -d input), rounded to four
decimal places. Unknown models cost zero unless the strict policy is configured.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("tokens must be an integer: %w", err)
			}

			dir, err := pricing.ParseDirection(direction)
			if err != nil {
				return err
			}

			cost, err := a.table.Price(args[0], tokens, dir)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "$%s\n", cost.StringFixed(pricing.CostPlaces))
			return nil
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", string(pricing.DirectionOutput), "rate to apply: input or output")
	return cmd
}
