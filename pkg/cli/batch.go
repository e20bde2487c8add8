package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gepetto/pkg/llm"
	"github.com/ekaya-inc/gepetto/pkg/logging"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		opts        llm.ChatOptions
		system      string
		temperature float64
		topP        float64
	)

	cmd := &cobra.Command{
		Use:   "batch <prompts-file>",
		Short: "Run one chat per line of a file concurrently and total the cost",
		Long: `Run one chat per non-empty line of the prompts file. Calls run concurrently,
bounded by max_concurrent, and every outcome is reported with the batch total.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := readPrompts(args[0])
			if err != nil {
				return err
			}

			async, err := a.factory.CreateAsync(a.cfg.LLMConfig())
			if err != nil {
				return err
			}

			opts.Temperature = llm.Float(temperature)
			opts.TopP = llm.Float(topP)
			jobs := make([]llm.ChatJob, len(prompts))
			for i, p := range prompts {
				jobs[i] = llm.ChatJob{
					ID:       fmt.Sprintf("%d", i+1),
					Messages: buildMessages(system, []string{p}),
					Options:  opts,
				}
			}

			pool := llm.NewWorkerPool(a.cfg.WorkerPoolConfig(), a.logger)
			results := async.ChatBatch(cmd.Context(), pool, jobs, func(completed, total int) {
				a.logger.Debug("Batch progress", zap.Int("completed", completed), zap.Int("total", total))
			})

			return printBatch(cmd, results)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "model override for every call")
	addSamplingFlags(cmd, &temperature, &topP)
	cmd.Flags().BoolVar(&opts.JSONMode, "json", false, "constrain replies to JSON objects")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system message sent before each prompt")
	return cmd
}

func readPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompts file %s is empty", path)
	}
	return prompts, nil
}

func printBatch(cmd *cobra.Command, results []llm.WorkResult[*llm.ChatResult]) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)

	_, _ = fmt.Fprintln(tw, bold.Sprint("JOB")+"\t"+bold.Sprint("TOKENS")+"\t"+bold.Sprint("COST")+"\t"+bold.Sprint("REPLY"))

	total := decimal.Zero
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			_, _ = fmt.Fprintf(tw, "%s\t-\t-\t%s\n", r.ID, red.Sprint(logging.SanitizeError(r.Err)))
			continue
		}
		total = total.Add(r.Result.Cost)
		reply := strings.ReplaceAll(r.Result.Text, "\n", " ")
		_, _ = fmt.Fprintf(tw, "%s\t%d\t$%s\t%s\n", r.ID, r.Result.TotalTokens,
			r.Result.Cost.StringFixed(pricing.CostPlaces), logging.TruncateString(reply, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s $%s (%d ok, %d failed)\n",
		bold.Sprint("Total:"), total.StringFixed(pricing.CostPlaces), len(results)-failed, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d calls failed", failed, len(results))
	}
	return nil
}
