package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/gepetto/pkg/llm"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		opts        llm.ChatOptions
		system      string
		temperature float64
		topP        float64
	)

	cmd := &cobra.Command{
		Use:   "chat <prompt...>",
		Short: "Send a chat prompt and print the reply with its cost",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			opts.Temperature = llm.Float(temperature)
			opts.TopP = llm.Float(topP)
			result, err := client.Chat(cmd.Context(), buildMessages(system, args), opts)
			if err != nil {
				return describeError(err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			printUsage(cmd.ErrOrStderr(), result.Model, result.PromptTokens, result.CompletionTokens, result.TotalTokens, result.Cost)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "model override for this call")
	addSamplingFlags(cmd, &temperature, &topP)
	cmd.Flags().BoolVar(&opts.JSONMode, "json", false, "constrain the reply to a JSON object")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system message sent before the prompt")
	return cmd
}

func newCallCmd(a *app) *cobra.Command {
	var (
		opts        llm.FunctionCallOptions
		system      string
		toolsPath   string
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "call --tools <file> <prompt...>",
		Short: "Force a function call and print the decoded arguments",
		Long: `Force the model to call the first tool declared in the tools file and print
the decoded arguments as JSON. The tools file is a YAML list of
{name, description, parameters} entries where parameters is a JSON Schema object.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := loadTools(toolsPath)
			if err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			opts.Temperature = llm.Float(temperature)
			result, err := client.FunctionCall(cmd.Context(), buildMessages(system, args), tools, opts)
			if err != nil {
				return describeError(err)
			}

			out, err := json.MarshalIndent(map[string]any{
				"function":   result.FunctionName,
				"parameters": result.Parameters,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			printUsage(cmd.ErrOrStderr(), result.Model, result.PromptTokens, result.CompletionTokens, result.TotalTokens, result.Cost)
			return nil
		},
	}

	cmd.Flags().StringVarP(&toolsPath, "tools", "f", "", "YAML file declaring the tools (required)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "model override for this call")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", llm.DefaultFunctionCallTemperature, "sampling temperature (0 is sent as given)")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system message sent before the prompt")
	_ = cmd.MarkFlagRequired("tools")
	return cmd
}

// addSamplingFlags registers the chat sampling flags shared by chat and batch.
func addSamplingFlags(cmd *cobra.Command, temperature, topP *float64) {
	cmd.Flags().Float64VarP(temperature, "temperature", "t", llm.DefaultChatTemperature, "sampling temperature (0 is sent as given)")
	cmd.Flags().Float64Var(topP, "top-p", llm.DefaultChatTopP, "nucleus sampling probability")
}

// loadTools reads a YAML list of tool definitions.
func loadTools(path string) ([]llm.ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var tools []llm.ToolDefinition
	if err := yaml.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("parse tools file %s: %w", path, err)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("tools file %s declares no tools", path)
	}
	return tools, nil
}

func buildMessages(system string, args []string) []llm.Message {
	var messages []llm.Message
	if system != "" {
		messages = append(messages, llm.SystemMessage(system))
	}
	return append(messages, llm.UserMessage(strings.Join(args, " ")))
}

func printUsage(w io.Writer, model string, prompt, completion, total int, cost decimal.Decimal) {
	dim := color.New(color.Faint)
	_, _ = dim.Fprintf(w, "model=%s prompt=%d completion=%d total=%d cost=$%s\n",
		model, prompt, completion, total, cost.StringFixed(pricing.CostPlaces))
}

// describeError prefixes an upstream error with its classification.
func describeError(err error) error {
	classified := llm.ClassifyError(err)
	if classified.Type == llm.ErrorTypeUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", classified.Message, err)
}
