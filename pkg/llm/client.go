package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gepetto/pkg/apperrors"
	"github.com/ekaya-inc/gepetto/pkg/logging"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

// DefaultEndpoint is the OpenAI API base URL used when none is configured.
const DefaultEndpoint = "https://api.openai.com/v1"

// requestIDHeader carries the per-call request id to the upstream.
const requestIDHeader = "X-Request-Id"

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint    string        // Base URL, defaults to DefaultEndpoint
	Model       string        // Defaults to the price table's default model
	APIKey      string        // Optional for local endpoints
	HTTPTimeout time.Duration // Zero means no client-side timeout
}

// Client issues metered chat and function-call requests. It holds no mutable
// state, so one instance can serve any number of concurrent calls.
type Client struct {
	completer Completer
	table     *pricing.Table
	endpoint  string
	model     string
	logger    *zap.Logger
}

// NewClient creates a client backed by the go-openai transport.
// A nil table selects pricing.Builtin().
func NewClient(cfg *Config, table *pricing.Table, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(endpoint, "/")
	clientConfig.HTTPClient = &http.Client{
		Transport: &contextAwareTransport{base: http.DefaultTransport},
		Timeout:   cfg.HTTPTimeout,
	}

	return newClient(openai.NewClientWithConfig(clientConfig), table, endpoint, cfg.Model, logger)
}

// NewClientWithCompleter creates a client that sends requests through completer.
func NewClientWithCompleter(completer Completer, table *pricing.Table, model string, logger *zap.Logger) (*Client, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	return newClient(completer, table, "", model, logger)
}

func newClient(completer Completer, table *pricing.Table, endpoint, model string, logger *zap.Logger) (*Client, error) {
	if table == nil {
		table = pricing.Builtin()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	resolved, err := table.Resolve(model)
	if err != nil {
		return nil, fmt.Errorf("resolve model: %w", err)
	}

	return &Client{
		completer: completer,
		table:     table,
		endpoint:  endpoint,
		model:     resolved,
		logger:    logger.Named("llm"),
	}, nil
}

// Chat sends the conversation and returns the first choice's text.
// Prompt tokens are priced at the input rate and completion tokens at the output rate.
// Transport errors are returned unchanged.
func (c *Client) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error) {
	model, err := c.resolveModel(opts.Model)
	if err != nil {
		return nil, err
	}

	ctx, requestID := ensureRequestID(ctx)
	temperature := opts.temperature()
	topP := opts.topP()
	format := openai.ChatCompletionResponseFormatTypeText
	if opts.JSONMode {
		format = openai.ChatCompletionResponseFormatTypeJSONObject
	}

	c.logger.Debug("LLM chat request",
		zap.String("request_id", requestID.String()),
		zap.String("model", model),
		zap.Int("message_count", len(messages)),
		zap.Float64("temperature", temperature),
		zap.Float64("top_p", topP),
		zap.Bool("json_mode", opts.JSONMode))

	start := time.Now()

	resp, err := c.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          model,
		Messages:       buildOpenAIMessages(messages),
		Temperature:    wireFloat(temperature),
		TopP:           wireFloat(topP),
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: format},
	})
	if err != nil {
		c.logger.Debug("LLM chat request failed",
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.ErrNoChoices
	}

	promptTokens := resp.Usage.PromptTokens
	completionTokens := resp.Usage.CompletionTokens
	cost, err := c.table.ChatCost(model, promptTokens, completionTokens)
	if err != nil {
		return nil, fmt.Errorf("price chat usage: %w", err)
	}

	c.logger.Info("LLM chat completed",
		zap.String("model", model),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
		zap.String("cost", cost.String()),
		zap.Duration("elapsed", time.Since(start)))

	return &ChatResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Cost:             cost,
		Model:            model,
	}, nil
}

// FunctionCall forces the model to call tools[0] and decodes the arguments of
// the first tool call in the reply. The total token count is priced once at the
// output rate. An empty tools slice fails with apperrors.ErrNoTools before any
// request is made.
func (c *Client) FunctionCall(ctx context.Context, messages []Message, tools []ToolDefinition, opts FunctionCallOptions) (*FunctionResult, error) {
	if len(tools) == 0 {
		return nil, apperrors.ErrNoTools
	}
	forced := tools[0].Name
	if forced == "" {
		return nil, fmt.Errorf("%w: first tool has no name", apperrors.ErrNoTools)
	}

	model, err := c.resolveModel(opts.Model)
	if err != nil {
		return nil, err
	}

	ctx, requestID := ensureRequestID(ctx)
	temperature := opts.temperature()

	c.logger.Debug("LLM function call request",
		zap.String("request_id", requestID.String()),
		zap.String("model", model),
		zap.String("function", forced),
		zap.Int("tool_count", len(tools)),
		zap.Int("message_count", len(messages)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := c.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    buildOpenAIMessages(messages),
		Temperature: wireFloat(temperature),
		Tools:       buildOpenAITools(tools),
		ToolChoice:  forcedToolChoice(forced),
	})
	if err != nil {
		c.logger.Debug("LLM function call failed",
			zap.String("model", model),
			zap.String("function", forced),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.ErrNoChoices
	}

	totalTokens := resp.Usage.TotalTokens
	cost, err := c.table.FunctionCallCost(model, totalTokens)
	if err != nil {
		return nil, fmt.Errorf("price function call usage: %w", err)
	}

	toolCalls := resp.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return nil, apperrors.ErrNoToolCall
	}
	call := toolCalls[0].Function

	var parameters map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &parameters); err != nil {
		return nil, fmt.Errorf("decode function arguments: %w", err)
	}

	c.logger.Info("LLM function call completed",
		zap.String("model", model),
		zap.String("function", call.Name),
		zap.Int("total_tokens", totalTokens),
		zap.String("cost", cost.String()),
		zap.Duration("elapsed", time.Since(start)))

	return &FunctionResult{
		FunctionName:     call.Name,
		Parameters:       parameters,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      totalTokens,
		Cost:             cost,
		Model:            model,
	}, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint. Empty for injected completers.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

// Table returns the price table used to cost calls.
func (c *Client) Table() *pricing.Table {
	return c.table
}

// resolveModel picks the per-call override or the configured model.
// Models missing from the table are logged since they will be priced at zero.
func (c *Client) resolveModel(override string) (string, error) {
	model := c.model
	if override != "" {
		resolved, err := c.table.Resolve(override)
		if err != nil {
			return "", err
		}
		model = resolved
	}
	if _, ok := c.table.Lookup(model); !ok {
		c.logger.Warn("Model not in price table, cost will be zero", zap.String("model", model))
	}
	return model, nil
}

// contextAwareTransport copies the request id from the request context into
// the X-Request-Id header.
type contextAwareTransport struct {
	base http.RoundTripper
}

func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id, ok := RequestIDFromContext(req.Context()); ok {
		req = req.Clone(req.Context())
		req.Header.Set(requestIDHeader, id.String())
	}
	return t.base.RoundTrip(req)
}
