package llm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/gepetto/pkg/logging"
	"github.com/ekaya-inc/gepetto/pkg/models"
)

// RecordingClient wraps an LLMClient and hands a usage record for every call,
// successful or not, to a UsageRecorder. Results and errors pass through unchanged.
type RecordingClient struct {
	inner    LLMClient
	recorder UsageRecorder
}

// NewRecordingClient creates a new recording wrapper around an LLMClient.
func NewRecordingClient(inner LLMClient, recorder UsageRecorder) *RecordingClient {
	return &RecordingClient{
		inner:    inner,
		recorder: recorder,
	}
}

// Chat calls the inner client and records the outcome.
func (c *RecordingClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error) {
	ctx, requestID := ensureRequestID(ctx)
	rec := c.newRecord(ctx, requestID, models.UsageKindChat, opts.Model, opts.temperature())

	start := time.Now()
	result, err := c.inner.Chat(ctx, messages, opts)
	rec.DurationMs = int(time.Since(start).Milliseconds())

	if err != nil {
		c.recordError(rec, err)
		return result, err
	}

	rec.Status = models.UsageStatusSuccess
	rec.Model = result.Model
	rec.PromptTokens = result.PromptTokens
	rec.CompletionTokens = result.CompletionTokens
	rec.TotalTokens = result.TotalTokens
	rec.Cost = result.Cost
	c.recorder.Record(rec)

	return result, nil
}

// FunctionCall calls the inner client and records the outcome.
func (c *RecordingClient) FunctionCall(ctx context.Context, messages []Message, tools []ToolDefinition, opts FunctionCallOptions) (*FunctionResult, error) {
	ctx, requestID := ensureRequestID(ctx)
	rec := c.newRecord(ctx, requestID, models.UsageKindFunctionCall, opts.Model, opts.temperature())
	if len(tools) > 0 {
		rec.FunctionName = tools[0].Name
	}

	start := time.Now()
	result, err := c.inner.FunctionCall(ctx, messages, tools, opts)
	rec.DurationMs = int(time.Since(start).Milliseconds())

	if err != nil {
		c.recordError(rec, err)
		return result, err
	}

	rec.Status = models.UsageStatusSuccess
	rec.Model = result.Model
	if result.FunctionName != "" {
		rec.FunctionName = result.FunctionName
	}
	rec.PromptTokens = result.PromptTokens
	rec.CompletionTokens = result.CompletionTokens
	rec.TotalTokens = result.TotalTokens
	rec.Cost = result.Cost
	c.recorder.Record(rec)

	return result, nil
}

// GetModel returns the inner client's model.
func (c *RecordingClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the inner client's endpoint.
func (c *RecordingClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

func (c *RecordingClient) newRecord(
	ctx context.Context,
	requestID uuid.UUID,
	kind models.UsageKind,
	model string,
	temperature float64,
) *models.UsageRecord {
	if model == "" {
		model = c.inner.GetModel()
	}
	return &models.UsageRecord{
		ID:          uuid.New(),
		RequestID:   requestID,
		Kind:        kind,
		Context:     GetContext(ctx),
		Endpoint:    c.inner.GetEndpoint(),
		Model:       model,
		Temperature: &temperature,
		CreatedAt:   time.Now(),
	}
}

func (c *RecordingClient) recordError(rec *models.UsageRecord, err error) {
	rec.Status = models.UsageStatusError
	rec.ErrorMessage = logging.SanitizeError(err)
	c.recorder.Record(rec)
}

var _ LLMClient = (*RecordingClient)(nil)
