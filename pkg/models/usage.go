package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageKind identifies which operation produced a usage record.
type UsageKind string

const (
	UsageKindChat         UsageKind = "chat"
	UsageKindFunctionCall UsageKind = "function_call"
)

// Status values for usage records.
const (
	UsageStatusSuccess = "success"
	UsageStatusError   = "error"
)

// UsageRecord is the metered outcome of one LLM call.
type UsageRecord struct {
	ID        uuid.UUID      `json:"id"`
	RequestID uuid.UUID      `json:"request_id"`
	Kind      UsageKind      `json:"kind"`
	Context   map[string]any `json:"context,omitempty"` // Caller metadata from llm.WithContext

	// Model info
	Endpoint     string   `json:"endpoint"`
	Model        string   `json:"model"`
	FunctionName string   `json:"function_name,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`

	// Metrics
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	Cost             decimal.Decimal `json:"cost"`
	DurationMs       int             `json:"duration_ms"`

	// Status
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UsageSummary aggregates successful calls for one model.
type UsageSummary struct {
	Model            string          `json:"model"`
	Calls            int             `json:"calls"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	Cost             decimal.Decimal `json:"cost"`
}
