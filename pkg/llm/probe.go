package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TestResult contains connection test results.
type TestResult struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Model          string          `json:"model"`
	ErrorType      ErrorType       `json:"error_type,omitempty"`
	ResponseTimeMs int64           `json:"response_time_ms"`
	TotalTokens    int             `json:"total_tokens"`
	Cost           decimal.Decimal `json:"cost"`
}

// ConnectionTester checks that a client can reach its endpoint.
// This interface enables mocking in tests.
type ConnectionTester interface {
	Test(ctx context.Context, client LLMClient) *TestResult
}

type connectionTester struct {
	timeout time.Duration
}

// NewConnectionTester creates a tester that gives each probe the given timeout.
// A zero timeout selects 30 seconds.
func NewConnectionTester(timeout time.Duration) ConnectionTester {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &connectionTester{timeout: timeout}
}

// Test sends a one-line chat through the client and reports latency, cost,
// and the classified error type on failure.
func (t *connectionTester) Test(ctx context.Context, client LLMClient) *TestResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	model := client.GetModel()
	start := time.Now()

	result, err := client.Chat(ctx, []Message{UserMessage("Say 'ok' and nothing else.")}, ChatOptions{})

	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		classified := ClassifyError(err)
		return &TestResult{
			Message:        fmt.Sprintf("LLM connection failed: %s", classified.Message),
			Model:          model,
			ErrorType:      classified.Type,
			ResponseTimeMs: elapsed,
		}
	}

	return &TestResult{
		Success:        true,
		Message:        fmt.Sprintf("LLM connection successful (model: %s, %dms)", result.Model, elapsed),
		Model:          result.Model,
		ResponseTimeMs: elapsed,
		TotalTokens:    result.TotalTokens,
		Cost:           result.Cost,
	}
}

// Probe runs a connection test with the default 30 second timeout.
func Probe(ctx context.Context, client LLMClient) *TestResult {
	return NewConnectionTester(0).Test(ctx, client)
}

var _ ConnectionTester = (*connectionTester)(nil)
