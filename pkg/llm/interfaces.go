// Package llm provides a metered client for OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Completer issues a single chat completion request.
// *openai.Client satisfies this interface; tests and alternative transports can
// inject their own implementation.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMClient defines the metered chat and function-call operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// Chat sends the conversation and returns the reply text with usage and cost.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error)

	// FunctionCall forces the model to invoke tools[0] and returns its decoded arguments.
	FunctionCall(ctx context.Context, messages []Message, tools []ToolDefinition, opts FunctionCallOptions) (*FunctionResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure implementations satisfy their interfaces at compile time.
var (
	_ Completer = (*openai.Client)(nil)
	_ LLMClient = (*Client)(nil)
)
