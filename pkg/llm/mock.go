package llm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set the function fields to control behavior in tests. It is safe for
// concurrent use so it can sit behind an AsyncClient.
type MockLLMClient struct {
	// ChatFunc is called when Chat is invoked.
	// If nil, returns an empty result priced at zero and nil error.
	ChatFunc func(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error)

	// FunctionCallFunc is called when FunctionCall is invoked.
	// If nil, returns the first tool's name with empty parameters.
	FunctionCallFunc func(ctx context.Context, messages []Message, tools []ToolDefinition, opts FunctionCallOptions) (*FunctionResult, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	ChatCalls         atomic.Int32
	FunctionCallCalls atomic.Int32
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// Chat implements LLMClient.
func (m *MockLLMClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error) {
	m.ChatCalls.Add(1)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages, opts)
	}
	model := opts.Model
	if model == "" {
		model = m.GetModel()
	}
	return &ChatResult{Model: model, Cost: decimal.Zero}, nil
}

// FunctionCall implements LLMClient.
func (m *MockLLMClient) FunctionCall(ctx context.Context, messages []Message, tools []ToolDefinition, opts FunctionCallOptions) (*FunctionResult, error) {
	m.FunctionCallCalls.Add(1)
	if m.FunctionCallFunc != nil {
		return m.FunctionCallFunc(ctx, messages, tools, opts)
	}
	result := &FunctionResult{Parameters: map[string]any{}, Cost: decimal.Zero, Model: m.GetModel()}
	if len(tools) > 0 {
		result.FunctionName = tools[0].Name
	}
	return result, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking counters.
func (m *MockLLMClient) Reset() {
	m.ChatCalls.Store(0)
	m.FunctionCallCalls.Store(0)
}

// Ensure MockLLMClient implements LLMClient at compile time.
var _ LLMClient = (*MockLLMClient)(nil)

// MockCompleter stands in for the OpenAI transport and records every request.
type MockCompleter struct {
	// CreateFunc is called for each request.
	// If nil, returns an empty response and nil error.
	CreateFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
}

// NewMockCompleter returns a completer that always answers with resp.
func NewMockCompleter(resp openai.ChatCompletionResponse) *MockCompleter {
	return &MockCompleter{
		CreateFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return resp, nil
		},
	}
}

// CreateChatCompletion implements Completer.
func (m *MockCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return openai.ChatCompletionResponse{}, nil
}

// Requests returns a copy of the requests seen so far.
func (m *MockCompleter) Requests() []openai.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]openai.ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request. It panics if there is none.
func (m *MockCompleter) LastRequest() openai.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

var _ Completer = (*MockCompleter)(nil)

// MockClientFactory is a configurable mock for testing LLM client creation.
type MockClientFactory struct {
	// CreateFunc is called when Create is invoked.
	// If nil, returns MockClient.
	CreateFunc func(cfg *Config) (LLMClient, error)

	// MockClient is the default client returned if functions are not set.
	MockClient *MockLLMClient
}

// NewMockClientFactory creates a new mock client factory.
func NewMockClientFactory() *MockClientFactory {
	return &MockClientFactory{
		MockClient: NewMockLLMClient(),
	}
}

// Create implements LLMClientFactory.
func (f *MockClientFactory) Create(cfg *Config) (LLMClient, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(cfg)
	}
	return f.MockClient, nil
}

// CreateAsync implements LLMClientFactory.
func (f *MockClientFactory) CreateAsync(cfg *Config) (*AsyncClient, error) {
	client, err := f.Create(cfg)
	if err != nil {
		return nil, err
	}
	return NewAsyncClient(client), nil
}

// Ensure MockClientFactory implements LLMClientFactory at compile time.
var _ LLMClientFactory = (*MockClientFactory)(nil)
