package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

// LLMClientFactory is the interface for creating LLM clients.
// Use this interface for dependency injection and testing.
type LLMClientFactory interface {
	Create(cfg *Config) (LLMClient, error)
	CreateAsync(cfg *Config) (*AsyncClient, error)
}

// ClientFactory creates clients that share one price table and, optionally,
// one usage recorder.
type ClientFactory struct {
	table    *pricing.Table
	recorder UsageRecorder // Optional: if set, wraps clients to record usage
	logger   *zap.Logger
}

// NewClientFactory creates a new factory. A nil table selects pricing.Builtin().
func NewClientFactory(table *pricing.Table, logger *zap.Logger) *ClientFactory {
	if table == nil {
		table = pricing.Builtin()
	}
	return &ClientFactory{
		table:  table,
		logger: logger,
	}
}

// SetRecorder enables usage recording for all clients created by this factory.
// Pass nil to disable recording.
func (f *ClientFactory) SetRecorder(recorder UsageRecorder) {
	f.recorder = recorder
}

// Create builds a blocking client. If a recorder is set, the client is wrapped
// to record every call.
func (f *ClientFactory) Create(cfg *Config) (LLMClient, error) {
	client, err := NewClient(cfg, f.table, f.logger)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if f.recorder != nil {
		return NewRecordingClient(client, f.recorder), nil
	}

	return client, nil
}

// CreateAsync builds a client for the concurrent calling convention.
func (f *ClientFactory) CreateAsync(cfg *Config) (*AsyncClient, error) {
	client, err := f.Create(cfg)
	if err != nil {
		return nil, err
	}
	return NewAsyncClient(client), nil
}

// Ensure ClientFactory implements LLMClientFactory at compile time.
var _ LLMClientFactory = (*ClientFactory)(nil)
