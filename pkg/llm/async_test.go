package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

func TestAsyncClient_ChatAsync(t *testing.T) {
	completer := NewMockCompleter(chatResponse(pricing.DefaultModel, "pong", 100, 50))
	client, err := NewClientWithCompleter(completer, nil, "", zap.NewNop())
	require.NoError(t, err)

	async := NewAsyncClient(client)
	assert.Same(t, client, async.Inner())

	future := async.ChatAsync(context.Background(), []Message{UserMessage("ping")}, ChatOptions{})
	result, err := future.Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "pong", result.Text)
	assert.True(t, decimal.RequireFromString("0.0008").Equal(result.Cost))

	select {
	case <-future.Done():
	default:
		t.Fatal("Done should be closed after Await returns a result")
	}
}

func TestAsyncClient_ConcurrentOverridesAreIndependent(t *testing.T) {
	completer := &MockCompleter{
		CreateFunc: func(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			time.Sleep(5 * time.Millisecond)
			return chatResponse(req.Model, "reply from "+req.Model, 1000, 1000), nil
		},
	}
	client, err := NewClientWithCompleter(completer, nil, "", zap.NewNop())
	require.NoError(t, err)
	async := NewAsyncClient(client)

	models := []string{"gpt-4", "gpt-4o-mini", "gpt-3.5-turbo", "", "gpt-4o"}
	futures := make([]*Future[*ChatResult], len(models))
	for i, model := range models {
		futures[i] = async.ChatAsync(context.Background(), []Message{UserMessage("hi")}, ChatOptions{Model: model})
	}

	for i, future := range futures {
		result, err := future.Await(context.Background())
		require.NoError(t, err)

		want := models[i]
		if want == "" {
			want = pricing.DefaultModel
		}
		assert.Equal(t, want, result.Model)
		assert.Equal(t, "reply from "+want, result.Text)

		expected, err := pricing.Builtin().ChatCost(want, 1000, 1000)
		require.NoError(t, err)
		assert.True(t, expected.Equal(result.Cost), "model %s: cost %s, want %s", want, result.Cost, expected)
	}

	assert.Equal(t, pricing.DefaultModel, client.GetModel())
	assert.Len(t, completer.Requests(), len(models))
}

func TestAsyncClient_FunctionCallAsync(t *testing.T) {
	mock := NewMockLLMClient()
	mock.FunctionCallFunc = func(_ context.Context, _ []Message, tools []ToolDefinition, _ FunctionCallOptions) (*FunctionResult, error) {
		return &FunctionResult{FunctionName: tools[0].Name, Parameters: map[string]any{"city": "Paris"}}, nil
	}

	future := NewAsyncClient(mock).FunctionCallAsync(context.Background(),
		[]Message{UserMessage("weather?")}, []ToolDefinition{weatherTool()}, FunctionCallOptions{})
	result, err := future.Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "get_weather", result.FunctionName)
	assert.Equal(t, "Paris", result.Parameters["city"])
	assert.Equal(t, int32(1), mock.FunctionCallCalls.Load())
}

func TestFuture_AwaitStopsOnContextCancel(t *testing.T) {
	release := make(chan struct{})
	mock := NewMockLLMClient()
	mock.ChatFunc = func(ctx context.Context, _ []Message, _ ChatOptions) (*ChatResult, error) {
		<-release
		return &ChatResult{Text: "late"}, nil
	}
	defer close(release)

	future := NewAsyncClient(mock).ChatAsync(context.Background(), nil, ChatOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := future.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAsyncClient_ChatAll_PreservesOrder(t *testing.T) {
	mock := NewMockLLMClient()
	mock.ChatFunc = func(_ context.Context, messages []Message, _ ChatOptions) (*ChatResult, error) {
		// Later jobs finish first.
		n, err := strconv.Atoi(messages[0].Content)
		if err != nil {
			return nil, err
		}
		time.Sleep(time.Duration(5-n) * time.Millisecond)
		return &ChatResult{Text: messages[0].Content}, nil
	}

	jobs := make([]ChatJob, 5)
	for i := range jobs {
		jobs[i] = ChatJob{Messages: []Message{UserMessage(fmt.Sprintf("%d", i))}}
	}

	results, err := NewAsyncClient(mock).ChatAll(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("%d", i), r.Text)
	}
}

func TestAsyncClient_ChatAll_FirstErrorCancelsRest(t *testing.T) {
	boom := errors.New("boom")
	var mu sync.Mutex
	var cancelled int

	mock := NewMockLLMClient()
	mock.ChatFunc = func(ctx context.Context, messages []Message, _ ChatOptions) (*ChatResult, error) {
		if messages[0].Content == "fail" {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			mu.Lock()
			cancelled++
			mu.Unlock()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return &ChatResult{}, nil
		}
	}

	jobs := []ChatJob{
		{ID: "slow-1", Messages: []Message{UserMessage("wait")}},
		{ID: "bad", Messages: []Message{UserMessage("fail")}},
		{ID: "slow-2", Messages: []Message{UserMessage("wait")}},
	}

	results, err := NewAsyncClient(mock).ChatAll(context.Background(), jobs)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "job bad")
	assert.Nil(t, results)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, cancelled)
}

func TestAsyncClient_ChatBatch_CollectsAllOutcomes(t *testing.T) {
	boom := errors.New("boom")
	mock := NewMockLLMClient()
	mock.ChatFunc = func(_ context.Context, messages []Message, opts ChatOptions) (*ChatResult, error) {
		if messages[0].Content == "fail" {
			return nil, boom
		}
		return &ChatResult{Text: messages[0].Content, Model: opts.Model}, nil
	}

	jobs := []ChatJob{
		{ID: "a", Messages: []Message{UserMessage("one")}, Options: ChatOptions{Model: "gpt-4"}},
		{Messages: []Message{UserMessage("fail")}},
		{ID: "c", Messages: []Message{UserMessage("three")}},
	}

	var progress []int
	var mu sync.Mutex
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())
	results := NewAsyncClient(mock).ChatBatch(context.Background(), pool, jobs, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		progress = append(progress, completed)
	})

	require.Len(t, results, 3)
	byID := make(map[string]WorkResult[*ChatResult])
	for _, r := range results {
		byID[r.ID] = r
	}

	require.Contains(t, byID, "a")
	require.Contains(t, byID, "#1")
	require.Contains(t, byID, "c")
	assert.Equal(t, "gpt-4", byID["a"].Result.Model)
	assert.ErrorIs(t, byID["#1"].Err, boom)
	assert.Equal(t, "three", byID["c"].Result.Text)
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, int32(3), mock.ChatCalls.Load())
}
