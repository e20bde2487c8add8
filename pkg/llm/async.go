package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Future is the pending result of a call started by AsyncClient.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

func startFuture[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the call has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call finishes or ctx is done. Cancelling ctx here only
// stops waiting; the call itself follows the context it was started with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncClient is the concurrent calling convention over any LLMClient.
// Each call runs on its own goroutine; the wrapped client is shared read-only,
// so calls with different model overrides do not interfere.
type AsyncClient struct {
	inner LLMClient
}

// NewAsyncClient wraps a client for concurrent use.
func NewAsyncClient(inner LLMClient) *AsyncClient {
	return &AsyncClient{inner: inner}
}

// Inner returns the wrapped blocking client.
func (a *AsyncClient) Inner() LLMClient {
	return a.inner
}

// ChatAsync starts a Chat call and returns immediately.
// messages must not be modified until the future completes.
func (a *AsyncClient) ChatAsync(ctx context.Context, messages []Message, opts ChatOptions) *Future[*ChatResult] {
	return startFuture(ctx, func(ctx context.Context) (*ChatResult, error) {
		return a.inner.Chat(ctx, messages, opts)
	})
}

// FunctionCallAsync starts a FunctionCall and returns immediately.
func (a *AsyncClient) FunctionCallAsync(ctx context.Context, messages []Message, tools []ToolDefinition, opts FunctionCallOptions) *Future[*FunctionResult] {
	return startFuture(ctx, func(ctx context.Context) (*FunctionResult, error) {
		return a.inner.FunctionCall(ctx, messages, tools, opts)
	})
}

// ChatJob is one Chat call in a batch.
type ChatJob struct {
	ID       string
	Messages []Message
	Options  ChatOptions
}

// ChatAll runs every job concurrently and returns results in job order.
// The first failure cancels the remaining calls and is returned.
func (a *AsyncClient) ChatAll(ctx context.Context, jobs []ChatJob) ([]*ChatResult, error) {
	results := make([]*ChatResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := a.inner.Chat(gctx, job.Messages, job.Options)
			if err != nil {
				return fmt.Errorf("job %s: %w", jobLabel(job, i), err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ChatBatch runs every job through the worker pool and collects all outcomes,
// successful or not, in completion order.
func (a *AsyncClient) ChatBatch(
	ctx context.Context,
	pool *WorkerPool,
	jobs []ChatJob,
	onProgress func(completed, total int),
) []WorkResult[*ChatResult] {
	items := make([]WorkItem[*ChatResult], len(jobs))
	for i, job := range jobs {
		items[i] = WorkItem[*ChatResult]{
			ID: jobLabel(job, i),
			Execute: func(ctx context.Context) (*ChatResult, error) {
				return a.inner.Chat(ctx, job.Messages, job.Options)
			},
		}
	}
	return Process(ctx, pool, items, onProgress)
}

func jobLabel(job ChatJob, index int) string {
	if job.ID != "" {
		return job.ID
	}
	return fmt.Sprintf("#%d", index)
}
