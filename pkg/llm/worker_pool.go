package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// WorkerPoolConfig bounds how many calls a batch keeps in flight.
type WorkerPoolConfig struct {
	MaxConcurrent int // default 8
}

// DefaultWorkerPoolConfig returns the batch defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{MaxConcurrent: 8}
}

// WorkerPool runs batches of calls on a fixed number of workers.
// A pool holds no per-batch state and may be shared by concurrent batches.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a pool. Non-positive limits fall back to the default.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("llm-worker-pool"),
	}
}

// MaxConcurrent returns the concurrency limit.
func (p *WorkerPool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem is one call in a batch.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult is the outcome of one WorkItem.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns one result per item in completion order.
// A failing item does not stop the batch. Items that have not started when ctx
// is done are reported with ctx.Err() without being executed. A panicking item
// is reported as an error.
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	workers := min(pool.config.MaxConcurrent, len(items))
	queue := make(chan int)
	out := make(chan WorkResult[T], len(items))

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range queue {
				if err := ctx.Err(); err != nil {
					out <- WorkResult[T]{ID: items[i].ID, Err: err}
					continue
				}
				out <- runItem(ctx, pool.logger, items[i])
			}
		}()
	}

	go func() {
		defer close(queue)
		for i := range items {
			if ctx.Err() != nil {
				out <- WorkResult[T]{ID: items[i].ID, Err: ctx.Err()}
				continue
			}
			select {
			case queue <- i:
			case <-ctx.Done():
				out <- WorkResult[T]{ID: items[i].ID, Err: ctx.Err()}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]WorkResult[T], 0, len(items))
	for res := range out {
		results = append(results, res)
		if onProgress != nil {
			onProgress(len(results), len(items))
		}
	}
	return results
}

func runItem[T any](ctx context.Context, logger *zap.Logger, item WorkItem[T]) (res WorkResult[T]) {
	res.ID = item.ID
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("work item %s panicked: %v", item.ID, r)
			logger.Error("Work item panicked", zap.String("id", item.ID), zap.Any("panic", r))
		}
	}()

	res.Result, res.Err = item.Execute(ctx)
	if res.Err != nil {
		logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(res.Err))
	}
	return res
}
