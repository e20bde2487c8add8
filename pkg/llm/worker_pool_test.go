package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func constItem(id, result string) WorkItem[string] {
	return WorkItem[string]{ID: id, Execute: func(context.Context) (string, error) { return result, nil }}
}

func resultsByID[T any](results []WorkResult[T]) map[string]WorkResult[T] {
	m := make(map[string]WorkResult[T], len(results))
	for _, r := range results {
		m[r.ID] = r
	}
	return m
}

func TestProcess_AllItemsSucceed(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	results := Process(context.Background(), pool, []WorkItem[string]{
		constItem("a", "alpha"),
		constItem("b", "beta"),
		constItem("c", "gamma"),
	}, nil)

	require.Len(t, results, 3)
	got := resultsByID(results)
	for id, want := range map[string]string{"a": "alpha", "b": "beta", "c": "gamma"} {
		require.NoError(t, got[id].Err, id)
		assert.Equal(t, want, got[id].Result, id)
	}
}

func TestProcess_FailureDoesNotStopBatch(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 1}, zap.NewNop())
	boom := errors.New("boom")

	results := Process(context.Background(), pool, []WorkItem[string]{
		constItem("a", "alpha"),
		{ID: "b", Execute: func(context.Context) (string, error) { return "", boom }},
		constItem("c", "gamma"),
	}, nil)

	got := resultsByID(results)
	require.Len(t, got, 3)
	assert.NoError(t, got["a"].Err)
	assert.Same(t, boom, got["b"].Err)
	assert.Equal(t, "gamma", got["c"].Result)
}

func TestProcess_EmptyBatch(t *testing.T) {
	pool := NewWorkerPool(DefaultWorkerPoolConfig(), nil)
	assert.Nil(t, Process[string](context.Background(), pool, nil, nil))
}

func TestProcess_CancelSkipsPendingItems(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var executed atomic.Int32
	blocking := func(ctx context.Context) (string, error) {
		executed.Add(1)
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}

	results := Process(ctx, pool, []WorkItem[string]{
		{ID: "first", Execute: blocking},
		{ID: "second", Execute: blocking},
		{ID: "third", Execute: blocking},
	}, nil)

	require.Len(t, results, 3)
	assert.Equal(t, int32(1), executed.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled, r.ID)
	}
}

func TestProcess_RespectsConcurrencyLimit(t *testing.T) {
	const limit = 3
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: limit}, zap.NewNop())

	var inFlight, peak atomic.Int32
	items := make([]WorkItem[int], 12)
	for i := range items {
		items[i] = WorkItem[int]{
			ID: fmt.Sprintf("item-%d", i),
			Execute: func(context.Context) (int, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return i, nil
			},
		}
	}

	results := Process(context.Background(), pool, items, nil)

	assert.Len(t, results, len(items))
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestProcess_PanicBecomesError(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	results := Process(context.Background(), pool, []WorkItem[string]{
		{ID: "bad", Execute: func(context.Context) (string, error) { panic("nil map") }},
		constItem("good", "ok"),
	}, nil)

	got := resultsByID(results)
	require.Error(t, got["bad"].Err)
	assert.Contains(t, got["bad"].Err.Error(), "work item bad panicked: nil map")
	assert.Equal(t, "ok", got["good"].Result)
}

func TestProcess_ProgressCountsUp(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 4}, zap.NewNop())

	var seen []int
	var totals []int
	Process(context.Background(), pool, []WorkItem[string]{
		constItem("a", "1"), constItem("b", "2"), constItem("c", "3"), constItem("d", "4"),
	}, func(completed, total int) {
		seen = append(seen, completed)
		totals = append(totals, total)
	})

	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.Equal(t, []int{4, 4, 4, 4}, totals)
}

func TestNewWorkerPool_Defaults(t *testing.T) {
	assert.Equal(t, 8, DefaultWorkerPoolConfig().MaxConcurrent)
	assert.Equal(t, 8, NewWorkerPool(WorkerPoolConfig{}, nil).MaxConcurrent())
	assert.Equal(t, 8, NewWorkerPool(WorkerPoolConfig{MaxConcurrent: -2}, nil).MaxConcurrent())
	assert.Equal(t, 5, NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 5}, nil).MaxConcurrent())
}
