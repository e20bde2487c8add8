package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gepetto/pkg/models"
	"github.com/ekaya-inc/gepetto/pkg/repositories"
)

// UsageRecorder receives one record per metered call.
type UsageRecorder interface {
	// Record queues a completed call for persistence. It must not block the caller.
	Record(rec *models.UsageRecord)
}

// AsyncUsageRecorder persists usage records on a background goroutine so
// recording never delays an LLM call.
type AsyncUsageRecorder struct {
	repo        repositories.UsageRepository
	logger      *zap.Logger
	saveTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *models.UsageRecord
	done   chan struct{}
}

// NewAsyncUsageRecorder creates a new async recorder.
// queueSize controls the buffer size - if full, records are dropped with a warning.
func NewAsyncUsageRecorder(repo repositories.UsageRepository, logger *zap.Logger, queueSize int) *AsyncUsageRecorder {
	if queueSize <= 0 {
		queueSize = 100
	}

	r := &AsyncUsageRecorder{
		repo:        repo,
		logger:      logger.Named("usage-recorder"),
		saveTimeout: 5 * time.Second,
		queue:       make(chan *models.UsageRecord, queueSize),
		done:        make(chan struct{}),
	}

	go r.processQueue()

	return r
}

// Record queues a usage record for async persistence.
// Non-blocking - if the queue is full or the recorder is closed, the record is dropped.
func (r *AsyncUsageRecorder) Record(rec *models.UsageRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("Usage recorder closed, dropping record",
			zap.String("request_id", rec.RequestID.String()))
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("Usage record queue full, dropping entry",
			zap.String("request_id", rec.RequestID.String()),
			zap.String("model", rec.Model))
	}
}

// Close stops accepting records and waits for queued records to be saved.
func (r *AsyncUsageRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *AsyncUsageRecorder) processQueue() {
	defer close(r.done)

	for rec := range r.queue {
		r.save(rec)
	}
}

func (r *AsyncUsageRecorder) save(rec *models.UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.saveTimeout)
	defer cancel()

	if err := r.repo.Save(ctx, rec); err != nil {
		r.logger.Error("Failed to save LLM usage",
			zap.String("request_id", rec.RequestID.String()),
			zap.String("model", rec.Model),
			zap.Error(err))
		return
	}

	r.logger.Debug("Saved LLM usage",
		zap.String("request_id", rec.RequestID.String()),
		zap.String("model", rec.Model),
		zap.String("cost", rec.Cost.String()),
		zap.Int("duration_ms", rec.DurationMs))
}

var _ UsageRecorder = (*AsyncUsageRecorder)(nil)
