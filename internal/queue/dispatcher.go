package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/telemetry"
)

// ErrNotConfigured is returned when no dispatch backend is available.
var ErrNotConfigured = errors.New("job queue not configured")

// Dispatcher hands an analysis job to whatever runs the pipeline.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg Message) error
}

// HandlerFunc runs one job to completion.
type HandlerFunc func(ctx context.Context, msg Message)

// InlineDispatcher runs jobs on in-process goroutines, bounded by a semaphore.
type InlineDispatcher struct {
	handler HandlerFunc
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewInlineDispatcher constructs a dispatcher allowing concurrency parallel jobs.
func NewInlineDispatcher(handler HandlerFunc, concurrency int) *InlineDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &InlineDispatcher{handler: handler, sem: make(chan struct{}, concurrency)}
}

// Enqueue schedules the job and returns immediately. Request-scoped values on
// ctx are kept; its cancellation is not.
func (d *InlineDispatcher) Enqueue(ctx context.Context, msg Message) error {
	if d == nil || d.handler == nil {
		return ErrNotConfigured
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("dispatcher is shut down")
	}
	d.wg.Add(1)
	d.mu.Unlock()

	jobCtx := context.WithoutCancel(ctx)
	metrics.IncJobsEnqueued()
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		metrics.IncJobsReceived()
		d.handler(jobCtx, msg)
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for in-flight ones or ctx expiry.
func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsynqEnqueuer is the subset of *asynq.Client used for dispatch.
type AsynqEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher publishes jobs to Redis for cmd/worker. Jobs get a single
// attempt; a failed run is already recorded on the job itself.
type AsynqDispatcher struct {
	client AsynqEnqueuer
	queue  string
}

// NewAsynqDispatcher constructs a dispatcher over an asynq client.
func NewAsynqDispatcher(client AsynqEnqueuer, queueName string) *AsynqDispatcher {
	if queueName == "" {
		queueName = "default"
	}
	return &AsynqDispatcher{client: client, queue: queueName}
}

// NewTask builds the asynq task for msg.
func NewTask(msg Message) (*asynq.Task, error) {
	data, err := EncodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeAnalysisRun, data), nil
}

// Enqueue publishes msg.
func (d *AsynqDispatcher) Enqueue(ctx context.Context, msg Message) error {
	if d == nil || d.client == nil {
		return ErrNotConfigured
	}
	task, err := NewTask(msg)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Queue(d.queue))
	if err != nil {
		metrics.IncJobsEnqueueFailed()
		return fmt.Errorf("enqueue analysis task: %w", err)
	}
	metrics.IncJobsEnqueued()
	telemetry.Info("queue.enqueued", map[string]any{
		"analysis_id": msg.AnalysisID,
		"request_id":  msg.RequestID,
		"task_id":     info.ID,
		"queue":       info.Queue,
	})
	return nil
}
