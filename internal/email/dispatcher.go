package email

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildwise/backend/internal/model"
)

const (
	// DefaultDispatcherBuffer is the capacity of the dispatcher channel.
	DefaultDispatcherBuffer = 256
	enqueueTimeout          = 10 * time.Second
)

// Queuer stores a notification for later delivery.
type Queuer interface {
	Queue(ctx context.Context, to string, event model.EmailEventType, data TemplateData, userID string) (*model.EmailNotification, error)
}

// DropRecorder counts notifications that never reached the table.
type DropRecorder interface {
	RecordNotificationDropped(reason string)
}

// Job is a notification waiting to be queued.
type Job struct {
	To     string
	Event  model.EmailEventType
	Data   TemplateData
	UserID string
}

// Dispatcher hands notifications from request handlers to the queue table
// without blocking the request. Jobs live in a bounded in-memory buffer.
type Dispatcher struct {
	queue   Queuer
	jobs    chan Job
	metrics DropRecorder
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	done    chan struct{}
}

// NewDispatcher creates a Dispatcher. size <= 0 uses DefaultDispatcherBuffer.
func NewDispatcher(queue Queuer, size int, metrics DropRecorder, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultDispatcherBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:   queue,
		jobs:    make(chan Job, size),
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Submit enqueues job without blocking. It returns false when the buffer is
// full or the dispatcher is closed.
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// NotifySignup submits the welcome email of user.
func (d *Dispatcher) NotifySignup(user *model.User) bool {
	return d.Submit(Job{
		To:     user.Email,
		Event:  model.EmailEventUserSignup,
		Data:   TemplateData{Name: user.Name, Email: user.Email},
		UserID: user.ID,
	})
}

// Run stores submitted jobs until Close is called or ctx is canceled.
// On cancellation the jobs already buffered are still stored.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	defer close(d.done)

	for {
		select {
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.handle(ctx, job)
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

// Close stops accepting jobs and waits until Run has stored the buffered ones.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	if !d.started.Load() {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.handle(ctx, job)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	if _, err := d.queue.Queue(ctx, job.To, job.Event, job.Data, job.UserID); err != nil {
		d.logger.Error("failed to queue notification",
			slog.String("event_type", string(job.Event)),
			slog.String("user_id", job.UserID),
			slog.String("error", err.Error()),
		)
		if d.metrics != nil {
			d.metrics.RecordNotificationDropped("store_failed")
		}
	}
}
