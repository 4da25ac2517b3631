// Package opqueue buffers client-side plan edits and replays them against
// the sync API until they stick. Pending operations survive reloads through
// a pluggable cache. Failed deliveries are retried with capped exponential
// backoff; after MaxRetries strikes an operation is parked as failed and
// surfaced to the caller instead of being retried forever.
package opqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// --- Error Definitions ---

var (
	ErrNoSession        = errors.New("operation queue requires a session id")
	ErrQueueClosed      = errors.New("operation queue is closed")
	ErrInvalidOperation = errors.New("operation is missing required fields")
)

// Status is the save-state surfaced to the UI layer.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// Sender delivers one operation to the server boundary. Any error is
// treated as retryable; permanence is only inferred from the retry cap.
type Sender interface {
	Apply(ctx context.Context, op Operation) error
}

// Config wires a Queue to one editing session.
type Config struct {
	// SessionID scopes the persisted cache entry. Required.
	SessionID string
	// Sender delivers operations to the server. Required.
	Sender Sender
	// Cache persists pending operations across reloads. Defaults to an
	// in-process MemoryCache.
	Cache Cache
	// MaxRetries caps attempts per operation before it is parked as
	// failed. Defaults to 3.
	MaxRetries int
	// BaseDelay and MaxDelay bound the retry backoff, which doubles per
	// retry. Defaults 1s and 30s.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// OnStatus observes save-state transitions and the pending count.
	OnStatus func(status Status, pending int)
	// OnFailed observes operations dropped after MaxRetries attempts.
	OnFailed func(op Operation, err error)
}

// Queue is a durable, retrying buffer of plan edit operations for one
// editing session. At most one drain runs at a time; operations are
// attempted in submission order and individually, so one failing operation
// never blocks the ones queued after it.
type Queue struct {
	cfg      Config
	cacheKey string
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	pending  []Operation
	failed   []Operation
	status   Status
	draining bool
	closed   bool
	timer    *time.Timer
}

// New binds a queue to a session, recovers any persisted operations for it
// and, if some were recovered, immediately starts draining them.
func New(cfg Config) (*Queue, error) {
	if cfg.SessionID == "" {
		return nil, ErrNoSession
	}
	if cfg.Sender == nil {
		return nil, errors.New("operation queue requires a sender")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:      cfg,
		cacheKey: "pendingops:" + cfg.SessionID,
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusIdle,
	}

	data, ok, err := cfg.Cache.Get(q.cacheKey)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("reading operation cache: %w", err)
	}
	if ok {
		var state cacheState
		if err := json.Unmarshal(data, &state); err != nil {
			// A corrupt entry is dropped rather than blocking the session.
			_ = cfg.Cache.Remove(q.cacheKey)
		} else {
			q.pending = state.Pending
			q.failed = state.Failed
		}
	}
	if len(q.pending) > 0 {
		q.triggerDrain()
	}
	return q, nil
}

// Enqueue appends an operation, persists the pending list and triggers a
// drain. Missing ID, timestamp and (for creates) set ID are filled in. The
// operation stays queued in memory even when persisting fails; the returned
// error only reports the cache write.
func (q *Queue) Enqueue(op Operation) error {
	if err := validateOperation(op); err != nil {
		return err
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.SetID == "" {
		op.SetID = uuid.NewString()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, op)
	persistErr := q.persistLocked()
	status, count := q.status, len(q.pending)
	q.mu.Unlock()

	q.notify(status, count)
	q.triggerDrain()
	return persistErr
}

// SaveNow forces an immediate drain attempt, bypassing the backoff timer.
// It is a no-op while a drain is already in flight.
func (q *Queue) SaveNow() {
	q.triggerDrain()
}

// Close stops the backoff timer, aborts an in-flight delivery and persists
// the current state. Pending operations stay in the cache for the next
// bind of the same session.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	err := q.persistLocked()
	q.mu.Unlock()
	q.cancel()
	return err
}

// PendingCount reports the number of operations awaiting delivery.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Status reports the current save-state.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// FailedOperations returns the operations parked after exhausting their
// retries, oldest first.
func (q *Queue) FailedOperations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation(nil), q.failed...)
}

// ClearFailed drops the parked failures and rewrites the cache entry.
func (q *Queue) ClearFailed() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = nil
	return q.persistLocked()
}

func validateOperation(op Operation) error {
	switch op.Type {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return ErrInvalidOperation
	}
	if op.ExerciseID == "" {
		return ErrInvalidOperation
	}
	if op.SetID == "" && op.Type != OpCreate {
		return ErrInvalidOperation
	}
	return nil
}

// triggerDrain starts a drain goroutine unless one is already running, the
// queue is empty or the queue is closed. A scheduled retry timer is
// cancelled because the drain supersedes it.
func (q *Queue) triggerDrain() {
	q.mu.Lock()
	if q.closed || q.draining || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.draining = true
	q.status = StatusSaving
	count := len(q.pending)
	q.mu.Unlock()

	q.notify(StatusSaving, count)
	go q.drain(q.ctx)
}

func (q *Queue) onRetryTimer() {
	q.mu.Lock()
	q.timer = nil
	q.mu.Unlock()
	q.triggerDrain()
}

// drain attempts every pending operation in submission order. Successes
// are discarded, failures kept with an incremented retry count, and
// operations at the retry cap are parked as failed. If survivors remain a
// retry is scheduled from the first survivor's retry count; if only fresh
// arrivals remain the loop runs another pass immediately.
func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if q.closed || len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		batch := append([]Operation(nil), q.pending...)
		q.mu.Unlock()

		var survivors []Operation
		var dropped []Operation
		var causes []error
		for i, op := range batch {
			if ctx.Err() != nil {
				// Shutdown mid-pass: keep the rest untouched.
				survivors = append(survivors, batch[i:]...)
				break
			}
			err := q.cfg.Sender.Apply(ctx, op)
			if err == nil {
				continue
			}
			op.RetryCount++
			if op.RetryCount >= q.cfg.MaxRetries {
				dropped = append(dropped, op)
				causes = append(causes, err)
				continue
			}
			survivors = append(survivors, op)
		}

		q.mu.Lock()
		arrivals := q.pending[len(batch):]
		q.pending = append(append([]Operation(nil), survivors...), arrivals...)
		q.failed = append(q.failed, dropped...)
		persistErr := q.persistLocked()
		pendingCount := len(q.pending)

		var status Status
		switch {
		case pendingCount == 0 && len(dropped) == 0:
			status = StatusSaved
		case len(survivors) > 0 || len(dropped) > 0:
			status = StatusError
		default:
			// Only operations enqueued during the pass remain.
			status = StatusSaving
		}
		if persistErr != nil {
			status = StatusError
		}
		q.status = status

		schedule := len(survivors) > 0 && !q.closed
		if schedule {
			delay := q.backoffDelay(q.pending[0].RetryCount)
			q.draining = false
			q.timer = time.AfterFunc(delay, q.onRetryTimer)
		} else if pendingCount == 0 || q.closed {
			q.draining = false
		}
		again := !schedule && pendingCount > 0 && !q.closed
		q.mu.Unlock()

		for i, op := range dropped {
			if q.cfg.OnFailed != nil {
				q.cfg.OnFailed(op, causes[i])
			}
		}
		q.notify(status, pendingCount)

		if !again {
			return
		}
	}
}

// backoffDelay doubles the base delay once per retry, capped at MaxDelay.
func (q *Queue) backoffDelay(retryCount int) time.Duration {
	delay := q.cfg.BaseDelay
	for i := 0; i < retryCount && delay < q.cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > q.cfg.MaxDelay {
		delay = q.cfg.MaxDelay
	}
	return delay
}

// persistLocked rewrites the cache entry for the session, or removes it
// when there is nothing left to recover. Callers hold q.mu.
func (q *Queue) persistLocked() error {
	if len(q.pending) == 0 && len(q.failed) == 0 {
		return q.cfg.Cache.Remove(q.cacheKey)
	}
	data, err := json.Marshal(cacheState{Pending: q.pending, Failed: q.failed})
	if err != nil {
		return fmt.Errorf("encoding operation cache: %w", err)
	}
	return q.cfg.Cache.Set(q.cacheKey, data)
}

func (q *Queue) notify(status Status, pending int) {
	if q.cfg.OnStatus != nil {
		q.cfg.OnStatus(status, pending)
	}
}
