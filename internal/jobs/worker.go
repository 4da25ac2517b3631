package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// WorkerConfig holds configuration for the queue worker.
type WorkerConfig struct {
	Queue        string
	Concurrency  int
	PollInterval time.Duration
	MaxBackoff   time.Duration // poll backoff cap while the queue is empty
}

// Worker drains one queue with a bounded goroutine pool. Jobs for different
// plans run in parallel; jobs racing on the same plan are serialized by the
// applier's timestamp guard, not by the worker.
type Worker struct {
	queue     Queue
	processor *Processor
	archiver  DeadLetterArchiver
	metrics   *Metrics
	cfg       WorkerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a Worker. archiver and metrics may be nil.
func NewWorker(queue Queue, processor *Processor, archiver DeadLetterArchiver, metrics *Metrics, cfg WorkerConfig) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = QueuePlanSync
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Worker{
		queue:     queue,
		processor: processor,
		archiver:  archiver,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Start launches the drain loop. Starting an already running worker is a
// no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	go w.run(runCtx, w.done)
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// Done reports when the current run loop has fully stopped.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return w.done
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(done)
	}()

	log.Printf("worker: draining queue %q with concurrency %d", w.cfg.Queue, w.cfg.Concurrency)

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	// pollNow lets a finishing job trigger an immediate re-poll instead of
	// waiting out the backoff timer.
	pollNow := make(chan struct{}, 1)
	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
		}
	}
	triggerPoll()

	backoff := w.cfg.PollInterval

	for {
		select {
		case <-ctx.Done():
			log.Println("worker: stopping, waiting for in-flight jobs")
			wg.Wait()
			return

		case <-time.After(backoff):
			triggerPoll()

		case <-pollNow:
			slots := w.cfg.Concurrency - len(sem)
			if slots <= 0 {
				continue
			}

			claimed, err := w.queue.Dequeue(ctx, w.cfg.Queue, slots)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("ERROR: worker: dequeue failed: %v", err)
				}
				continue
			}
			if len(claimed) == 0 {
				backoff *= 2
				if backoff > w.cfg.MaxBackoff {
					backoff = w.cfg.MaxBackoff
				}
				continue
			}
			backoff = w.cfg.PollInterval

			for _, job := range claimed {
				sem <- struct{}{}
				wg.Add(1)
				go func(job Job) {
					defer wg.Done()
					defer func() {
						<-sem
						triggerPoll()
					}()
					w.handle(ctx, job)
				}(job)
			}
			if len(claimed) == slots {
				// The queue may have more ready jobs than we had slots for.
				triggerPoll()
			}
		}
	}
}

// handle processes one claimed job and settles it with the queue. The
// settlement calls run on a background context so a shutdown mid-job does
// not lose the outcome.
func (w *Worker) handle(ctx context.Context, job Job) {
	outcome := w.processor.Process(ctx, job)
	settleCtx := context.Background()

	switch {
	case outcome.Err == nil:
		if err := w.queue.Complete(settleCtx, job.ID, outcome.Result); err != nil {
			log.Printf("ERROR: worker: completing job %s: %v", job.ID.Hex(), err)
			return
		}
		w.metrics.addProcessed(settleCtx, job.MessageType)

	case outcome.Terminal:
		w.archive(settleCtx, job, outcome.Err)
		if err := w.queue.Bury(settleCtx, job.ID, outcome.Err.Error()); err != nil {
			log.Printf("ERROR: worker: burying job %s: %v", job.ID.Hex(), err)
			return
		}
		w.metrics.addFailed(settleCtx, job.MessageType)
		log.Printf("worker: job %s (%s) dead: %v", job.ID.Hex(), job.MessageType, outcome.Err)

	default:
		terminal, err := w.queue.Fail(settleCtx, job.ID, outcome.Err.Error(), outcome.Delay)
		if err != nil {
			log.Printf("ERROR: worker: failing job %s: %v", job.ID.Hex(), err)
			return
		}
		if terminal {
			w.archive(settleCtx, job, outcome.Err)
			w.metrics.addFailed(settleCtx, job.MessageType)
			log.Printf("worker: job %s (%s) exhausted retries: %v", job.ID.Hex(), job.MessageType, outcome.Err)
			return
		}
		w.metrics.addRetried(settleCtx, job.MessageType)
	}
}

func (w *Worker) archive(ctx context.Context, job Job, cause error) {
	if w.archiver == nil {
		return
	}
	job.Status = StatusDead
	job.LastError = cause.Error()
	if err := w.archiver.Archive(ctx, job, cause.Error()); err != nil {
		log.Printf("ERROR: worker: archiving dead job %s: %v", job.ID.Hex(), err)
	}
}
