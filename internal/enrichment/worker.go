package enrichment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/lead-intake/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeout        = 5 * time.Second
	idlePollInterval     = 100 * time.Millisecond
	maxReceiveErrBackoff = 5 * time.Second
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker consumes enrichment jobs from a Queue.
type Worker struct {
	enricher *Enricher
	queue    Queue
	logger   *logging.Logger

	cfg      workerConfig
	wg       sync.WaitGroup
	stopping chan struct{}
	stopOnce sync.Once
}

func NewWorker(enricher *Enricher, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if enricher == nil {
		panic("enrichment: enricher cannot be nil")
	}
	if queue == nil {
		panic("enrichment: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		enricher: enricher,
		queue:    queue,
		logger:   logger,
		cfg:      cfg,
		stopping: make(chan struct{}),
	}
}

// Start launches the consumer goroutines. Cancelling ctx aborts in-flight
// jobs; use Stop for a graceful drain.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Stop stops polling once the queue reports no more messages and waits for
// in-flight jobs. It returns ctx.Err() if ctx expires first.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopping) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) draining() bool {
	select {
	case <-w.stopping:
		return true
	default:
		return false
	}
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("enrichment worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		draining := w.draining()
		wait := w.cfg.receiveWaitSecs
		if draining {
			wait = 0
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, wait)
		if err != nil {
			if errors.Is(err, context.Canceled) || draining {
				return
			}
			w.logger.Error("failed to receive enrichment jobs", "error", err, "worker_id", workerID)
			if !w.pause(ctx, backoff) {
				return
			}
			if backoff < maxReceiveErrBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if len(messages) == 0 {
			if draining {
				w.logger.Debug("enrichment worker drained", "worker_id", workerID)
				return
			}
			if wait == 0 && !w.pause(ctx, idlePollInterval) {
				return
			}
			continue
		}

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// pause sleeps for d, returning false if ctx ends first. A stop request cuts
// the sleep short so the drain pass starts immediately.
func (w *Worker) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-w.stopping:
		return true
	case <-timer.C:
		return true
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable enrichment job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.enricher.Enrich(ctx, job)

	// Failed jobs are not redelivered; the baseline lead already exists.
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete enrichment job", "error", err)
	}
}
