package enrichment

import (
	"context"
	"fmt"

	"github.com/wolfman30/lead-intake/pkg/logging"
)

// Dispatcher hands a job to the background enrichment path.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Publisher is a Dispatcher that enqueues jobs on a Queue.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("enrichment: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

func (p *Publisher) Dispatch(ctx context.Context, job Job) error {
	job, body, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("enrichment: failed to enqueue job: %w", err)
	}
	p.logger.Debug("enrichment job enqueued", "job_id", job.ID, "lead_id", job.LeadID)
	return nil
}

var _ Dispatcher = (*Publisher)(nil)
