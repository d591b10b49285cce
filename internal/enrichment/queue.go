package enrichment

import "context"

// Queue transports encoded jobs between the intake API and the workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}
