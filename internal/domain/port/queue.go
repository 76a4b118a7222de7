package port

import (
	"context"
	"time"
)

// Message is one received queue entry. ReceiptHandle is opaque and only valid
// until the platform's visibility timeout expires. DeliveryCount is maintained
// by the platform, not the application.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	DeliveryCount int64
}

// Queue is the at-least-once message queue capability. A received message is
// hidden from other consumers for the platform's visibility window; if it is
// not deleted before the window expires it becomes receivable again, which is
// the system's sole retry mechanism. Messages exceeding the platform's
// redelivery limit are routed to a dead-letter destination.
type Queue interface {
	Send(ctx context.Context, body []byte) error
	// Receive long-polls for up to max messages, waiting at most wait.
	// It returns an empty slice when the wait elapses with nothing available.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	// Delete acks a received message so it is never redelivered.
	Delete(ctx context.Context, receiptHandle string) error
}
