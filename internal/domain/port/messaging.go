package port

import (
	"context"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
)

// StatusPublisher emits terminal job state changes for downstream listeners.
// Publishing is best-effort; a failed publish never blocks a transition.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.JobStatusMessage) error
}

// DeadLetterNotifier is told when the queue routes a message to its
// dead-letter destination.
type DeadLetterNotifier interface {
	NotifyDeadLetter(ctx context.Context, body []byte, reason string) error
}
