package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/internal/infra/metrics"
	"go.uber.org/zap"
)

// ErrStoreUnavailable wraps store failures surfaced to Enqueue callers.
var ErrStoreUnavailable = errors.New("job store unavailable")

// Enqueuer publishes a caller's queued records to the work queue. It never
// transitions a job into processing; that belongs solely to the Executor, so
// two publishers can never both believe they "started" the same job.
type Enqueuer struct {
	store  port.JobStore
	queue  port.Queue
	logger *zap.Logger
}

func NewEnqueuer(store port.JobStore, queue port.Queue, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{store: store, queue: queue, logger: logger}
}

// Enqueue publishes one message per queued record owned by owner and
// re-stamps queuedAt. Republishing a record already queued is safe: the
// Executor's idempotence absorbs duplicates. The operation is not
// transactional across records; on a mid-loop failure the returned count is a
// lower bound of effect and already-sent jobs remain valid.
func (e *Enqueuer) Enqueue(ctx context.Context, owner string) (int, error) {
	records, err := e.store.QueryByOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("%w: query jobs for %s: %v", ErrStoreUnavailable, owner, err)
	}

	sent := 0
	for i := range records {
		rec := &records[i]
		if rec.Status != entity.JobStatusQueued {
			continue
		}
		if err := e.publish(ctx, rec.Owner, rec.JobID, rec.InputKey); err != nil {
			return sent, err
		}
		sent++
	}

	e.logger.Info("jobs enqueued", zap.String("owner", owner), zap.Int("sent", sent))
	return sent, nil
}

// Requeue is the one sanctioned backward transition: an explicit re-enqueue
// of a failed job. It resets error, startedAt and finishedAt, returns the
// record to queued and publishes a fresh message.
func (e *Enqueuer) Requeue(ctx context.Context, principal entity.Principal, jobID string) error {
	rec, err := e.resolve(ctx, principal, jobID)
	if err != nil {
		return err
	}

	queued := entity.JobStatusQueued
	queuedAt := time.Now().UTC()
	err = e.store.ConditionalUpdate(ctx, rec.Owner, rec.JobID, entity.JobStatusFailed, port.JobPatch{
		Status:          &queued,
		QueuedAt:        &queuedAt,
		ClearError:      true,
		ClearStartedAt:  true,
		ClearFinishedAt: true,
	})
	if err != nil {
		if errors.Is(err, port.ErrConflict) {
			return fmt.Errorf("job %s is not in a failed state: %w", jobID, ErrConflictingState)
		}
		return fmt.Errorf("requeue job %s: %w", jobID, err)
	}

	return e.publish(ctx, rec.Owner, rec.JobID, rec.InputKey)
}

func (e *Enqueuer) resolve(ctx context.Context, principal entity.Principal, jobID string) (*entity.JobRecord, error) {
	if principal.Admin {
		rec, err := e.store.FindByJobID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("find job %s: %w", jobID, err)
		}
		return rec, nil
	}
	rec, err := e.store.Get(ctx, principal.ID, jobID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return rec, nil
}

func (e *Enqueuer) publish(ctx context.Context, owner, jobID, inputKey string) error {
	body, err := entity.JobMessage{Owner: owner, JobID: jobID, InputKey: inputKey}.Encode()
	if err != nil {
		return fmt.Errorf("encode message for job %s: %w", jobID, err)
	}
	if err := e.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("send message for job %s: %w", jobID, err)
	}

	// Re-affirmation, not a new state: status stays queued.
	queued := entity.JobStatusQueued
	queuedAt := time.Now().UTC()
	err = e.store.ConditionalUpdate(ctx, owner, jobID, entity.JobStatusQueued, port.JobPatch{
		Status:   &queued,
		QueuedAt: &queuedAt,
	})
	if err != nil && !errors.Is(err, port.ErrConflict) {
		return fmt.Errorf("stamp queuedAt for job %s: %w", jobID, err)
	}

	metrics.JobsEnqueuedTotal.Inc()
	return nil
}
