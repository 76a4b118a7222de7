package port

import (
	"context"
	"errors"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
)

// ErrConflict is returned by ConditionalUpdate when the record's current
// status does not match the expected predecessor.
var ErrConflict = errors.New("status precondition failed")

// JobPatch carries the fields a conditional update may set. Nil pointers are
// left untouched. The Clear flags unset a field, used only by the explicit
// failed -> queued re-enqueue.
type JobPatch struct {
	Status     *entity.JobStatus
	OutputKey  *string
	Error      *string
	QueuedAt   *time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	ClearError      bool
	ClearStartedAt  bool
	ClearFinishedAt bool
}

// JobStore is the durable record storage capability. Updates to a given
// (owner, jobID) are conditional on the current status, which is what keeps
// two concurrent executions of the same job from both performing a
// destructive transition.
type JobStore interface {
	Get(ctx context.Context, owner, jobID string) (*entity.JobRecord, error)
	Put(ctx context.Context, rec *entity.JobRecord) error
	ConditionalUpdate(ctx context.Context, owner, jobID string, expected entity.JobStatus, patch JobPatch) error
	QueryByOwner(ctx context.Context, owner string) ([]entity.JobRecord, error)
	ScanAll(ctx context.Context) ([]entity.JobRecord, error)
	// FindByJobID resolves a record by job id alone (admin path).
	FindByJobID(ctx context.Context, jobID string) (*entity.JobRecord, error)
	Delete(ctx context.Context, owner, jobID string) error
}

// UploadStore persists upload metadata keyed by (owner, fileID).
type UploadStore interface {
	Get(ctx context.Context, owner, fileID string) (*entity.UploadRecord, error)
	Put(ctx context.Context, rec *entity.UploadRecord) error
	QueryByOwner(ctx context.Context, owner string) ([]entity.UploadRecord, error)
	Delete(ctx context.Context, owner, fileID string) error
}
