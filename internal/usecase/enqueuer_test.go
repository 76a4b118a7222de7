package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(t *testing.T, store *fakeJobStore, owner string, status entity.JobStatus) *entity.JobRecord {
	t.Helper()
	rec := entity.NewJobRecord(owner, "f1", owner+"/f1_clip.mp4", "clip.mp4")
	rec.Status = status
	require.NoError(t, store.Put(context.Background(), rec))
	return rec
}

func TestEnqueuePublishesOnlyQueuedJobs(t *testing.T) {
	store := newFakeJobStore()
	queue := &fakeQueue{}
	enq := NewEnqueuer(store, queue, logger.NewNop())

	queued := seedRecord(t, store, "alice", entity.JobStatusQueued)
	seedRecord(t, store, "alice", entity.JobStatusProcessing)
	seedRecord(t, store, "alice", entity.JobStatusCompleted)
	seedRecord(t, store, "alice", entity.JobStatusFailed)
	seedRecord(t, store, "bob", entity.JobStatusQueued)

	sent, err := enq.Enqueue(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	bodies := queue.sentBodies()
	require.Len(t, bodies, 1)
	msg, err := entity.ParseJobMessage(bodies[0])
	require.NoError(t, err)
	assert.Equal(t, queued.JobID, msg.JobID)
	assert.Equal(t, "alice", msg.Owner)
	assert.Equal(t, queued.InputKey, msg.InputKey)

	got, err := store.Get(context.Background(), "alice", queued.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, got.Status)
	assert.NotNil(t, got.QueuedAt)
}

func TestEnqueueEmpty(t *testing.T) {
	enq := NewEnqueuer(newFakeJobStore(), &fakeQueue{}, logger.NewNop())

	sent, err := enq.Enqueue(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestEnqueuePartialFailure(t *testing.T) {
	store := newFakeJobStore()
	queue := &fakeQueue{failSend: errors.New("stream unavailable")}
	enq := NewEnqueuer(store, queue, logger.NewNop())

	seedRecord(t, store, "alice", entity.JobStatusQueued)

	sent, err := enq.Enqueue(context.Background(), "alice")
	require.Error(t, err)
	assert.Zero(t, sent)
}

func TestRequeueFailedJob(t *testing.T) {
	store := newFakeJobStore()
	queue := &fakeQueue{}
	enq := NewEnqueuer(store, queue, logger.NewNop())

	rec := seedRecord(t, store, "alice", entity.JobStatusFailed)
	now := rec.CreatedAt
	stored := store.jobs[jobKey(rec.Owner, rec.JobID)]
	stored.Error = "previous failure"
	stored.StartedAt = &now
	stored.FinishedAt = &now

	err := enq.Requeue(context.Background(), entity.Principal{ID: "alice"}, rec.JobID)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "alice", rec.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, got.Status)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)
	assert.NotNil(t, got.QueuedAt)

	assert.Len(t, queue.sentBodies(), 1)
}

func TestRequeueNonFailedJob(t *testing.T) {
	store := newFakeJobStore()
	enq := NewEnqueuer(store, &fakeQueue{}, logger.NewNop())

	rec := seedRecord(t, store, "alice", entity.JobStatusCompleted)

	err := enq.Requeue(context.Background(), entity.Principal{ID: "alice"}, rec.JobID)
	assert.ErrorIs(t, err, ErrConflictingState)
}

func TestRequeueOtherOwnersJob(t *testing.T) {
	store := newFakeJobStore()
	enq := NewEnqueuer(store, &fakeQueue{}, logger.NewNop())

	rec := seedRecord(t, store, "alice", entity.JobStatusFailed)

	err := enq.Requeue(context.Background(), entity.Principal{ID: "bob"}, rec.JobID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRequeueAsAdmin(t *testing.T) {
	store := newFakeJobStore()
	queue := &fakeQueue{}
	enq := NewEnqueuer(store, queue, logger.NewNop())

	rec := seedRecord(t, store, "alice", entity.JobStatusFailed)

	err := enq.Requeue(context.Background(), entity.Principal{ID: "admin", Admin: true}, rec.JobID)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "alice", rec.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, got.Status)
}

func TestRequeueMissingJob(t *testing.T) {
	enq := NewEnqueuer(newFakeJobStore(), &fakeQueue{}, logger.NewNop())

	err := enq.Requeue(context.Background(), entity.Principal{ID: "admin", Admin: true}, "no-such-job")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
