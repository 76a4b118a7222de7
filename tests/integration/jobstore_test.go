package integration

import (
	"context"
	"testing"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/internal/infra/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startJobStore(t *testing.T, ctx context.Context) *postgres.JobStore {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return postgres.NewJobStore(pool)
}

func TestJobStoreConditionalUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := startJobStore(t, ctx)

	rec := entity.NewJobRecord("alice", "f1", "alice/f1_clip.mp4", "clip.mp4")
	require.NoError(t, store.Put(ctx, rec))

	processing := entity.JobStatusProcessing
	startedAt := time.Now().UTC()

	// Matching precondition succeeds.
	err := store.ConditionalUpdate(ctx, "alice", rec.JobID, entity.JobStatusQueued, port.JobPatch{
		Status:    &processing,
		StartedAt: &startedAt,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "alice", rec.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)

	// Stale precondition conflicts without touching the record.
	err = store.ConditionalUpdate(ctx, "alice", rec.JobID, entity.JobStatusQueued, port.JobPatch{
		Status: &processing,
	})
	assert.ErrorIs(t, err, port.ErrConflict)

	// Missing record is distinguishable from a failed precondition.
	err = store.ConditionalUpdate(ctx, "alice", "no-such-job", entity.JobStatusQueued, port.JobPatch{
		Status: &processing,
	})
	assert.ErrorIs(t, err, port.ErrNotFound)

	// The terminal transition records output and clears nothing else.
	completed := entity.JobStatusCompleted
	outputKey := "alice/clip_transcoded.mp4"
	finishedAt := time.Now().UTC()
	err = store.ConditionalUpdate(ctx, "alice", rec.JobID, entity.JobStatusProcessing, port.JobPatch{
		Status:     &completed,
		OutputKey:  &outputKey,
		FinishedAt: &finishedAt,
	})
	require.NoError(t, err)

	got, err = store.Get(ctx, "alice", rec.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)
	assert.Equal(t, outputKey, got.OutputKey)
	assert.NotNil(t, got.FinishedAt)
	assert.NotNil(t, got.StartedAt)
}

func TestJobStoreRequeueClearsFields(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := startJobStore(t, ctx)

	rec := entity.NewJobRecord("alice", "f1", "alice/f1_clip.mp4", "clip.mp4")
	rec.Status = entity.JobStatusFailed
	now := time.Now().UTC()
	rec.Error = "previous failure"
	rec.StartedAt = &now
	rec.FinishedAt = &now
	require.NoError(t, store.Put(ctx, rec))

	queued := entity.JobStatusQueued
	queuedAt := time.Now().UTC()
	err := store.ConditionalUpdate(ctx, "alice", rec.JobID, entity.JobStatusFailed, port.JobPatch{
		Status:          &queued,
		QueuedAt:        &queuedAt,
		ClearError:      true,
		ClearStartedAt:  true,
		ClearFinishedAt: true,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "alice", rec.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, got.Status)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)
	assert.NotNil(t, got.QueuedAt)
}

func TestJobStoreOwnerScoping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := startJobStore(t, ctx)

	alice := entity.NewJobRecord("alice", "f1", "alice/f1_a.mp4", "a.mp4")
	bob := entity.NewJobRecord("bob", "f2", "bob/f2_b.mp4", "b.mp4")
	require.NoError(t, store.Put(ctx, alice))
	require.NoError(t, store.Put(ctx, bob))

	// Get is partition-scoped.
	_, err := store.Get(ctx, "bob", alice.JobID)
	assert.ErrorIs(t, err, port.ErrNotFound)

	// FindByJobID crosses partitions (admin path).
	found, err := store.FindByJobID(ctx, alice.JobID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Owner)

	records, err := store.QueryByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, alice.JobID, records[0].JobID)

	all, err := store.ScanAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Delete(ctx, "alice", alice.JobID))
	assert.ErrorIs(t, store.Delete(ctx, "alice", alice.JobID), port.ErrNotFound)
}
