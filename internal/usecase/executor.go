package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxStoredErrorLen = 512

// Executor owns the per-job state machine:
// queued -> processing -> {completed | failed}.
//
// Execute returns nil whenever a terminal state has been durably recorded
// (including domain failures, which are an expected user-visible outcome) and
// an error only when infrastructure prevented recording one. The caller acks
// the message on nil and leaves it for redelivery otherwise.
type Executor struct {
	store      port.JobStore
	blobs      port.BlobStore
	transcoder port.Transcoder
	status     port.StatusPublisher
	logger     *zap.Logger
	cfg        ExecutorConfig
}

type ExecutorConfig struct {
	TempDir string
	Profile port.Profile
	// Deadline bounds a single transcoder run. Zero means no per-run
	// deadline (the batch profile); the queue's visibility timeout is then
	// the outer bound.
	Deadline time.Duration
}

func NewExecutor(
	store port.JobStore,
	blobs port.BlobStore,
	transcoder port.Transcoder,
	status port.StatusPublisher,
	logger *zap.Logger,
	cfg ExecutorConfig,
) *Executor {
	return &Executor{
		store:      store,
		blobs:      blobs,
		transcoder: transcoder,
		status:     status,
		logger:     logger,
		cfg:        cfg,
	}
}

func (e *Executor) Execute(ctx context.Context, owner, jobID, inputKey string) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "Executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.owner", owner),
		attribute.String("job.id", jobID),
	)

	log := e.logger.With(zap.String("owner", owner), zap.String("job_id", jobID))
	start := time.Now()

	rec, err := e.store.Get(ctx, owner, jobID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			// Nothing left to transition; retrying can never succeed.
			log.Warn("job record no longer exists, dropping message")
			return nil
		}
		return fmt.Errorf("load job record: %w", err)
	}

	switch rec.Status {
	case entity.JobStatusCompleted:
		// Redelivered after a prior attempt completed the work but crashed
		// before acking. The transcoder must not run again.
		log.Info("job already completed, skipping")
		return nil
	case entity.JobStatusFailed:
		log.Info("job already failed, skipping")
		return nil
	}

	// A redelivery that finds the record already processing re-attempts the
	// full cycle instead of assuming a stuck state. Any other status must
	// legally enter processing; this catches records carrying a status value
	// the lifecycle does not know.
	processing := entity.JobStatusProcessing
	if rec.Status != processing && !rec.CanTransitionTo(processing) {
		return fmt.Errorf("job in state %q cannot start processing", rec.Status)
	}

	// Commit point: after this the job is in flight to any reader. The
	// precondition keeps a concurrent duplicate from transitioning twice.
	startedAt := time.Now().UTC()
	err = e.store.ConditionalUpdate(ctx, owner, jobID, rec.Status, port.JobPatch{
		Status:    &processing,
		StartedAt: &startedAt,
	})
	if err != nil {
		if errors.Is(err, port.ErrConflict) {
			return e.resolveConflict(ctx, log, owner, jobID)
		}
		return fmt.Errorf("transition to processing: %w", err)
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	outputKey, runErr := e.runPipeline(ctx, log, rec)
	if runErr != nil {
		var exitErr *port.ExitError
		switch {
		case errors.As(runErr, &exitErr), errors.Is(runErr, context.DeadlineExceeded):
			// Domain failure: record it and report success to the consumer.
			if err := e.markFailed(ctx, owner, jobID, rec, runErr); err != nil {
				return err
			}
			log.Warn("job failed", zap.Error(runErr), zap.Duration("elapsed", time.Since(start)))
			metrics.JobsProcessedTotal.WithLabelValues("failed").Inc()
			return nil
		default:
			// Infrastructure failure: no terminal state was recorded, leave
			// the message for redelivery.
			return runErr
		}
	}

	if err := e.markCompleted(ctx, owner, jobID, rec, outputKey); err != nil {
		return err
	}

	log.Info("job completed",
		zap.String("output_key", outputKey),
		zap.Duration("elapsed", time.Since(start)),
	)
	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	return nil
}

// resolveConflict handles a lost race on the queued/processing -> processing
// transition: the only states another execution can have moved the record to
// are terminal ones, which means the work is done and the message is safe to
// ack. The second transition is a no-op success.
func (e *Executor) resolveConflict(ctx context.Context, log *zap.Logger, owner, jobID string) error {
	rec, err := e.store.Get(ctx, owner, jobID)
	if err != nil {
		return fmt.Errorf("re-read after transition conflict: %w", err)
	}
	if rec.Status.Terminal() {
		log.Info("job finished by a concurrent execution", zap.String("status", string(rec.Status)))
		return nil
	}
	return fmt.Errorf("transition to processing: %w", port.ErrConflict)
}

// runPipeline performs download, transcode and upload inside a scoped working
// directory whose cleanup is guaranteed on every exit path.
func (e *Executor) runPipeline(ctx context.Context, log *zap.Logger, rec *entity.JobRecord) (string, error) {
	tracer := otel.Tracer("usecase")

	workDir, err := os.MkdirTemp(e.cfg.TempDir, "job-"+rec.JobID+"-")
	if err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input"+filepath.Ext(rec.Filename))
	outputPath := filepath.Join(workDir, "output"+filepath.Ext(rec.Filename))

	dlStart := time.Now()
	dlCtx, dlSpan := tracer.Start(ctx, "download_input")
	err = e.blobs.Download(dlCtx, rec.InputKey, inputPath)
	dlSpan.End()
	if err != nil {
		return "", fmt.Errorf("download input %s: %w", rec.InputKey, err)
	}
	metrics.JobDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	runCtx := ctx
	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	tcStart := time.Now()
	runCtx, tcSpan := tracer.Start(runCtx, "transcode")
	err = e.transcoder.Run(runCtx, inputPath, outputPath, e.cfg.Profile)
	tcSpan.End()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("transcode exceeded %s deadline: %w", e.cfg.Deadline, context.DeadlineExceeded)
		}
		return "", err
	}
	metrics.JobDuration.WithLabelValues("transcode").Observe(time.Since(tcStart).Seconds())

	// Upload before marking completed so no reader ever observes a completed
	// record with a missing object.
	outputKey := entity.OutputKeyFor(rec.Owner, rec.Filename)
	upStart := time.Now()
	upCtx, upSpan := tracer.Start(ctx, "upload_output")
	err = e.blobs.Upload(upCtx, outputKey, outputPath, "video/mp4")
	upSpan.End()
	if err != nil {
		return "", fmt.Errorf("upload output %s: %w", outputKey, err)
	}
	metrics.JobDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	log.Debug("pipeline finished", zap.String("output_key", outputKey))
	return outputKey, nil
}

func (e *Executor) markCompleted(ctx context.Context, owner, jobID string, rec *entity.JobRecord, outputKey string) error {
	finishedAt := time.Now().UTC()
	completed := entity.JobStatusCompleted
	err := e.store.ConditionalUpdate(ctx, owner, jobID, entity.JobStatusProcessing, port.JobPatch{
		Status:     &completed,
		OutputKey:  &outputKey,
		FinishedAt: &finishedAt,
	})
	if err != nil {
		if errors.Is(err, port.ErrConflict) {
			// A duplicate execution got there first; overwrites are permitted
			// and transcoding is deterministic, so treat as done.
			return nil
		}
		return fmt.Errorf("record completed state: %w", err)
	}

	e.publishStatus(ctx, entity.JobStatusMessage{
		Owner:      owner,
		JobID:      jobID,
		Status:     completed,
		InputKey:   rec.InputKey,
		OutputKey:  outputKey,
		FinishedAt: finishedAt,
	})
	return nil
}

func (e *Executor) markFailed(ctx context.Context, owner, jobID string, rec *entity.JobRecord, cause error) error {
	finishedAt := time.Now().UTC()
	failed := entity.JobStatusFailed
	reason := entity.TruncateError(cause.Error(), maxStoredErrorLen)
	err := e.store.ConditionalUpdate(ctx, owner, jobID, entity.JobStatusProcessing, port.JobPatch{
		Status:     &failed,
		Error:      &reason,
		FinishedAt: &finishedAt,
	})
	if err != nil {
		if errors.Is(err, port.ErrConflict) {
			return nil
		}
		return fmt.Errorf("record failed state: %w", err)
	}

	e.publishStatus(ctx, entity.JobStatusMessage{
		Owner:      owner,
		JobID:      jobID,
		Status:     failed,
		InputKey:   rec.InputKey,
		Error:      reason,
		FinishedAt: finishedAt,
	})
	return nil
}

func (e *Executor) publishStatus(ctx context.Context, msg entity.JobStatusMessage) {
	if e.status == nil {
		return
	}
	if err := e.status.PublishStatus(ctx, msg); err != nil {
		e.logger.Error("failed to publish status", zap.String("job_id", msg.JobID), zap.Error(err))
	}
}
