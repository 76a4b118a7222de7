package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"go.uber.org/zap"
)

// QueryService is the read/delete path over job records. Admins see every
// record; everyone else sees only their own.
type QueryService struct {
	store     port.JobStore
	blobs     port.BlobStore
	urlExpiry time.Duration
	logger    *zap.Logger
}

func NewQueryService(store port.JobStore, blobs port.BlobStore, urlExpiry time.Duration, logger *zap.Logger) *QueryService {
	return &QueryService{store: store, blobs: blobs, urlExpiry: urlExpiry, logger: logger}
}

func (s *QueryService) List(ctx context.Context, principal entity.Principal) ([]entity.JobRecord, error) {
	if principal.Admin {
		records, err := s.store.ScanAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan jobs: %w", err)
		}
		return records, nil
	}
	records, err := s.store.QueryByOwner(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("query jobs for %s: %w", principal.ID, err)
	}
	return records, nil
}

func (s *QueryService) Get(ctx context.Context, principal entity.Principal, jobID string) (*entity.JobRecord, error) {
	return s.resolve(ctx, principal, jobID)
}

// Delete removes the record and, best-effort, its input and output blobs.
// Blob cleanup failure does not roll back the record deletion.
func (s *QueryService) Delete(ctx context.Context, principal entity.Principal, jobID string) error {
	rec, err := s.resolve(ctx, principal, jobID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.Owner, rec.JobID); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}

	s.deleteBlob(ctx, rec.InputKey)
	if rec.OutputKey != "" {
		s.deleteBlob(ctx, rec.OutputKey)
	}

	s.logger.Info("job deleted",
		zap.String("job_id", rec.JobID),
		zap.String("owner", rec.Owner),
		zap.String("deleted_by", principal.ID),
	)
	return nil
}

// DownloadURL issues a presigned URL for the transcoded output of a
// completed job.
func (s *QueryService) DownloadURL(ctx context.Context, principal entity.Principal, jobID string) (string, error) {
	rec, err := s.resolve(ctx, principal, jobID)
	if err != nil {
		return "", err
	}
	if rec.Status != entity.JobStatusCompleted {
		return "", fmt.Errorf("job %s is %s: %w", jobID, rec.Status, ErrNotReady)
	}
	url, err := s.blobs.PresignedGetURL(ctx, rec.OutputKey, s.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("presign output for job %s: %w", jobID, err)
	}
	return url, nil
}

// resolve loads a record subject to the visibility rules: a non-admin asking
// for a record outside their own partition gets Forbidden, whether or not the
// record exists elsewhere.
func (s *QueryService) resolve(ctx context.Context, principal entity.Principal, jobID string) (*entity.JobRecord, error) {
	if principal.Admin {
		rec, err := s.store.FindByJobID(ctx, jobID)
		if err != nil {
			if errors.Is(err, port.ErrNotFound) {
				return nil, port.ErrNotFound
			}
			return nil, fmt.Errorf("find job %s: %w", jobID, err)
		}
		return rec, nil
	}

	rec, err := s.store.Get(ctx, principal.ID, jobID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return rec, nil
}

func (s *QueryService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("blob cleanup failed", zap.String("key", key), zap.Error(err))
	}
}
