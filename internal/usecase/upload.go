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

// UploadService handles the out-of-core upload flow: clients PUT bytes
// directly to object storage through presigned URLs, then confirm the upload
// to create the metadata record and a queued job.
type UploadService struct {
	uploads   port.UploadStore
	jobs      port.JobStore
	blobs     port.BlobStore
	urlExpiry time.Duration
	logger    *zap.Logger
}

func NewUploadService(uploads port.UploadStore, jobs port.JobStore, blobs port.BlobStore, urlExpiry time.Duration, logger *zap.Logger) *UploadService {
	return &UploadService{
		uploads:   uploads,
		jobs:      jobs,
		blobs:     blobs,
		urlExpiry: urlExpiry,
		logger:    logger,
	}
}

// PendingUpload is handed to the client so it can PUT the file and later
// confirm with the same identifiers.
type PendingUpload struct {
	UploadURL string
	InputKey  string
	FileID    string
	Filename  string
}

func (s *UploadService) NewUploadURL(ctx context.Context, principal entity.Principal, filename string) (*PendingUpload, error) {
	rec := entity.NewUploadRecord(principal.ID, filename, "")
	url, err := s.blobs.PresignedPutURL(ctx, rec.InputKey, s.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload for %s: %w", filename, err)
	}
	return &PendingUpload{
		UploadURL: url,
		InputKey:  rec.InputKey,
		FileID:    rec.FileID,
		Filename:  filename,
	}, nil
}

// ConfirmUpload records the upload metadata and creates the queued job that
// the Enqueuer will later publish.
func (s *UploadService) ConfirmUpload(ctx context.Context, principal entity.Principal, fileID, inputKey, filename, externalRef string) (*entity.JobRecord, error) {
	upload := &entity.UploadRecord{
		Owner:       principal.ID,
		FileID:      fileID,
		Filename:    filename,
		InputKey:    inputKey,
		UploadedAt:  time.Now().UTC(),
		ExternalRef: externalRef,
	}
	if err := s.uploads.Put(ctx, upload); err != nil {
		return nil, fmt.Errorf("save upload metadata: %w", err)
	}

	job := entity.NewJobRecord(principal.ID, fileID, inputKey, filename)
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	s.logger.Info("upload confirmed",
		zap.String("owner", principal.ID),
		zap.String("file_id", fileID),
		zap.String("job_id", job.JobID),
	)
	return job, nil
}

func (s *UploadService) Metadata(ctx context.Context, principal entity.Principal, fileID string) (*entity.UploadRecord, error) {
	rec, err := s.uploads.Get(ctx, principal.ID, fileID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, port.ErrNotFound
		}
		return nil, fmt.Errorf("get upload %s: %w", fileID, err)
	}
	return rec, nil
}

// InputDownloadURL presigns the original uploaded object.
func (s *UploadService) InputDownloadURL(ctx context.Context, principal entity.Principal, fileID string) (string, error) {
	rec, err := s.Metadata(ctx, principal, fileID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignedGetURL(ctx, rec.InputKey, s.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("presign input for %s: %w", fileID, err)
	}
	return url, nil
}

// Delete removes the upload record and its stored object.
func (s *UploadService) Delete(ctx context.Context, principal entity.Principal, fileID string) error {
	rec, err := s.Metadata(ctx, principal, fileID)
	if err != nil {
		return err
	}
	if err := s.uploads.Delete(ctx, rec.Owner, rec.FileID); err != nil {
		return fmt.Errorf("delete upload %s: %w", fileID, err)
	}
	if err := s.blobs.Delete(ctx, rec.InputKey); err != nil {
		s.logger.Warn("blob cleanup failed", zap.String("key", rec.InputKey), zap.Error(err))
	}
	return nil
}
