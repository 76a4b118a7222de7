package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UploadStore struct {
	pool *pgxpool.Pool
}

func NewUploadStore(pool *pgxpool.Pool) *UploadStore {
	return &UploadStore{pool: pool}
}

func (s *UploadStore) Get(ctx context.Context, owner, fileID string) (*entity.UploadRecord, error) {
	rec := &entity.UploadRecord{}
	err := s.pool.QueryRow(ctx, `
		SELECT owner, file_id, filename, input_key, uploaded_at, external_ref
		FROM uploads WHERE owner=$1 AND file_id=$2`,
		owner, fileID,
	).Scan(&rec.Owner, &rec.FileID, &rec.Filename, &rec.InputKey, &rec.UploadedAt, &rec.ExternalRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return rec, nil
}

func (s *UploadStore) Put(ctx context.Context, rec *entity.UploadRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO uploads (owner, file_id, filename, input_key, uploaded_at, external_ref)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.Owner, rec.FileID, rec.Filename, rec.InputKey, rec.UploadedAt, rec.ExternalRef,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (s *UploadStore) QueryByOwner(ctx context.Context, owner string) ([]entity.UploadRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT owner, file_id, filename, input_key, uploaded_at, external_ref
		FROM uploads WHERE owner=$1 ORDER BY uploaded_at`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var records []entity.UploadRecord
	for rows.Next() {
		var rec entity.UploadRecord
		if err := rows.Scan(&rec.Owner, &rec.FileID, &rec.Filename, &rec.InputKey, &rec.UploadedAt, &rec.ExternalRef); err != nil {
			return nil, fmt.Errorf("scan upload row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload rows: %w", err)
	}
	return records, nil
}

func (s *UploadStore) Delete(ctx context.Context, owner, fileID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM uploads WHERE owner=$1 AND file_id=$2`, owner, fileID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrNotFound
	}
	return nil
}
