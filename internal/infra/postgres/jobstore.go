package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `owner, job_id, file_id, input_key, filename, status,
	output_key, error_message, created_at, queued_at, started_at, finished_at`

// JobStore implements port.JobStore on PostgreSQL. (owner, job_id) is the
// composite primary key; ConditionalUpdate maps the expected-status
// precondition onto the WHERE clause so the transition is a single atomic
// statement.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

func (s *JobStore) Get(ctx context.Context, owner, jobID string) (*entity.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE owner=$1 AND job_id=$2`
	rec, err := scanJob(s.pool.QueryRow(ctx, query, owner, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

func (s *JobStore) FindByJobID(ctx context.Context, jobID string) (*entity.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id=$1`
	rec, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	return rec, nil
}

func (s *JobStore) Put(ctx context.Context, rec *entity.JobRecord) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := s.pool.Exec(ctx, query,
		rec.Owner, rec.JobID, rec.FileID, rec.InputKey, rec.Filename,
		string(rec.Status), nullable(rec.OutputKey), nullable(rec.Error),
		rec.CreatedAt, rec.QueuedAt, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// ConditionalUpdate succeeds only if the record's current status matches
// expected; otherwise it returns port.ErrConflict (or port.ErrNotFound when
// the record does not exist at all).
func (s *JobStore) ConditionalUpdate(ctx context.Context, owner, jobID string, expected entity.JobStatus, patch port.JobPatch) error {
	sets := make([]string, 0, 8)
	args := []any{owner, jobID, string(expected)}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.OutputKey != nil {
		add("output_key", *patch.OutputKey)
	}
	if patch.Error != nil {
		add("error_message", *patch.Error)
	}
	if patch.QueuedAt != nil {
		add("queued_at", *patch.QueuedAt)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.FinishedAt != nil {
		add("finished_at", *patch.FinishedAt)
	}
	if patch.ClearError {
		sets = append(sets, "error_message=NULL")
	}
	if patch.ClearStartedAt {
		sets = append(sets, "started_at=NULL")
	}
	if patch.ClearFinishedAt {
		sets = append(sets, "finished_at=NULL")
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE jobs SET %s WHERE owner=$1 AND job_id=$2 AND status=$3`,
		strings.Join(sets, ", "),
	)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a failed precondition from a missing record.
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobs WHERE owner=$1 AND job_id=$2)`,
			owner, jobID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("conditional update existence check: %w", err)
		}
		if !exists {
			return port.ErrNotFound
		}
		return port.ErrConflict
	}
	return nil
}

func (s *JobStore) QueryByOwner(ctx context.Context, owner string) ([]entity.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE owner=$1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query jobs by owner: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *JobStore) ScanAll(ctx context.Context) ([]entity.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY owner, created_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *JobStore) Delete(ctx context.Context, owner, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE owner=$1 AND job_id=$2`, owner, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*entity.JobRecord, error) {
	rec := &entity.JobRecord{}
	var status string
	var outputKey, errMsg *string
	err := row.Scan(
		&rec.Owner, &rec.JobID, &rec.FileID, &rec.InputKey, &rec.Filename,
		&status, &outputKey, &errMsg,
		&rec.CreatedAt, &rec.QueuedAt, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = entity.JobStatus(status)
	if outputKey != nil {
		rec.OutputKey = *outputKey
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}
	return rec, nil
}

func collectJobs(rows pgx.Rows) ([]entity.JobRecord, error) {
	var records []entity.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return records, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
