package entity

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s,
// short of an explicit re-enqueue of a failed job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobRecord is the durable description of one transcoding task.
// (Owner, JobID) uniquely identifies a record and is never reused.
type JobRecord struct {
	Owner      string
	JobID      string
	FileID     string
	InputKey   string
	Filename   string
	Status     JobStatus
	OutputKey  string
	Error      string
	CreatedAt  time.Time
	QueuedAt   *time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func NewJobRecord(owner, fileID, inputKey, filename string) *JobRecord {
	return &JobRecord{
		Owner:     owner,
		JobID:     uuid.NewString(),
		FileID:    fileID,
		InputKey:  inputKey,
		Filename:  filename,
		Status:    JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
}

// CanTransitionTo enforces the forward-only lifecycle:
// queued -> processing -> completed|failed.
func (j *JobRecord) CanTransitionTo(next JobStatus) bool {
	switch j.Status {
	case JobStatusQueued:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// OutputKeyFor derives the deterministic object key for a transcoded result:
// owner/name_transcoded.ext.
func OutputKeyFor(owner, filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s/%s_transcoded%s", owner, name, ext)
}

// TruncateError bounds a failure reason to a human-readable size before it is
// stored on the record.
func TruncateError(msg string, max int) string {
	if max <= 0 || len(msg) <= max {
		return msg
	}
	return msg[:max]
}
