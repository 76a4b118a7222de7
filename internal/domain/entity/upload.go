package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UploadRecord describes one uploaded source file. Immutable once created,
// except for deletion. Zero or more JobRecords may reference its FileID.
type UploadRecord struct {
	Owner       string
	FileID      string
	Filename    string
	InputKey    string
	UploadedAt  time.Time
	ExternalRef string
}

func NewUploadRecord(owner, filename, externalRef string) *UploadRecord {
	fileID := uuid.NewString()
	return &UploadRecord{
		Owner:       owner,
		FileID:      fileID,
		Filename:    filename,
		InputKey:    InputKeyFor(owner, fileID, filename),
		UploadedAt:  time.Now().UTC(),
		ExternalRef: externalRef,
	}
}

// InputKeyFor derives the object key a new upload is stored under.
func InputKeyFor(owner, fileID, filename string) string {
	return fmt.Sprintf("%s/%s_%s", owner, fileID, filename)
}
