package usecase

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/entity"
	"github.com/alfonso-av/cab432-a3/internal/domain/port"
)

// fakeJobStore is an in-memory JobStore with the same conditional-update
// semantics as the postgres adapter.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*entity.JobRecord

	failGet    error
	failUpdate error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*entity.JobRecord)}
}

func jobKey(owner, jobID string) string { return owner + "/" + jobID }

func (s *fakeJobStore) Get(_ context.Context, owner, jobID string) (*entity.JobRecord, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobKey(owner, jobID)]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeJobStore) Put(_ context.Context, rec *entity.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.jobs[jobKey(rec.Owner, rec.JobID)] = &cp
	return nil
}

func (s *fakeJobStore) ConditionalUpdate(_ context.Context, owner, jobID string, expected entity.JobStatus, patch port.JobPatch) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobKey(owner, jobID)]
	if !ok {
		return port.ErrNotFound
	}
	if rec.Status != expected {
		return port.ErrConflict
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.OutputKey != nil {
		rec.OutputKey = *patch.OutputKey
	}
	if patch.Error != nil {
		rec.Error = *patch.Error
	}
	if patch.QueuedAt != nil {
		rec.QueuedAt = patch.QueuedAt
	}
	if patch.StartedAt != nil {
		rec.StartedAt = patch.StartedAt
	}
	if patch.FinishedAt != nil {
		rec.FinishedAt = patch.FinishedAt
	}
	if patch.ClearError {
		rec.Error = ""
	}
	if patch.ClearStartedAt {
		rec.StartedAt = nil
	}
	if patch.ClearFinishedAt {
		rec.FinishedAt = nil
	}
	return nil
}

func (s *fakeJobStore) QueryByOwner(_ context.Context, owner string) ([]entity.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.JobRecord
	for _, rec := range s.jobs {
		if rec.Owner == owner {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeJobStore) ScanAll(_ context.Context) ([]entity.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.JobRecord
	for _, rec := range s.jobs {
		out = append(out, *rec)
	}
	return out, nil
}

func (s *fakeJobStore) FindByJobID(_ context.Context, jobID string) (*entity.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.jobs {
		if rec.JobID == jobID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (s *fakeJobStore) Delete(_ context.Context, owner, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey(owner, jobID)
	if _, ok := s.jobs[key]; !ok {
		return port.ErrNotFound
	}
	delete(s.jobs, key)
	return nil
}

// fakeBlobStore keeps objects in a map. Download materializes content to the
// destination path so the pipeline's file handling is exercised.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	failDownload error
	failUpload   error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (b *fakeBlobStore) Download(_ context.Context, key, destPath string) error {
	if b.failDownload != nil {
		return b.failDownload
	}
	b.mu.Lock()
	data, ok := b.objects[key]
	b.mu.Unlock()
	if !ok {
		return port.ErrNotFound
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (b *fakeBlobStore) Upload(_ context.Context, key, srcPath, _ string) error {
	if b.failUpload != nil {
		return b.failUpload
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.objects[key] = data
	b.mu.Unlock()
	return nil
}

func (b *fakeBlobStore) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()
	return nil
}

func (b *fakeBlobStore) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/get/" + key, nil
}

func (b *fakeBlobStore) PresignedPutURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/put/" + key, nil
}

func (b *fakeBlobStore) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// fakeTranscoder copies input to output, or runs an injected hook.
type fakeTranscoder struct {
	mu    sync.Mutex
	runs  int
	runFn func(ctx context.Context, inputPath, outputPath string) error
}

func (f *fakeTranscoder) Run(ctx context.Context, inputPath, outputPath string, _ port.Profile) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.runFn != nil {
		return f.runFn(ctx, inputPath, outputPath)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func (f *fakeTranscoder) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// fakeQueue records sent bodies.
type fakeQueue struct {
	mu       sync.Mutex
	sent     [][]byte
	failSend error
}

func (q *fakeQueue) Send(_ context.Context, body []byte) error {
	if q.failSend != nil {
		return q.failSend
	}
	q.mu.Lock()
	q.sent = append(q.sent, body)
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) Receive(context.Context, int, time.Duration) ([]port.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Delete(context.Context, string) error { return nil }

func (q *fakeQueue) sentBodies() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][]byte(nil), q.sent...)
}

// fakeStatusPublisher records published status messages.
type fakeStatusPublisher struct {
	mu   sync.Mutex
	msgs []entity.JobStatusMessage
}

func (p *fakeStatusPublisher) PublishStatus(_ context.Context, msg entity.JobStatusMessage) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	return nil
}

func (p *fakeStatusPublisher) published() []entity.JobStatusMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.JobStatusMessage(nil), p.msgs...)
}

// fakeUploadStore is an in-memory UploadStore.
type fakeUploadStore struct {
	mu      sync.Mutex
	uploads map[string]*entity.UploadRecord
}

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{uploads: make(map[string]*entity.UploadRecord)}
}

func (s *fakeUploadStore) Get(_ context.Context, owner, fileID string) (*entity.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.uploads[jobKey(owner, fileID)]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeUploadStore) Put(_ context.Context, rec *entity.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.uploads[jobKey(rec.Owner, rec.FileID)] = &cp
	return nil
}

func (s *fakeUploadStore) QueryByOwner(_ context.Context, owner string) ([]entity.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.UploadRecord
	for _, rec := range s.uploads {
		if rec.Owner == owner {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeUploadStore) Delete(_ context.Context, owner, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey(owner, fileID)
	if _, ok := s.uploads[key]; !ok {
		return port.ErrNotFound
	}
	delete(s.uploads, key)
	return nil
}
