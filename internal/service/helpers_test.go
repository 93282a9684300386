package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"
	"docflow/internal/repository/memory"
	"docflow/internal/storage"
	"docflow/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sampleInvoiceText = `Johnson & Partners LLP
Invoice Number: INV-20240117
Invoice Date: 2024-01-17
Due Date: 02/16/2024
Bill To: Johnson & Partners LLP
Matter: Estate of Smith
Subtotal: $1,000.00
Total Due: $1,200.50`

type fixture struct {
	store  *memory.Store
	repos  repository.Repositories
	blobs  *storage.MemoryStore
	broker *Broker
	intake *IntakeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:  store,
		repos:  store.Repositories(),
		blobs:  storage.NewMemoryStore(),
		broker: NewBroker(64),
	}
	f.intake = NewIntakeService(f.repos.Documents, f.blobs, uploadConfig(), stubPages, f.broker, zap.NewNop())
	return f
}

func uploadConfig() *config.UploadConfig {
	return &config.UploadConfig{
		MaxFileBytes:      1024,
		AllowedExtensions: config.DefaultAllowedExtensions,
	}
}

func stubPages([]byte) (int, error) { return 2, nil }

func fileOf(name string, data []byte) UploadFile {
	return UploadFile{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// upload stores one pending document and returns it.
func (f *fixture) upload(t *testing.T, name string) *models.Document {
	t.Helper()
	res, err := f.intake.Upload(context.Background(), []UploadFile{fileOf(name, []byte("%PDF-1.4 "+name))})
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	return res.Documents[0]
}

// seedDocument stores a document in the given status directly.
func (f *fixture) seedDocument(t *testing.T, status models.DocumentStatus, fields map[string]string) *models.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &models.Document{
		ID:              uuid.New(),
		BatchID:         uuid.New(),
		FileName:        "scan.pdf",
		Extension:       "pdf",
		StorageKey:      "documents/scan.pdf",
		Status:          status,
		ExtractedFields: fields,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status == models.DocumentStatusProcessed {
		doc.ProcessedAt = &now
		doc.Progress = 100
	}
	if err := f.repos.Documents.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return doc
}

func (f *fixture) seedClient(t *testing.T, name string) *models.Client {
	t.Helper()
	c := &models.Client{ID: uuid.New(), Name: name, Email: uuid.NewString() + "@example.com", CreatedAt: time.Now()}
	if err := f.repos.Clients.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() client error: %v", err)
	}
	return c
}

func (f *fixture) status(t *testing.T, id uuid.UUID) *models.Document {
	t.Helper()
	doc, err := f.repos.Documents.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	return doc
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeExtractor counts calls and delegates to fn when set.
type fakeExtractor struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (string, error)
}

func (e *fakeExtractor) ExtractText(ctx context.Context, _ *models.Document, _ []byte) (string, error) {
	e.calls.Add(1)
	if e.fn != nil {
		return e.fn(ctx)
	}
	return sampleInvoiceText, nil
}

type parserFunc func(ctx context.Context, text string) (map[string]string, error)

func (f parserFunc) ParseFields(ctx context.Context, text string) (map[string]string, error) {
	return f(ctx, text)
}

// blockingExtractor parks every call until released.
type blockingExtractor struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingExtractor() *blockingExtractor {
	return &blockingExtractor{entered: make(chan struct{}), release: make(chan struct{})}
}

func (e *blockingExtractor) ExtractText(ctx context.Context, _ *models.Document, _ []byte) (string, error) {
	e.once.Do(func() { close(e.entered) })
	select {
	case <-e.release:
		return sampleInvoiceText, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type failingBlobs struct {
	storage.BlobStore
	putErr error
}

func (b failingBlobs) Put(context.Context, string, io.Reader, int64, string) error {
	return b.putErr
}

type failingCreateDocs struct {
	repository.DocumentRepository
}

func (failingCreateDocs) Create(context.Context, *models.Document) error {
	return errors.New("connection reset")
}
