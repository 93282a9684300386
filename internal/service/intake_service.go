package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"
	"docflow/internal/storage"
	"docflow/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const uploadParallelism = 4

// UploadFile is one part of an upload request. Open may be called once.
type UploadFile struct {
	Name         string
	DeclaredType string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

type FileRejection struct {
	FileName string
	Err      *Error
}

type UploadResult struct {
	BatchID   uuid.UUID
	Documents []*models.Document
	Rejected  []FileRejection
}

// PageCounter reports the page count of a PDF; errors are not fatal.
type PageCounter func(data []byte) (int, error)

type IntakeService struct {
	docs     repository.DocumentRepository
	blobs    storage.BlobStore
	allowed  map[string]struct{}
	maxBytes int64
	pages    PageCounter
	broker   *Broker
	logger   *zap.Logger
}

func NewIntakeService(
	docs repository.DocumentRepository,
	blobs storage.BlobStore,
	cfg *config.UploadConfig,
	pages PageCounter,
	broker *Broker,
	logger *zap.Logger,
) *IntakeService {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[NormalizeExt(ext)] = struct{}{}
	}
	return &IntakeService{
		docs:     docs,
		blobs:    blobs,
		allowed:  allowed,
		maxBytes: cfg.MaxFileBytes,
		pages:    pages,
		broker:   broker,
		logger:   logger,
	}
}

// NormalizeExt lower-cases an extension or file name suffix and strips the dot.
func NormalizeExt(nameOrExt string) string {
	ext := filepath.Ext(nameOrExt)
	if ext == "" {
		ext = nameOrExt
	}
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}

// Upload validates and stores every file independently. Accepted files
// become pending documents sharing one batch id. When nothing is accepted
// the first rejection is also returned as the error.
func (s *IntakeService) Upload(ctx context.Context, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, NewValidationError("at least one file is required")
	}

	result := &UploadResult{BatchID: uuid.New()}
	docs := make([]*models.Document, len(files))
	rejections := make([]*Error, len(files))

	var g errgroup.Group
	g.SetLimit(uploadParallelism)
	for i, f := range files {
		if err := s.validate(f); err != nil {
			rejections[i] = err
			continue
		}
		g.Go(func() error {
			doc, err := s.store(ctx, result.BatchID, f)
			if err != nil {
				rejections[i] = asServiceError(err)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range files {
		switch {
		case docs[i] != nil:
			result.Documents = append(result.Documents, docs[i])
			uploadsTotal.WithLabelValues("accepted").Inc()
		case rejections[i] != nil:
			result.Rejected = append(result.Rejected, FileRejection{FileName: f.Name, Err: rejections[i]})
			uploadsTotal.WithLabelValues("rejected").Inc()
			s.logger.Info("Upload rejected",
				zap.String("file", f.Name),
				zap.String("kind", string(rejections[i].Kind)),
				zap.String("reason", rejections[i].Message),
			)
		}
	}

	if len(result.Documents) == 0 {
		return result, result.Rejected[0].Err
	}
	s.logger.Info("Upload batch stored",
		zap.String("batch_id", result.BatchID.String()),
		zap.Int("accepted", len(result.Documents)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// IngestUnique stores a single file unless a document with identical
// content already exists, in which case the existing one is returned with
// created=false.
func (s *IntakeService) IngestUnique(ctx context.Context, f UploadFile) (doc *models.Document, created bool, err error) {
	if verr := s.validate(f); verr != nil {
		return nil, false, verr
	}
	data, checksum, err := s.read(f)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.docs.GetByChecksum(ctx, checksum)
	if err == nil {
		uploadsTotal.WithLabelValues("duplicate").Inc()
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, NewStorageError("failed to look up checksum", err)
	}

	doc, err = s.persist(ctx, uuid.New(), f, data, checksum)
	if err != nil {
		return nil, false, err
	}
	uploadsTotal.WithLabelValues("accepted").Inc()
	return doc, true, nil
}

func (s *IntakeService) validate(f UploadFile) *Error {
	ext := NormalizeExt(f.Name)
	if _, ok := s.allowed[ext]; !ok || filepath.Ext(f.Name) == "" {
		return NewValidationError("file type %q is not allowed", ext)
	}
	if f.Size > s.maxBytes {
		return NewValidationError("file exceeds the %d byte limit", s.maxBytes)
	}
	if f.Open == nil {
		return NewValidationError("file content is missing")
	}
	return nil
}

func (s *IntakeService) store(ctx context.Context, batchID uuid.UUID, f UploadFile) (*models.Document, error) {
	data, checksum, err := s.read(f)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, batchID, f, data, checksum)
}

// read enforces the size limit on the actual bytes, not the declared size.
func (s *IntakeService) read(f UploadFile) ([]byte, string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, "", NewValidationError("failed to open file: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, "", NewStorageError("failed to read upload", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", NewValidationError("file exceeds the %d byte limit", s.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", NewValidationError("file is empty")
	}

	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// persist writes the blob first and the record second; a failed record
// write removes the blob again.
func (s *IntakeService) persist(ctx context.Context, batchID uuid.UUID, f UploadFile, data []byte, checksum string) (*models.Document, error) {
	ext := NormalizeExt(f.Name)
	id := uuid.New()
	key := fmt.Sprintf("documents/%s.%s", id, ext)
	mimeType := f.DeclaredType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension("." + ext); byExt != "" {
			mimeType = byExt
		}
	}

	pages := 0
	if ext == "pdf" && s.pages != nil {
		n, err := s.pages(data)
		if err != nil {
			s.logger.Warn("Failed to count pdf pages", zap.String("file", f.Name), zap.Error(err))
		} else {
			pages = n
		}
	}

	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, NewStorageError("failed to store file", err)
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:         id,
		BatchID:    batchID,
		FileName:   filepath.Base(f.Name),
		Extension:  ext,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		Checksum:   checksum,
		StorageKey: key,
		Pages:      pages,
		Status:     models.DocumentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("Failed to remove orphaned blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, NewStorageError("failed to create document record", err)
	}

	s.broker.publishDocument(doc)
	return doc, nil
}

func asServiceError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
