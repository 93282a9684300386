package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"
	"docflow/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxReasonLength = 500
	finalizeTimeout = 10 * time.Second
)

// Progress checkpoints reported while a job runs.
const (
	progressStarted   = 10
	progressExtracted = 50
	progressParsed    = 90
	progressDone      = 100
)

// RequestOutcome describes what a processing request did for one document.
type RequestOutcome struct {
	DocumentID uuid.UUID
	Document   *models.Document
	// Queued is false when the request was an idempotent no-op.
	Queued bool
	Err    error
}

// Processor owns the background worker pool that moves documents from
// pending to processed or failed.
type Processor struct {
	docs      repository.DocumentRepository
	blobs     storage.BlobStore
	extractor TextExtractor
	parser    FieldParser
	broker    *Broker
	logger    *zap.Logger

	workers int
	timeout time.Duration

	ch       chan job
	wg       sync.WaitGroup
	once     sync.Once
	mu       sync.Mutex
	closed   bool
	inflight *inflight
}

type ProcessorOption func(*Processor)

func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.ch = make(chan job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewProcessor(
	docs repository.DocumentRepository,
	blobs storage.BlobStore,
	extractor TextExtractor,
	parser FieldParser,
	broker *Broker,
	logger *zap.Logger,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		docs:      docs,
		blobs:     blobs,
		extractor: extractor,
		parser:    parser,
		broker:    broker,
		logger:    logger,
		workers:   4,
		timeout:   3 * time.Minute,
		ch:        make(chan job, 256),
		inflight:  newInflight(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Processor) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("Worker started", zap.Int("worker_id", workerID))
				for j := range p.ch {
					queueDepth.Dec()
					p.run(j)
				}
				p.logger.Debug("Worker stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
		p.logger.Info("Processing workers started", zap.Int("workers", p.workers))
	})
}

// Shutdown stops accepting work and waits for queued jobs to drain.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("Processor shutdown interrupted", zap.Error(ctx.Err()))
		return ctx.Err()
	case <-done:
		p.logger.Info("Processing queue drained")
		return nil
	}
}

// Recover returns documents left in processing by a previous run to
// pending so they can be requested again.
func (p *Processor) Recover(ctx context.Context) error {
	stuck, _, err := p.docs.List(ctx, repository.DocumentFilter{Status: models.DocumentStatusProcessing})
	if err != nil {
		return fromRepo(err, "documents")
	}
	for _, doc := range stuck {
		if p.inflight.has(doc.ID) {
			continue
		}
		if _, err := p.docs.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusProcessing, func(d *models.Document) {
			d.Status = models.DocumentStatusPending
			d.Progress = 0
		}); err != nil {
			p.logger.Warn("Failed to recover document", zap.String("document_id", doc.ID.String()), zap.Error(err))
			continue
		}
		p.logger.Info("Recovered interrupted document", zap.String("document_id", doc.ID.String()))
	}
	return nil
}

// Request queues a pending document. Requests for documents that are
// already queued, processing or processed are no-ops.
func (p *Processor) Request(ctx context.Context, id uuid.UUID) (*RequestOutcome, error) {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "document")
	}

	switch doc.Status {
	case models.DocumentStatusPending:
		token := p.inflight.acquire(id)
		if token == nil {
			return &RequestOutcome{DocumentID: id, Document: doc}, nil
		}
		if err := p.enqueue(ctx, job{id: id, token: token}); err != nil {
			p.inflight.release(id, token)
			return nil, err
		}
		return &RequestOutcome{DocumentID: id, Document: doc, Queued: true}, nil
	case models.DocumentStatusProcessing, models.DocumentStatusProcessed:
		return &RequestOutcome{DocumentID: id, Document: doc}, nil
	case models.DocumentStatusCommitted:
		return nil, ErrAlreadyCommitted
	default:
		if doc.ErrorReason == models.ReasonCancelled {
			return nil, NewConflictError("document was cancelled; retry it to process again")
		}
		return nil, NewConflictError("document failed; retry it to process again")
	}
}

// RequestMany applies Request to each id in order. Per-document errors are
// reported on the outcome, not returned.
func (p *Processor) RequestMany(ctx context.Context, ids []uuid.UUID) []RequestOutcome {
	outcomes := make([]RequestOutcome, 0, len(ids))
	for _, id := range ids {
		out, err := p.Request(ctx, id)
		if err != nil {
			outcomes = append(outcomes, RequestOutcome{DocumentID: id, Err: err})
			continue
		}
		outcomes = append(outcomes, *out)
	}
	return outcomes
}

// Cancel stops a document before or during processing. A pending document
// fails immediately; a running job observes the flag at its next step.
func (p *Processor) Cancel(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	for attempt := 0; attempt < 3; attempt++ {
		doc, err := p.docs.GetByID(ctx, id)
		if err != nil {
			return nil, fromRepo(err, "document")
		}

		switch doc.Status {
		case models.DocumentStatusPending:
			updated, err := p.docs.CompareAndSetStatus(ctx, id, models.DocumentStatusPending, func(d *models.Document) {
				d.Status = models.DocumentStatusFailed
				d.ErrorReason = models.ReasonCancelled
				d.Progress = 0
			})
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, fromRepo(err, "document")
			}
			p.inflight.drop(id)
			p.broker.publishDocument(updated)
			p.logger.Info("Document cancelled before processing", zap.String("document_id", id.String()))
			return updated, nil

		case models.DocumentStatusProcessing:
			if p.inflight.cancel(id) {
				p.logger.Info("Cancellation requested", zap.String("document_id", id.String()))
				return doc, nil
			}
			// No live job owns it, so nobody would observe the flag.
			updated, err := p.fail(ctx, id, models.ReasonCancelled)
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, fromRepo(err, "document")
			}
			return updated, nil

		default:
			return nil, NewConflictError("document is %s and cannot be cancelled", doc.Status)
		}
	}
	return nil, NewConflictError("document changed state during cancellation")
}

// Retry resets a failed document to pending and queues it again.
func (p *Processor) Retry(ctx context.Context, id uuid.UUID) (*RequestOutcome, error) {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "document")
	}
	if doc.Status != models.DocumentStatusFailed {
		return nil, NewConflictError("only failed documents can be retried, document is %s", doc.Status)
	}

	updated, err := p.docs.CompareAndSetStatus(ctx, id, models.DocumentStatusFailed, func(d *models.Document) {
		d.Status = models.DocumentStatusPending
		d.ErrorReason = ""
		d.ExtractedFields = nil
		d.Progress = 0
		d.ProcessedAt = nil
	})
	if err != nil {
		return nil, fromRepo(err, "document")
	}
	p.broker.publishDocument(updated)
	p.logger.Info("Document reset for retry", zap.String("document_id", id.String()))
	return p.Request(ctx, id)
}

// Discard deletes a document that is not being processed and was never
// committed, together with its stored bytes.
func (p *Processor) Discard(ctx context.Context, id uuid.UUID) error {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return fromRepo(err, "document")
	}
	switch {
	case doc.Status == models.DocumentStatusCommitted:
		return ErrAlreadyCommitted
	case doc.Status == models.DocumentStatusProcessing || p.inflight.has(id):
		return NewConflictError("document is being processed; cancel it first")
	}

	if err := p.docs.Delete(ctx, id); err != nil {
		return fromRepo(err, "document")
	}
	if err := p.blobs.Delete(ctx, doc.StorageKey); err != nil {
		p.logger.Warn("Failed to delete blob of discarded document",
			zap.String("document_id", id.String()),
			zap.String("key", doc.StorageKey),
			zap.Error(err),
		)
	}
	p.logger.Info("Document discarded", zap.String("document_id", id.String()))
	return nil
}

// job is one queued processing run, bound to the token that admitted it.
type job struct {
	id    uuid.UUID
	token *jobToken
}

func (p *Processor) enqueue(ctx context.Context, j job) error {
	id := j.id
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return &Error{Kind: KindInternal, Message: "processing queue is shutting down"}
	}
	select {
	case p.ch <- j:
	default:
		p.logger.Warn("Processing queue full, applying backpressure", zap.String("document_id", id.String()))
		select {
		case p.ch <- j:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	queueDepth.Inc()
	p.logger.Info("Queued document for processing", zap.String("document_id", id.String()))
	return nil
}

func (p *Processor) run(j job) {
	id := j.id
	defer p.inflight.release(id, j.token)

	if !p.inflight.active(id, j.token) {
		p.logger.Debug("Skipping cancelled job", zap.String("document_id", id.String()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	start := time.Now()

	doc, err := p.docs.CompareAndSetStatus(ctx, id, models.DocumentStatusPending, func(d *models.Document) {
		d.Status = models.DocumentStatusProcessing
		d.Progress = progressStarted
		d.ErrorReason = ""
	})
	if err != nil {
		// Cancelled, discarded or already taken before the job started.
		p.logger.Debug("Skipping job", zap.String("document_id", id.String()), zap.Error(err))
		return
	}
	p.broker.publishDocument(doc)

	final := p.execute(ctx, doc, j.token)
	processingTotal.WithLabelValues(string(final)).Inc()
	processingDuration.Observe(time.Since(start).Seconds())
}

// execute runs the extraction steps and records the outcome. It returns
// the status the document ended in.
func (p *Processor) execute(ctx context.Context, doc *models.Document, token *jobToken) models.DocumentStatus {
	log := p.logger.With(zap.String("document_id", doc.ID.String()))

	if reason, stop := p.checkpoint(ctx, token); stop {
		return p.finish(doc.ID, reason, log)
	}
	data, err := p.readBlob(ctx, doc)
	if err != nil {
		if reason, stop := p.checkpoint(ctx, token); stop {
			return p.finish(doc.ID, reason, log)
		}
		log.Warn("Storage read failed, returning document to pending", zap.Error(err))
		if _, err := p.revert(doc.ID); err != nil {
			log.Error("Failed to revert document", zap.Error(err))
		}
		return models.DocumentStatusPending
	}

	if reason, stop := p.checkpoint(ctx, token); stop {
		return p.finish(doc.ID, reason, log)
	}
	text, err := p.extractor.ExtractText(ctx, doc, data)
	if err != nil {
		if reason, stop := p.checkpoint(ctx, token); stop {
			return p.finish(doc.ID, reason, log)
		}
		return p.finish(doc.ID, NewExtractionError("text extraction failed", err).reason(), log)
	}
	text = sanitizeUTF8(text)
	p.progress(ctx, doc, progressExtracted)

	if reason, stop := p.checkpoint(ctx, token); stop {
		return p.finish(doc.ID, reason, log)
	}
	fields, err := p.parser.ParseFields(ctx, text)
	if err != nil {
		if reason, stop := p.checkpoint(ctx, token); stop {
			return p.finish(doc.ID, reason, log)
		}
		return p.finish(doc.ID, NewExtractionError("field parsing failed", err).reason(), log)
	}
	p.progress(ctx, doc, progressParsed)

	if reason, stop := p.checkpoint(ctx, token); stop {
		return p.finish(doc.ID, reason, log)
	}
	fctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	updated, err := p.docs.CompareAndSetStatus(fctx, doc.ID, models.DocumentStatusProcessing, func(d *models.Document) {
		now := time.Now().UTC()
		d.Status = models.DocumentStatusProcessed
		d.ExtractedFields = fields
		d.Progress = progressDone
		d.ProcessedAt = &now
	})
	if err != nil {
		log.Error("Failed to record processed document", zap.Error(err))
		return models.DocumentStatusProcessing
	}
	p.broker.publishDocument(updated)
	log.Info("Document processed", zap.Int("fields", len(fields)))
	return models.DocumentStatusProcessed
}

// checkpoint reports whether the job must stop before its next step.
func (p *Processor) checkpoint(ctx context.Context, token *jobToken) (string, bool) {
	if p.inflight.cancelled(token) {
		return models.ReasonCancelled, true
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.ReasonTimeout, true
	}
	return "", false
}

func (p *Processor) finish(id uuid.UUID, reason string, log *zap.Logger) models.DocumentStatus {
	fctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if _, err := p.fail(fctx, id, reason); err != nil {
		log.Error("Failed to record document failure", zap.String("reason", reason), zap.Error(err))
		return models.DocumentStatusProcessing
	}
	log.Info("Document processing failed", zap.String("reason", reason))
	return models.DocumentStatusFailed
}

func (p *Processor) fail(ctx context.Context, id uuid.UUID, reason string) (*models.Document, error) {
	updated, err := p.docs.CompareAndSetStatus(ctx, id, models.DocumentStatusProcessing, func(d *models.Document) {
		d.Status = models.DocumentStatusFailed
		d.ErrorReason = reason
	})
	if err != nil {
		return nil, err
	}
	p.broker.publishDocument(updated)
	return updated, nil
}

func (p *Processor) revert(id uuid.UUID) (*models.Document, error) {
	fctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	updated, err := p.docs.CompareAndSetStatus(fctx, id, models.DocumentStatusProcessing, func(d *models.Document) {
		d.Status = models.DocumentStatusPending
		d.Progress = 0
	})
	if err != nil {
		return nil, err
	}
	p.broker.publishDocument(updated)
	return updated, nil
}

func (p *Processor) readBlob(ctx context.Context, doc *models.Document) ([]byte, error) {
	rc, err := p.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", doc.StorageKey, err)
	}
	return data, nil
}

func (p *Processor) progress(ctx context.Context, doc *models.Document, value int) {
	if err := p.docs.UpdateProgress(ctx, doc.ID, value); err != nil {
		p.logger.Debug("Failed to update progress", zap.String("document_id", doc.ID.String()), zap.Error(err))
		return
	}
	doc.Progress = value
	p.broker.publishDocument(doc)
}

// reason renders an extraction error as the text stored on the document.
func (e *Error) reason() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(msg) > maxReasonLength {
		msg = msg[:maxReasonLength]
	}
	return sanitizeUTF8(msg)
}
