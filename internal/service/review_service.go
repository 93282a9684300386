package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CommitRequest carries the reviewer's edits. Edited fields win over the
// extracted ones. InvoiceID names an existing draft to update instead of
// creating a new invoice.
type CommitRequest struct {
	Fields    map[string]string
	InvoiceID *uuid.UUID
}

type CommitResult struct {
	Document *models.Document
	Invoice  *models.Invoice
	Created  bool
}

type ReviewService struct {
	tx     repository.Transactor
	repos  repository.Repositories
	locks  *KeyedMutex
	logger *zap.Logger
}

func NewReviewService(tx repository.Transactor, repos repository.Repositories, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		tx:     tx,
		repos:  repos,
		locks:  NewKeyedMutex(),
		logger: logger,
	}
}

// ListPendingReview returns processed documents waiting for a commit.
func (s *ReviewService) ListPendingReview(ctx context.Context, page, pageSize int) (*Page[*models.Document], error) {
	page, pageSize = normalizePage(page, pageSize)
	docs, total, err := s.repos.Documents.List(ctx, repository.DocumentFilter{
		Status: models.DocumentStatusProcessed,
		Limit:  pageSize,
		Offset: page * pageSize,
	})
	if err != nil {
		return nil, fromRepo(err, "documents")
	}
	return &Page[*models.Document]{Items: docs, Total: total, Page: page, PageSize: pageSize}, nil
}

// Commit turns a processed document into an invoice. The invoice write and
// the document transition happen in one transaction; a document commits at
// most once.
func (s *ReviewService) Commit(ctx context.Context, docID uuid.UUID, req CommitRequest) (*CommitResult, error) {
	unlock := s.locks.Lock(docID)
	defer unlock()

	log := s.logger.With(zap.String("document_id", docID.String()))

	doc, err := s.repos.Documents.GetByID(ctx, docID)
	if err != nil {
		return nil, fromRepo(err, "document")
	}
	switch doc.Status {
	case models.DocumentStatusCommitted:
		commitsTotal.WithLabelValues("duplicate").Inc()
		return nil, ErrAlreadyCommitted
	case models.DocumentStatusProcessed:
	default:
		commitsTotal.WithLabelValues("rejected").Inc()
		return nil, NewConflictError("document is %s; only processed documents can be committed", doc.Status)
	}

	fields := mergeFields(doc.ExtractedFields, req.Fields)
	draft, err := invoiceFromFields(doc, fields)
	if err != nil {
		commitsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var result CommitResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if draft.ClientID != nil {
			if _, err := repos.Clients.GetByID(ctx, *draft.ClientID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return NewValidationError("client %s does not exist", draft.ClientID)
				}
				return err
			}
		}

		inv, created, err := s.writeInvoice(ctx, repos, draft, req.InvoiceID)
		if err != nil {
			return err
		}

		committed, err := repos.Documents.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusProcessed, func(d *models.Document) {
			now := time.Now().UTC()
			d.Status = models.DocumentStatusCommitted
			d.ExtractedFields = fields
			d.InvoiceID = &inv.ID
			d.CommittedAt = &now
		})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return NewConflictError("document changed state during commit")
			}
			return err
		}

		result = CommitResult{Document: committed, Invoice: inv, Created: created}
		return nil
	})
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			commitsTotal.WithLabelValues(string(serr.Kind)).Inc()
			return nil, serr
		}
		commitsTotal.WithLabelValues("failed").Inc()
		log.Error("Commit transaction failed", zap.Error(err))
		return nil, NewCommitError("failed to commit document", err)
	}

	commitsTotal.WithLabelValues("committed").Inc()
	log.Info("Document committed",
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("invoice_number", result.Invoice.Number),
		zap.Bool("created", result.Created),
	)
	return &result, nil
}

func (s *ReviewService) writeInvoice(ctx context.Context, repos repository.Repositories, draft *models.Invoice, target *uuid.UUID) (*models.Invoice, bool, error) {
	if target == nil {
		if err := repos.Invoices.Create(ctx, draft); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, false, NewConflictError("invoice number %s already exists", draft.Number)
			}
			return nil, false, err
		}
		return draft, true, nil
	}

	existing, err := repos.Invoices.GetByID(ctx, *target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, NewNotFoundError("invoice not found")
		}
		return nil, false, err
	}
	if existing.Status != models.InvoiceStatusDraft {
		return nil, false, NewConflictError("invoice %s is %s; only drafts can be updated", existing.Number, existing.Status)
	}

	existing.Number = draft.Number
	existing.IssueDate = draft.IssueDate
	existing.DueDate = draft.DueDate
	existing.SourceDocumentID = draft.SourceDocumentID
	if draft.ClientID != nil {
		existing.ClientID = draft.ClientID
	}
	if draft.Matter != "" {
		existing.Matter = draft.Matter
	}
	if draft.Notes != "" {
		existing.Notes = draft.Notes
	}
	if draft.Terms != "" {
		existing.Terms = draft.Terms
	}
	if len(draft.LineItems) > 0 {
		existing.LineItems = draft.LineItems
	}
	existing.Recalculate()
	existing.UpdatedAt = time.Now().UTC()

	if err := repos.Invoices.Update(ctx, existing, models.InvoiceStatusDraft); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, false, invoiceWriteError(err, existing)
		}
		return nil, false, err
	}
	return existing, false, nil
}

func mergeFields(extracted, edited map[string]string) map[string]string {
	merged := make(map[string]string, len(extracted)+len(edited))
	for k, v := range extracted {
		merged[k] = v
	}
	for k, v := range edited {
		v = strings.TrimSpace(v)
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

// invoiceFromFields validates reviewed fields and builds a draft invoice.
func invoiceFromFields(doc *models.Document, fields map[string]string) (*models.Invoice, error) {
	number := strings.TrimSpace(fields[FieldInvoiceNumber])
	if number == "" {
		return nil, NewValidationError("invoiceNumber is required")
	}

	base := time.Now()
	if doc.ProcessedAt != nil {
		base = *doc.ProcessedAt
	}
	issue := models.StartOfDay(base)
	if raw, ok := fields[FieldIssueDate]; ok {
		d, err := parseDate(FieldIssueDate, raw)
		if err != nil {
			return nil, err
		}
		issue = d
	}
	due := issue.Add(models.DefaultPaymentTerm)
	if raw, ok := fields[FieldDueDate]; ok {
		d, err := parseDate(FieldDueDate, raw)
		if err != nil {
			return nil, err
		}
		due = d
	}
	if due.Before(issue) {
		return nil, NewValidationError("dueDate must not be before issueDate")
	}

	now := time.Now().UTC()
	sourceID := doc.ID
	inv := &models.Invoice{
		ID:               uuid.New(),
		Number:           number,
		Matter:           fields[FieldMatter],
		IssueDate:        issue,
		DueDate:          due,
		Status:           models.InvoiceStatusDraft,
		Notes:            fields[FieldNotes],
		Terms:            fields[FieldTerms],
		SourceDocumentID: &sourceID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if raw, ok := fields[FieldClientID]; ok {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, NewValidationError("clientId %q is not a valid id", raw)
		}
		inv.ClientID = &id
	}

	rawAmount, ok := fields[FieldTotal]
	key := FieldTotal
	if !ok {
		rawAmount, ok = fields[FieldAmount]
		key = FieldAmount
	}
	if ok {
		amount, err := parseMoney(key, rawAmount)
		if err != nil {
			return nil, err
		}
		description := fields[FieldDescription]
		if description == "" {
			description = "Services per " + doc.FileName
		}
		inv.LineItems = []models.LineItem{{
			Description: description,
			Quantity:    decimal.NewFromInt(1),
			Rate:        amount,
		}}
	}
	inv.Recalculate()
	return inv, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, NewValidationError("%s must be a YYYY-MM-DD date, got %q", field, raw)
	}
	return d, nil
}

func parseMoney(field, raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(raw)
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, NewValidationError("%s must be a number, got %q", field, raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, NewValidationError("%s must not be negative", field)
	}
	return amount, nil
}
