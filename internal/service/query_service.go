package service

import (
	"context"
	"strings"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DocumentQuery struct {
	Search   string
	Status   string
	BatchID  *uuid.UUID
	Page     int
	PageSize int
}

type StatusTotal struct {
	Count  int
	Amount decimal.Decimal
}

type Summary struct {
	Invoices map[models.InvoiceStatus]StatusTotal
	// Outstanding is the amount of sent and overdue invoices.
	Outstanding decimal.Decimal
	Documents   map[models.DocumentStatus]int
}

// QueryService serves read-only listings across documents and invoices.
type QueryService struct {
	docs     repository.DocumentRepository
	invoices repository.InvoiceRepository
	now      func() time.Time
	logger   *zap.Logger
}

func NewQueryService(docs repository.DocumentRepository, invoices repository.InvoiceRepository, logger *zap.Logger) *QueryService {
	return &QueryService{docs: docs, invoices: invoices, now: time.Now, logger: logger}
}

func (s *QueryService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "document")
	}
	return doc, nil
}

func (s *QueryService) ListDocuments(ctx context.Context, q DocumentQuery) (*Page[*models.Document], error) {
	filter := repository.DocumentFilter{
		Search:  strings.TrimSpace(q.Search),
		BatchID: q.BatchID,
	}
	if q.Status != "" && q.Status != "all" {
		st, ok := models.ParseDocumentStatus(q.Status)
		if !ok {
			return nil, NewValidationError("unknown document status %q", q.Status)
		}
		filter.Status = st
	}
	page, pageSize := normalizePage(q.Page, q.PageSize)
	filter.Limit = pageSize
	filter.Offset = page * pageSize

	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, fromRepo(err, "documents")
	}
	return &Page[*models.Document]{Items: docs, Total: total, Page: page, PageSize: pageSize}, nil
}

// BatchDocuments returns every document of one upload request.
func (s *QueryService) BatchDocuments(ctx context.Context, batchID uuid.UUID) ([]*models.Document, error) {
	docs, _, err := s.docs.List(ctx, repository.DocumentFilter{BatchID: &batchID})
	if err != nil {
		return nil, fromRepo(err, "documents")
	}
	if len(docs) == 0 {
		return nil, NewNotFoundError("batch not found")
	}
	return docs, nil
}

// Summary aggregates invoices by effective status and documents by status.
func (s *QueryService) Summary(ctx context.Context) (*Summary, error) {
	today := models.StartOfDay(s.now())
	invoices, _, err := s.invoices.List(ctx, repository.InvoiceFilter{Today: today})
	if err != nil {
		return nil, fromRepo(err, "invoices")
	}

	summary := &Summary{
		Invoices: map[models.InvoiceStatus]StatusTotal{
			models.InvoiceStatusDraft:   {Amount: decimal.Zero},
			models.InvoiceStatusSent:    {Amount: decimal.Zero},
			models.InvoiceStatusOverdue: {Amount: decimal.Zero},
			models.InvoiceStatusPaid:    {Amount: decimal.Zero},
		},
		Outstanding: decimal.Zero,
	}
	for _, inv := range invoices {
		st := inv.EffectiveStatus(today)
		t := summary.Invoices[st]
		t.Count++
		t.Amount = t.Amount.Add(inv.Total)
		summary.Invoices[st] = t
		if st == models.InvoiceStatusSent || st == models.InvoiceStatusOverdue {
			summary.Outstanding = summary.Outstanding.Add(inv.Total)
		}
	}

	counts, err := s.docs.CountByStatus(ctx)
	if err != nil {
		return nil, fromRepo(err, "documents")
	}
	summary.Documents = counts
	return summary, nil
}
