package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const numberAttempts = 5

type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
}

// InvoiceInput is the editable part of an invoice. Dates use DateLayout;
// an empty DueDate defaults to the issue date plus the payment term.
type InvoiceInput struct {
	Number    string
	ClientID  *uuid.UUID
	Matter    string
	IssueDate string
	DueDate   string
	LineItems []LineItemInput
	Notes     string
	Terms     string
}

type InvoiceQuery struct {
	Search   string
	Status   string
	Page     int
	PageSize int
}

// InvoiceService serializes writes per invoice id; the repository's
// status-conditional writes guard against writers outside this process.
type InvoiceService struct {
	invoices repository.InvoiceRepository
	clients  repository.ClientRepository
	locks    *KeyedMutex
	now      func() time.Time
	logger   *zap.Logger
}

func NewInvoiceService(invoices repository.InvoiceRepository, clients repository.ClientRepository, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		clients:  clients,
		locks:    NewKeyedMutex(),
		now:      time.Now,
		logger:   logger,
	}
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "invoice")
	}
	return inv, nil
}

// List filters by effective status, so "overdue" matches sent invoices
// past their due date as of today.
func (s *InvoiceService) List(ctx context.Context, q InvoiceQuery) (*Page[*models.Invoice], error) {
	filter, page, pageSize, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	filter.Limit = pageSize
	filter.Offset = page * pageSize

	items, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, fromRepo(err, "invoices")
	}
	return &Page[*models.Invoice]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *InvoiceService) filter(q InvoiceQuery) (repository.InvoiceFilter, int, int, error) {
	filter := repository.InvoiceFilter{
		Search: strings.TrimSpace(q.Search),
		Today:  models.StartOfDay(s.now()),
	}
	if q.Status != "" && q.Status != "all" {
		st, ok := models.ParseInvoiceStatus(q.Status)
		if !ok {
			return filter, 0, 0, NewValidationError("unknown invoice status %q", q.Status)
		}
		filter.Status = st
	}
	page, pageSize := normalizePage(q.Page, q.PageSize)
	return filter, page, pageSize, nil
}

func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	inv, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	inv.ID = uuid.New()
	inv.Status = models.InvoiceStatusDraft
	inv.CreatedAt = now
	inv.UpdatedAt = now

	if inv.Number == "" {
		number, err := s.nextNumber(ctx)
		if err != nil {
			return nil, err
		}
		inv.Number = number
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, NewConflictError("invoice number %s already exists", inv.Number)
		}
		return nil, fromRepo(err, "invoice")
	}
	s.logger.Info("Invoice created", zap.String("invoice_id", inv.ID.String()), zap.String("number", inv.Number))
	return s.Get(ctx, inv.ID)
}

// Update replaces the fields and line items of a draft invoice.
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, in InvoiceInput) (*models.Invoice, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.draft(ctx, id, "updated")
	if err != nil {
		return nil, err
	}
	inv, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	inv.ID = existing.ID
	inv.Status = existing.Status
	inv.SourceDocumentID = existing.SourceDocumentID
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = s.now().UTC()
	if inv.Number == "" {
		inv.Number = existing.Number
	}

	if err := s.invoices.Update(ctx, inv, existing.Status); err != nil {
		return nil, invoiceWriteError(err, inv)
	}
	return s.Get(ctx, id)
}

func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	inv, err := s.draft(ctx, id, "deleted")
	if err != nil {
		return err
	}
	if err := s.invoices.Delete(ctx, id, inv.Status); err != nil {
		return invoiceWriteError(err, inv)
	}
	s.logger.Info("Invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

// Send issues a draft invoice to the client.
func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	inv, err := s.draft(ctx, id, "sent")
	if err != nil {
		return nil, err
	}
	if len(inv.LineItems) == 0 {
		return nil, NewValidationError("invoice %s has no line items", inv.Number)
	}
	if inv.ClientID == nil {
		return nil, NewValidationError("invoice %s has no client", inv.Number)
	}
	now := s.now().UTC()
	inv.Status = models.InvoiceStatusSent
	inv.SentAt = &now
	inv.UpdatedAt = now
	if err := s.invoices.Update(ctx, inv, models.InvoiceStatusDraft); err != nil {
		return nil, invoiceWriteError(err, inv)
	}
	s.logger.Info("Invoice sent", zap.String("invoice_id", id.String()), zap.String("number", inv.Number))
	return s.Get(ctx, id)
}

// RecordPayment marks a sent or overdue invoice as paid on date.
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, date string) (*models.Invoice, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "invoice")
	}
	if inv.Status != models.InvoiceStatusSent {
		return nil, NewConflictError("invoice %s is %s; only sent invoices can be paid", inv.Number, inv.EffectiveStatus(s.now()))
	}

	paid := models.StartOfDay(s.now())
	if date != "" {
		if paid, err = parseDate("paymentDate", date); err != nil {
			return nil, err
		}
	}
	if paid.Before(inv.IssueDate) {
		return nil, NewValidationError("paymentDate must not be before issueDate")
	}

	inv.Status = models.InvoiceStatusPaid
	inv.PaymentDate = &paid
	inv.UpdatedAt = s.now().UTC()
	if err := s.invoices.Update(ctx, inv, models.InvoiceStatusSent); err != nil {
		return nil, invoiceWriteError(err, inv)
	}
	s.logger.Info("Invoice paid",
		zap.String("invoice_id", id.String()),
		zap.String("payment_date", paid.Format(models.DateLayout)),
	)
	return s.Get(ctx, id)
}

// ReversePayment returns a paid invoice to sent. It may become overdue again.
func (s *InvoiceService) ReversePayment(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "invoice")
	}
	if inv.Status != models.InvoiceStatusPaid {
		return nil, NewConflictError("invoice %s is not paid", inv.Number)
	}
	inv.Status = models.InvoiceStatusSent
	inv.PaymentDate = nil
	inv.UpdatedAt = s.now().UTC()
	if err := s.invoices.Update(ctx, inv, models.InvoiceStatusPaid); err != nil {
		return nil, invoiceWriteError(err, inv)
	}
	s.logger.Info("Invoice payment reversed", zap.String("invoice_id", id.String()))
	return s.Get(ctx, id)
}

func (s *InvoiceService) draft(ctx context.Context, id uuid.UUID, action string) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "invoice")
	}
	if inv.Status != models.InvoiceStatusDraft {
		return nil, NewConflictError("invoice %s is %s; only drafts can be %s", inv.Number, inv.EffectiveStatus(s.now()), action)
	}
	return inv, nil
}

// invoiceWriteError maps a failed conditional write. A status change means
// another writer got there first; any other conflict is a duplicate number.
func invoiceWriteError(err error, inv *models.Invoice) error {
	switch {
	case errors.Is(err, repository.ErrStatusChanged):
		return NewConflictError("invoice %s was changed concurrently; reload it and try again", inv.Number)
	case errors.Is(err, repository.ErrConflict):
		return NewConflictError("invoice number %s already exists", inv.Number)
	}
	return fromRepo(err, "invoice")
}

// build validates input and returns an invoice with totals computed.
func (s *InvoiceService) build(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	matter := strings.TrimSpace(in.Matter)
	if matter == "" {
		return nil, NewValidationError("matter is required")
	}
	if in.ClientID == nil {
		return nil, NewValidationError("clientId is required")
	}
	if _, err := s.clients.GetByID(ctx, *in.ClientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("client %s does not exist", in.ClientID)
		}
		return nil, fromRepo(err, "client")
	}

	issue := models.StartOfDay(s.now())
	if in.IssueDate != "" {
		d, err := parseDate("issueDate", in.IssueDate)
		if err != nil {
			return nil, err
		}
		issue = d
	}
	due := issue.Add(models.DefaultPaymentTerm)
	if in.DueDate != "" {
		d, err := parseDate("dueDate", in.DueDate)
		if err != nil {
			return nil, err
		}
		due = d
	}
	if due.Before(issue) {
		return nil, NewValidationError("dueDate must not be before issueDate")
	}

	if len(in.LineItems) == 0 {
		return nil, NewValidationError("at least one line item is required")
	}
	items := make([]models.LineItem, 0, len(in.LineItems))
	for i, li := range in.LineItems {
		desc := strings.TrimSpace(li.Description)
		switch {
		case desc == "":
			return nil, NewValidationError("line item %d: description is required", i+1)
		case li.Quantity.IsNegative():
			return nil, NewValidationError("line item %d: quantity must not be negative", i+1)
		case li.Rate.IsNegative():
			return nil, NewValidationError("line item %d: rate must not be negative", i+1)
		}
		items = append(items, models.LineItem{Description: desc, Quantity: li.Quantity, Rate: li.Rate})
	}

	inv := &models.Invoice{
		Number:    strings.TrimSpace(in.Number),
		ClientID:  in.ClientID,
		Matter:    matter,
		IssueDate: issue,
		DueDate:   due,
		LineItems: items,
		Notes:     strings.TrimSpace(in.Notes),
		Terms:     strings.TrimSpace(in.Terms),
	}
	inv.Recalculate()
	return inv, nil
}

// nextNumber picks an unused INV-XXXXXXXX number. The unique constraint
// still decides races between concurrent creates.
func (s *InvoiceService) nextNumber(ctx context.Context) (string, error) {
	for i := 0; i < numberAttempts; i++ {
		number := fmt.Sprintf("INV-%08d", rand.IntN(100_000_000))
		taken, err := s.invoices.NumberExists(ctx, number)
		if err != nil {
			return "", fromRepo(err, "invoice")
		}
		if !taken {
			return number, nil
		}
	}
	return "", NewConflictError("could not allocate an invoice number")
}
