package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	// InvoiceStatusOverdue is never stored; see EffectiveStatus.
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	switch st := InvoiceStatus(s); st {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue, InvoiceStatusPaid:
		return st, true
	}
	return "", false
}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// DefaultPaymentTerm is added to the issue date when no due date is given.
const DefaultPaymentTerm = 30 * 24 * time.Hour

type LineItem struct {
	Description string          `db:"description"`
	Quantity    decimal.Decimal `db:"quantity"`
	Rate        decimal.Decimal `db:"rate"`
}

// Amount is always derived, never stored independently.
func (li LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.Rate)
}

type Invoice struct {
	ID               uuid.UUID       `db:"id"`
	Number           string          `db:"number"`
	ClientID         *uuid.UUID      `db:"client_id"`
	ClientName       string          `db:"-"`
	Matter           string          `db:"matter"`
	IssueDate        time.Time       `db:"issue_date"`
	DueDate          time.Time       `db:"due_date"`
	LineItems        []LineItem      `db:"-"`
	Subtotal         decimal.Decimal `db:"subtotal"`
	Total            decimal.Decimal `db:"total"`
	Status           InvoiceStatus   `db:"status"`
	PaymentDate      *time.Time      `db:"payment_date"`
	SentAt           *time.Time      `db:"sent_at"`
	Notes            string          `db:"notes"`
	Terms            string          `db:"terms"`
	SourceDocumentID *uuid.UUID      `db:"source_document_id"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// Recalculate must run after every line item mutation.
func (inv *Invoice) Recalculate() {
	sum := decimal.Zero
	for _, item := range inv.LineItems {
		sum = sum.Add(item.Amount())
	}
	inv.Subtotal = sum
	inv.Total = sum
}

// EffectiveStatus derives the status reported to readers. A sent invoice
// without a payment date whose due date is before today is overdue.
func (inv *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.Status == InvoiceStatusSent && inv.PaymentDate == nil && inv.DueDate.Before(StartOfDay(now)) {
		return InvoiceStatusOverdue
	}
	return inv.Status
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.LineItems = append([]LineItem(nil), inv.LineItems...)
	if inv.ClientID != nil {
		id := *inv.ClientID
		c.ClientID = &id
	}
	if inv.SourceDocumentID != nil {
		id := *inv.SourceDocumentID
		c.SourceDocumentID = &id
	}
	if inv.PaymentDate != nil {
		t := *inv.PaymentDate
		c.PaymentDate = &t
	}
	if inv.SentAt != nil {
		t := *inv.SentAt
		c.SentAt = &t
	}
	return &c
}
