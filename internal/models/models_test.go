package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInvoiceRecalculate(t *testing.T) {
	inv := &Invoice{LineItems: []LineItem{
		{Description: "Research", Quantity: decimal.RequireFromString("2.5"), Rate: decimal.RequireFromString("300")},
		{Description: "Filing", Quantity: decimal.NewFromInt(1), Rate: decimal.RequireFromString("125.40")},
	}}
	inv.Recalculate()

	want := decimal.RequireFromString("875.40")
	if !inv.Total.Equal(want) || !inv.Subtotal.Equal(want) {
		t.Fatalf("Total = %s, Subtotal = %s, want %s", inv.Total, inv.Subtotal, want)
	}

	inv.LineItems = inv.LineItems[:1]
	inv.Recalculate()
	if !inv.Total.Equal(decimal.NewFromInt(750)) {
		t.Errorf("Total after removal = %s, want 750", inv.Total)
	}

	inv.LineItems = nil
	inv.Recalculate()
	if !inv.Total.IsZero() {
		t.Errorf("Total of empty invoice = %s", inv.Total)
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	paid := now.AddDate(0, 0, -1)

	tests := []struct {
		name string
		inv  Invoice
		want InvoiceStatus
	}{
		{"sent past due", Invoice{Status: InvoiceStatusSent, DueDate: now.AddDate(0, 0, -1)}, InvoiceStatusOverdue},
		{"sent due today", Invoice{Status: InvoiceStatusSent, DueDate: StartOfDay(now)}, InvoiceStatusSent},
		{"sent future", Invoice{Status: InvoiceStatusSent, DueDate: now.AddDate(0, 0, 10)}, InvoiceStatusSent},
		{"sent with payment date", Invoice{Status: InvoiceStatusSent, DueDate: now.AddDate(0, 0, -5), PaymentDate: &paid}, InvoiceStatusSent},
		{"draft past due", Invoice{Status: InvoiceStatusDraft, DueDate: now.AddDate(0, 0, -5)}, InvoiceStatusDraft},
		{"paid past due", Invoice{Status: InvoiceStatusPaid, DueDate: now.AddDate(0, 0, -5), PaymentDate: &paid}, InvoiceStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
			if tt.inv.Status == InvoiceStatusOverdue {
				t.Error("stored status must not change")
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]DocumentStatus{
		{DocumentStatusPending, DocumentStatusProcessing},
		{DocumentStatusProcessing, DocumentStatusProcessed},
		{DocumentStatusProcessing, DocumentStatusFailed},
		{DocumentStatusFailed, DocumentStatusPending},
		{DocumentStatusProcessed, DocumentStatusCommitted},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}
	for _, to := range []DocumentStatus{DocumentStatusPending, DocumentStatusProcessing, DocumentStatusProcessed, DocumentStatusFailed} {
		if CanTransition(DocumentStatusCommitted, to) {
			t.Errorf("committed -> %s must be rejected", to)
		}
	}
	if CanTransition(DocumentStatusProcessed, DocumentStatusProcessing) {
		t.Error("processed -> processing must be rejected")
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	d := &Document{ExtractedFields: map[string]string{"invoiceNumber": "INV-1"}}
	c := d.Clone()
	c.ExtractedFields["invoiceNumber"] = "changed"
	if d.ExtractedFields["invoiceNumber"] != "INV-1" {
		t.Error("Clone shares the fields map")
	}
}
