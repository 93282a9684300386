package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func reviewFields() map[string]string {
	return map[string]string{
		FieldInvoiceNumber: "INV-20240117",
		FieldIssueDate:     "2024-01-17",
		FieldDueDate:       "2024-02-16",
		FieldTotal:         "1200.50",
		FieldMatter:        "Estate of Smith",
	}
}

func (f *fixture) review() *ReviewService {
	return NewReviewService(f.store, f.repos, zap.NewNop())
}

func (f *fixture) invoiceCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.repos.Invoices.List(context.Background(), repository.InvoiceFilter{})
	if err != nil {
		t.Fatalf("List() invoices error: %v", err)
	}
	return total
}

func TestCommitCreatesInvoice(t *testing.T) {
	f := newFixture(t)
	client := f.seedClient(t, "Johnson & Partners LLP")
	doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())

	res, err := f.review().Commit(context.Background(), doc.ID, CommitRequest{
		Fields: map[string]string{FieldClientID: client.ID.String(), FieldDescription: "Probate filing"},
	})
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if !res.Created {
		t.Error("Created = false, want true")
	}

	inv := res.Invoice
	if inv.Number != "INV-20240117" || inv.Status != models.InvoiceStatusDraft {
		t.Errorf("invoice = %s/%s, want INV-20240117/draft", inv.Number, inv.Status)
	}
	if !inv.Total.Equal(decimal.RequireFromString("1200.50")) {
		t.Errorf("total = %s, want 1200.50", inv.Total)
	}
	if len(inv.LineItems) != 1 || inv.LineItems[0].Description != "Probate filing" {
		t.Errorf("line items = %+v, want one probate item", inv.LineItems)
	}
	if inv.ClientID == nil || *inv.ClientID != client.ID {
		t.Errorf("client = %v, want %s", inv.ClientID, client.ID)
	}
	if inv.SourceDocumentID == nil || *inv.SourceDocumentID != doc.ID {
		t.Errorf("source document = %v, want %s", inv.SourceDocumentID, doc.ID)
	}

	stored := f.status(t, doc.ID)
	if stored.Status != models.DocumentStatusCommitted || stored.CommittedAt == nil {
		t.Errorf("document = %s committedAt %v, want committed", stored.Status, stored.CommittedAt)
	}
	if stored.InvoiceID == nil || *stored.InvoiceID != inv.ID {
		t.Errorf("document invoice = %v, want %s", stored.InvoiceID, inv.ID)
	}
	if stored.ExtractedFields[FieldClientID] != client.ID.String() {
		t.Error("reviewed fields were not stored on the document")
	}
}

func TestCommitDefaultsDatesAndDescription(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, models.DocumentStatusProcessed, map[string]string{
		FieldInvoiceNumber: "A-1",
		FieldAmount:        "$1,000",
	})

	res, err := f.review().Commit(context.Background(), doc.ID, CommitRequest{})
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	inv := res.Invoice
	wantIssue := models.StartOfDay(*doc.ProcessedAt)
	if !inv.IssueDate.Equal(wantIssue) {
		t.Errorf("issue date = %v, want %v", inv.IssueDate, wantIssue)
	}
	if !inv.DueDate.Equal(wantIssue.Add(models.DefaultPaymentTerm)) {
		t.Errorf("due date = %v, want issue + 30 days", inv.DueDate)
	}
	if got := inv.LineItems[0].Description; got != "Services per scan.pdf" {
		t.Errorf("description = %q", got)
	}
	if !inv.Total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total = %s, want 1000", inv.Total)
	}
}

func TestCommitTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())
	svc := f.review()
	ctx := context.Background()

	if _, err := svc.Commit(ctx, doc.ID, CommitRequest{}); err != nil {
		t.Fatalf("first Commit() error: %v", err)
	}
	if _, err := svc.Commit(ctx, doc.ID, CommitRequest{}); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("second Commit() error = %v, want ErrAlreadyCommitted", err)
	}
	if n := f.invoiceCount(t); n != 1 {
		t.Errorf("invoice count = %d, want 1", n)
	}
}

func TestCommitConcurrentCallsCommitOnce(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())
	svc := f.review()

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		duplicate int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Commit(context.Background(), doc.ID, CommitRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyCommitted):
				duplicate++
			default:
				t.Errorf("Commit() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || duplicate != callers-1 {
		t.Errorf("succeeded/duplicate = %d/%d, want 1/%d", succeeded, duplicate, callers-1)
	}
	if n := f.invoiceCount(t); n != 1 {
		t.Errorf("invoice count = %d, want 1", n)
	}
}

func TestCommitValidation(t *testing.T) {
	tests := []struct {
		name  string
		edits map[string]string
	}{
		{"missing number", map[string]string{FieldInvoiceNumber: ""}},
		{"bad issue date", map[string]string{FieldIssueDate: "17/01/2024"}},
		{"due before issue", map[string]string{FieldDueDate: "2024-01-01"}},
		{"bad total", map[string]string{FieldTotal: "lots"}},
		{"negative total", map[string]string{FieldTotal: "-5"}},
		{"bad client id", map[string]string{FieldClientID: "johnson"}},
		{"unknown client", map[string]string{FieldClientID: uuid.NewString()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())

			_, err := f.review().Commit(context.Background(), doc.ID, CommitRequest{Fields: tt.edits})
			if KindOf(err) != KindValidation {
				t.Fatalf("Commit() kind = %s (%v), want validation", KindOf(err), err)
			}
			if st := f.status(t, doc.ID).Status; st != models.DocumentStatusProcessed {
				t.Errorf("document status = %s, want processed", st)
			}
			if n := f.invoiceCount(t); n != 0 {
				t.Errorf("invoice count = %d, want 0", n)
			}
		})
	}
}

func TestCommitDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	svc := f.review()
	ctx := context.Background()
	first := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())
	second := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())

	if _, err := svc.Commit(ctx, first.ID, CommitRequest{}); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	_, err := svc.Commit(ctx, second.ID, CommitRequest{})
	if KindOf(err) != KindConflict || errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("Commit() error = %v, want number conflict", err)
	}
	if st := f.status(t, second.ID).Status; st != models.DocumentStatusProcessed {
		t.Errorf("second document = %s, want processed", st)
	}
}

func TestCommitRejectsUnprocessedDocuments(t *testing.T) {
	f := newFixture(t)
	svc := f.review()
	for _, st := range []models.DocumentStatus{
		models.DocumentStatusPending,
		models.DocumentStatusProcessing,
		models.DocumentStatusFailed,
	} {
		doc := f.seedDocument(t, st, reviewFields())
		if _, err := svc.Commit(context.Background(), doc.ID, CommitRequest{}); KindOf(err) != KindConflict {
			t.Errorf("Commit(%s) kind = %s, want conflict", st, KindOf(err))
		}
	}
	if _, err := svc.Commit(context.Background(), uuid.New(), CommitRequest{}); KindOf(err) != KindNotFound {
		t.Errorf("Commit(unknown) kind = %s, want not_found", KindOf(err))
	}
}

// brokenCASTransactor runs the real transaction but fails the document
// transition, after the invoice was written.
type brokenCASTransactor struct {
	inner repository.Transactor
}

type brokenCASDocs struct {
	repository.DocumentRepository
}

func (brokenCASDocs) CompareAndSetStatus(context.Context, uuid.UUID, models.DocumentStatus, func(*models.Document)) (*models.Document, error) {
	return nil, errors.New("lost connection")
}

func (b brokenCASTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return b.inner.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Documents = brokenCASDocs{repos.Documents}
		return fn(ctx, repos)
	})
}

func TestCommitRollsBackInvoiceOnFailure(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())
	svc := NewReviewService(brokenCASTransactor{f.store}, f.repos, zap.NewNop())

	_, err := svc.Commit(context.Background(), doc.ID, CommitRequest{})
	if KindOf(err) != KindCommit {
		t.Fatalf("Commit() kind = %s, want commit", KindOf(err))
	}
	if n := f.invoiceCount(t); n != 0 {
		t.Errorf("invoice count = %d after rollback, want 0", n)
	}
	if st := f.status(t, doc.ID).Status; st != models.DocumentStatusProcessed {
		t.Errorf("document = %s, want processed", st)
	}
}

func TestCommitUpdatesExistingDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	draft := &models.Invoice{
		ID:        uuid.New(),
		Number:    "DRAFT-1",
		Matter:    "Original matter",
		IssueDate: models.StartOfDay(now),
		DueDate:   models.StartOfDay(now).Add(models.DefaultPaymentTerm),
		Status:    models.InvoiceStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.repos.Invoices.Create(ctx, draft); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())

	res, err := f.review().Commit(ctx, doc.ID, CommitRequest{InvoiceID: &draft.ID})
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if res.Created {
		t.Error("Created = true, want update")
	}
	if res.Invoice.ID != draft.ID || res.Invoice.Number != "INV-20240117" {
		t.Errorf("invoice = %s/%s, want %s/INV-20240117", res.Invoice.ID, res.Invoice.Number, draft.ID)
	}
	if res.Invoice.Matter != "Estate of Smith" {
		t.Errorf("matter = %q, want the reviewed matter", res.Invoice.Matter)
	}
	if n := f.invoiceCount(t); n != 1 {
		t.Errorf("invoice count = %d, want 1", n)
	}

	missing := uuid.New()
	other := f.seedDocument(t, models.DocumentStatusProcessed, map[string]string{FieldInvoiceNumber: "X-2"})
	if _, err := f.review().Commit(ctx, other.ID, CommitRequest{InvoiceID: &missing}); KindOf(err) != KindNotFound {
		t.Errorf("Commit(missing draft) kind = %s, want not_found", KindOf(err))
	}
}

func TestCommitRefusesToUpdateSentInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	sent := &models.Invoice{
		ID:        uuid.New(),
		Number:    "SENT-1",
		IssueDate: models.StartOfDay(now),
		DueDate:   models.StartOfDay(now),
		Status:    models.InvoiceStatusSent,
		SentAt:    &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.repos.Invoices.Create(ctx, sent); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	doc := f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())

	if _, err := f.review().Commit(ctx, doc.ID, CommitRequest{InvoiceID: &sent.ID}); KindOf(err) != KindConflict {
		t.Errorf("Commit() kind = %s, want conflict", KindOf(err))
	}
}

func TestListPendingReview(t *testing.T) {
	f := newFixture(t)
	f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())
	f.seedDocument(t, models.DocumentStatusProcessed, reviewFields())
	f.seedDocument(t, models.DocumentStatusPending, nil)

	page, err := f.review().ListPendingReview(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("ListPendingReview() error: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 {
		t.Errorf("total/items = %d/%d, want 2/1", page.Total, len(page.Items))
	}
	for _, d := range page.Items {
		if d.Status != models.DocumentStatusProcessed {
			t.Errorf("listed %s document", d.Status)
		}
	}
}
