package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestSummaryGroupsByEffectiveStatus(t *testing.T) {
	f := newFixture(t)
	client := f.seedClient(t, "Johnson & Partners LLP")
	invoices := f.invoiceService()
	ctx := context.Background()

	// One draft, one overdue and one paid invoice of 600 each.
	if _, err := invoices.Create(ctx, invoiceInput(client)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	late, err := invoices.Create(ctx, invoiceInput(client))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := invoices.Send(ctx, late.ID); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	paid, err := invoices.Create(ctx, invoiceInput(client))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := invoices.Send(ctx, paid.ID); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if _, err := invoices.RecordPayment(ctx, paid.ID, "2024-02-01"); err != nil {
		t.Fatalf("RecordPayment() error: %v", err)
	}

	f.seedDocument(t, models.DocumentStatusProcessed, nil)
	f.upload(t, "a.pdf")

	q := NewQueryService(f.repos.Documents, f.repos.Invoices, zap.NewNop())
	q.now = func() time.Time { return today }
	summary, err := q.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}

	six := decimal.NewFromInt(600)
	for st, want := range map[models.InvoiceStatus]int{
		models.InvoiceStatusDraft:   1,
		models.InvoiceStatusSent:    0,
		models.InvoiceStatusOverdue: 1,
		models.InvoiceStatusPaid:    1,
	} {
		if got := summary.Invoices[st].Count; got != want {
			t.Errorf("%s count = %d, want %d", st, got, want)
		}
	}
	if !summary.Invoices[models.InvoiceStatusOverdue].Amount.Equal(six) {
		t.Errorf("overdue amount = %s, want 600", summary.Invoices[models.InvoiceStatusOverdue].Amount)
	}
	if !summary.Outstanding.Equal(six) {
		t.Errorf("outstanding = %s, want 600", summary.Outstanding)
	}
	if summary.Documents[models.DocumentStatusPending] != 1 || summary.Documents[models.DocumentStatusProcessed] != 1 {
		t.Errorf("document counts = %v", summary.Documents)
	}
}

func TestListDocumentsFilters(t *testing.T) {
	f := newFixture(t)
	q := NewQueryService(f.repos.Documents, f.repos.Invoices, zap.NewNop())
	ctx := context.Background()

	res, err := f.intake.Upload(ctx, []UploadFile{
		fileOf("johnson-invoice.pdf", []byte("%PDF one")),
		fileOf("smith-receipt.png", []byte("png two")),
	})
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	f.seedDocument(t, models.DocumentStatusFailed, nil)

	byName, err := q.ListDocuments(ctx, DocumentQuery{Search: "johnson"})
	if err != nil {
		t.Fatalf("ListDocuments() error: %v", err)
	}
	if byName.Total != 1 || byName.Items[0].FileName != "johnson-invoice.pdf" {
		t.Errorf("search result = %d items", byName.Total)
	}

	failed, err := q.ListDocuments(ctx, DocumentQuery{Status: "failed"})
	if err != nil {
		t.Fatalf("ListDocuments(failed) error: %v", err)
	}
	if failed.Total != 1 {
		t.Errorf("failed total = %d, want 1", failed.Total)
	}

	batch, err := q.ListDocuments(ctx, DocumentQuery{BatchID: &res.BatchID, PageSize: 500})
	if err != nil {
		t.Fatalf("ListDocuments(batch) error: %v", err)
	}
	if batch.Total != 2 || batch.PageSize != MaxPageSize {
		t.Errorf("batch total/pageSize = %d/%d, want 2/%d", batch.Total, batch.PageSize, MaxPageSize)
	}

	if _, err := q.ListDocuments(ctx, DocumentQuery{Status: "archived"}); KindOf(err) != KindValidation {
		t.Errorf("ListDocuments(archived) kind = %s, want validation", KindOf(err))
	}

	docs, err := q.BatchDocuments(ctx, res.BatchID)
	if err != nil || len(docs) != 2 {
		t.Errorf("BatchDocuments() = %d docs, %v", len(docs), err)
	}
	if _, err := q.BatchDocuments(ctx, uuid.New()); KindOf(err) != KindNotFound {
		t.Errorf("BatchDocuments(unknown) kind = %s, want not_found", KindOf(err))
	}
}

type countingClients struct {
	repository.ClientRepository
	gets atomic.Int32
}

func (c *countingClients) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c.gets.Add(1)
	return c.ClientRepository.GetByID(ctx, id)
}

func TestClientDirectoryCachesLookups(t *testing.T) {
	f := newFixture(t)
	client := f.seedClient(t, "Johnson & Partners LLP")
	other := f.seedClient(t, "Smith Collections Agency")
	repo := &countingClients{ClientRepository: f.repos.Clients}
	dir := NewClientDirectory(repo, 16, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := dir.Get(ctx, client.ID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.Name != client.Name {
			t.Errorf("name = %q, want %q", got.Name, client.Name)
		}
	}
	if n := repo.gets.Load(); n != 1 {
		t.Errorf("repository lookups = %d, want 1", n)
	}

	all, err := dir.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("List() = %d clients, %v", len(all), err)
	}
	if _, err := dir.Get(ctx, other.ID); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if n := repo.gets.Load(); n != 1 {
		t.Errorf("lookups after List warmed the cache = %d, want 1", n)
	}

	if _, err := dir.Get(ctx, uuid.New()); KindOf(err) != KindNotFound {
		t.Errorf("Get(unknown) kind = %s, want not_found", KindOf(err))
	}
}
