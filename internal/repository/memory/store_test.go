package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
)

func newDoc(name string, created time.Time) *models.Document {
	return &models.Document{
		ID:        uuid.New(),
		BatchID:   uuid.New(),
		FileName:  name,
		Status:    models.DocumentStatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	doc := newDoc("a.pdf", time.Now())
	if err := repos.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		inv := &models.Invoice{ID: uuid.New(), Number: "INV-1", Status: models.InvoiceStatusDraft}
		if err := tx.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		if _, err := tx.Documents.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusPending, func(d *models.Document) {
			d.Status = models.DocumentStatusFailed
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	_, total, _ := repos.Invoices.List(ctx, repository.InvoiceFilter{})
	if total != 0 {
		t.Errorf("invoice count = %d after rollback, want 0", total)
	}
	got, _ := repos.Documents.GetByID(ctx, doc.ID)
	if got.Status != models.DocumentStatusPending {
		t.Errorf("document status = %s after rollback, want pending", got.Status)
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		return tx.Invoices.Create(ctx, &models.Invoice{ID: uuid.New(), Number: "INV-1"})
	})
	if err != nil {
		t.Fatalf("WithinTx() error: %v", err)
	}
	exists, _ := store.Repositories().Invoices.NumberExists(ctx, "INV-1")
	if !exists {
		t.Error("committed invoice not visible")
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	doc := newDoc("a.pdf", time.Now())
	_ = repos.Documents.Create(ctx, doc)

	updated, err := repos.Documents.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusPending, func(d *models.Document) {
		d.Status = models.DocumentStatusProcessing
	})
	if err != nil {
		t.Fatalf("CompareAndSetStatus() error: %v", err)
	}
	if updated.Status != models.DocumentStatusProcessing {
		t.Errorf("status = %s", updated.Status)
	}

	_, err = repos.Documents.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusPending, func(d *models.Document) {
		d.Status = models.DocumentStatusProcessing
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("second CAS error = %v, want ErrConflict", err)
	}

	_, err = repos.Documents.CompareAndSetStatus(ctx, uuid.New(), models.DocumentStatusPending, func(*models.Document) {})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestDocumentListOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_ = repos.Documents.Create(ctx, newDoc("doc.pdf", base.Add(time.Duration(i)*time.Hour)))
	}
	// Two documents sharing a timestamp must order by id.
	tieA := newDoc("tie.pdf", base.Add(10*time.Hour))
	tieB := newDoc("tie.pdf", base.Add(10*time.Hour))
	_ = repos.Documents.Create(ctx, tieA)
	_ = repos.Documents.Create(ctx, tieB)

	all, total, err := repos.Documents.List(ctx, repository.DocumentFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 7 || len(all) != 7 {
		t.Fatalf("total = %d, len = %d, want 7", total, len(all))
	}
	first, second := tieA, tieB
	if tieB.ID.String() < tieA.ID.String() {
		first, second = tieB, tieA
	}
	if all[0].ID != first.ID || all[1].ID != second.ID {
		t.Error("ties not broken by ascending id")
	}
	for i := 2; i < len(all)-1; i++ {
		if all[i].CreatedAt.Before(all[i+1].CreatedAt) {
			t.Fatal("documents not ordered by created_at desc")
		}
	}

	var paged []*models.Document
	for offset := 0; offset < total; offset += 3 {
		page, pageTotal, _ := repos.Documents.List(ctx, repository.DocumentFilter{Limit: 3, Offset: offset})
		if pageTotal != total {
			t.Errorf("page total = %d, want %d", pageTotal, total)
		}
		paged = append(paged, page...)
	}
	for i := range all {
		if paged[i].ID != all[i].ID {
			t.Fatalf("page walk diverges at %d", i)
		}
	}

	tie, tieTotal, _ := repos.Documents.List(ctx, repository.DocumentFilter{Search: "TIE"})
	if tieTotal != 2 || len(tie) != 2 {
		t.Errorf("search total = %d", tieTotal)
	}
}

func TestInvoiceNumberUnique(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	if err := repos.Invoices.Create(ctx, &models.Invoice{ID: uuid.New(), Number: "INV-1"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	err := repos.Invoices.Create(ctx, &models.Invoice{ID: uuid.New(), Number: "INV-1"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("duplicate number error = %v, want ErrConflict", err)
	}
}

func TestInvoiceReadsResolveClientName(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	client := &models.Client{ID: uuid.New(), Name: "Johnson & Partners LLP", Email: "billing@johnson.example"}
	_ = repos.Clients.Create(ctx, client)

	inv := &models.Invoice{ID: uuid.New(), Number: "INV-1", ClientID: &client.ID}
	_ = repos.Invoices.Create(ctx, inv)

	got, err := repos.Invoices.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ClientName != client.Name {
		t.Errorf("ClientName = %q", got.ClientName)
	}
}

func TestInvoiceWritesRequireExpectedStatus(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	inv := &models.Invoice{ID: uuid.New(), Number: "INV-1", Status: models.InvoiceStatusDraft}
	if err := repos.Invoices.Create(ctx, inv); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	sent := inv.Clone()
	sent.Status = models.InvoiceStatusSent
	if err := repos.Invoices.Update(ctx, sent, models.InvoiceStatusDraft); err != nil {
		t.Fatalf("Update(draft->sent) error: %v", err)
	}

	stale := inv.Clone()
	stale.Matter = "edited from a stale read"
	if err := repos.Invoices.Update(ctx, stale, models.InvoiceStatusDraft); !errors.Is(err, repository.ErrStatusChanged) {
		t.Errorf("stale Update() error = %v, want ErrStatusChanged", err)
	}
	if err := repos.Invoices.Delete(ctx, inv.ID, models.InvoiceStatusDraft); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("stale Delete() error = %v, want ErrConflict", err)
	}
	if err := repos.Invoices.Update(ctx, stale, ""); err == nil {
		t.Error("Update() with empty expected status succeeded")
	}

	got, err := repos.Invoices.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.Status != models.InvoiceStatusSent || got.Matter != "" {
		t.Errorf("stored = %s/%q, want sent with the original matter", got.Status, got.Matter)
	}
	if err := repos.Invoices.Delete(ctx, uuid.New(), models.InvoiceStatusDraft); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Delete(unknown) error = %v, want ErrNotFound", err)
	}
}
