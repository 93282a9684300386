package repository

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"docflow/internal/models"
	"docflow/pkg/config"
	"docflow/pkg/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupTestDB starts PostgreSQL in a container and applies the migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("docflow_test"),
		tcpostgres.WithUsername("docflow"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "docflow",
		Password: "test-password",
		DBName:   "docflow_test",
		SSLMode:  "disable",
		MaxConns: 5,
	}
	logger := zap.NewNop()
	if err := postgres.Migrate(cfg, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newDocument(name string) *models.Document {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Document{
		ID:         uuid.New(),
		BatchID:    uuid.New(),
		FileName:   name,
		Extension:  "pdf",
		MimeType:   "application/pdf",
		Size:       42,
		Checksum:   uuid.NewString(),
		StorageKey: "documents/" + name,
		Status:     models.DocumentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestDocumentRepository(t *testing.T) {
	pool := setupTestDB(t)
	store := NewStore(pool, zap.NewNop())
	repo := store.Repositories().Documents
	ctx := context.Background()

	doc := newDocument("johnson.pdf")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := repo.Create(ctx, doc); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Create() error = %v, want ErrConflict", err)
	}

	byChecksum, err := repo.GetByChecksum(ctx, doc.Checksum)
	if err != nil || byChecksum.ID != doc.ID {
		t.Fatalf("GetByChecksum() = %v, %v", byChecksum, err)
	}

	updated, err := repo.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusPending, func(d *models.Document) {
		d.Status = models.DocumentStatusProcessing
		d.Progress = 10
	})
	if err != nil {
		t.Fatalf("CompareAndSetStatus() error: %v", err)
	}
	if updated.Status != models.DocumentStatusProcessing || updated.Progress != 10 {
		t.Errorf("updated = %s/%d", updated.Status, updated.Progress)
	}
	if _, err := repo.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusPending, func(d *models.Document) {
		d.Status = models.DocumentStatusFailed
	}); !errors.Is(err, ErrConflict) {
		t.Errorf("stale CompareAndSetStatus() error = %v, want ErrConflict", err)
	}

	if _, err := repo.CompareAndSetStatus(ctx, doc.ID, models.DocumentStatusProcessing, func(d *models.Document) {
		now := time.Now().UTC()
		d.Status = models.DocumentStatusProcessed
		d.ExtractedFields = map[string]string{"invoiceNumber": "INV-1"}
		d.ProcessedAt = &now
	}); err != nil {
		t.Fatalf("CompareAndSetStatus() to processed error: %v", err)
	}
	got, err := repo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ExtractedFields["invoiceNumber"] != "INV-1" || got.ProcessedAt == nil {
		t.Errorf("stored = %v processedAt %v", got.ExtractedFields, got.ProcessedAt)
	}

	other := newDocument("smith.pdf")
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	items, total, err := repo.List(ctx, DocumentFilter{Search: "JOHN", Limit: 10})
	if err != nil || total != 1 || items[0].ID != doc.ID {
		t.Errorf("List(search) = %d items, total %d, err %v", len(items), total, err)
	}
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() error: %v", err)
	}
	if counts[models.DocumentStatusProcessed] != 1 || counts[models.DocumentStatusPending] != 1 {
		t.Errorf("counts = %v", counts)
	}

	if err := repo.Delete(ctx, other.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.GetByID(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestInvoiceRepositoryAndTransactions(t *testing.T) {
	pool := setupTestDB(t)
	store := NewStore(pool, zap.NewNop())
	repos := store.Repositories()
	ctx := context.Background()

	client := &models.Client{ID: uuid.New(), Name: "Johnson & Partners LLP", Email: "billing@johnsonpartners.com", CreatedAt: time.Now().UTC()}
	if err := repos.Clients.Create(ctx, client); err != nil {
		t.Fatalf("Create() client error: %v", err)
	}
	dupe := *client
	dupe.ID = uuid.New()
	if err := repos.Clients.Create(ctx, &dupe); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}

	today := models.StartOfDay(time.Now())
	newInvoice := func(n int) *models.Invoice {
		inv := &models.Invoice{
			ID:        uuid.New(),
			Number:    "INV-" + strconv.Itoa(n),
			ClientID:  &client.ID,
			Matter:    "Estate of Smith",
			IssueDate: today.AddDate(0, -2, 0),
			DueDate:   today.AddDate(0, -1, 0),
			Status:    models.InvoiceStatusSent,
			LineItems: []models.LineItem{
				{Description: "Drafting", Quantity: decimal.NewFromInt(2), Rate: decimal.NewFromInt(200)},
				{Description: "Filing", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(200)},
			},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		inv.Recalculate()
		return inv
	}

	inv := newInvoice(1)
	if err := repos.Invoices.Create(ctx, inv); err != nil {
		t.Fatalf("Create() invoice error: %v", err)
	}
	got, err := repos.Invoices.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ClientName != client.Name || len(got.LineItems) != 2 || !got.Total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("invoice = client %q, %d items, total %s", got.ClientName, len(got.LineItems), got.Total)
	}

	if err := repos.Invoices.Create(ctx, newInvoiceWithNumber(newInvoice(2), inv.Number)); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate number error = %v, want ErrConflict", err)
	}

	overdue, total, err := repos.Invoices.List(ctx, InvoiceFilter{Status: models.InvoiceStatusOverdue, Today: today, Search: "johnson"})
	if err != nil || total != 1 || overdue[0].ID != inv.ID {
		t.Errorf("List(overdue) = %d, err %v", total, err)
	}

	// A failing transaction leaves nothing behind.
	rolledBack := newInvoice(3)
	err = store.WithinTx(ctx, func(ctx context.Context, tx Repositories) error {
		if err := tx.Invoices.Create(ctx, rolledBack); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("WithinTx() error = %v, want abort", err)
	}
	if _, err := repos.Invoices.GetByID(ctx, rolledBack.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled back invoice lookup error = %v, want ErrNotFound", err)
	}

	stale := got.Clone()
	stale.Status = models.InvoiceStatusDraft
	if err := repos.Invoices.Update(ctx, stale, models.InvoiceStatusDraft); !errors.Is(err, ErrStatusChanged) {
		t.Errorf("Update() from a stale status error = %v, want ErrStatusChanged", err)
	}
	if err := repos.Invoices.Delete(ctx, inv.ID, models.InvoiceStatusDraft); !errors.Is(err, ErrStatusChanged) {
		t.Errorf("Delete() from a stale status error = %v, want ErrStatusChanged", err)
	}
	paid := got.Clone()
	paidOn := today
	paid.Status = models.InvoiceStatusPaid
	paid.PaymentDate = &paidOn
	if err := repos.Invoices.Update(ctx, paid, models.InvoiceStatusSent); err != nil {
		t.Fatalf("Update(sent->paid) error: %v", err)
	}

	exists, err := repos.Invoices.NumberExists(ctx, inv.Number)
	if err != nil || !exists {
		t.Errorf("NumberExists() = %v, %v", exists, err)
	}
}

func newInvoiceWithNumber(inv *models.Invoice, number string) *models.Invoice {
	inv.Number = number
	return inv
}
