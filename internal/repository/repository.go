package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docflow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict covers unique violations and lost compare-and-set races.
	ErrConflict = errors.New("record conflict")
	// ErrStatusChanged is the ErrConflict returned when a conditional write
	// finds the record in a different status than the caller read.
	ErrStatusChanged = fmt.Errorf("status changed: %w", ErrConflict)
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can
// run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type DocumentFilter struct {
	Search  string
	Status  models.DocumentStatus
	BatchID *uuid.UUID
	// Limit <= 0 returns every match.
	Limit  int
	Offset int
}

type InvoiceFilter struct {
	Search string
	// Status filters by effective status relative to Today.
	Status models.InvoiceStatus
	Today  time.Time
	Limit  int
	Offset int
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	GetByChecksum(ctx context.Context, checksum string) (*models.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*models.Document, int, error)
	// CompareAndSetStatus applies mutate only when the stored status equals
	// from, otherwise it returns ErrConflict. mutate sets the new status.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from models.DocumentStatus, mutate func(*models.Document)) (*models.Document, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[models.DocumentStatus]int, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	// Update replaces every mutable column and the full line item list while
	// the stored status is still from; otherwise it returns ErrStatusChanged.
	Update(ctx context.Context, inv *models.Invoice, from models.InvoiceStatus) error
	// Delete removes the invoice while its stored status is still from.
	Delete(ctx context.Context, id uuid.UUID, from models.InvoiceStatus) error
	List(ctx context.Context, filter InvoiceFilter) ([]*models.Invoice, int, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
}

// Repositories groups the stores bound to the same connection or transaction.
type Repositories struct {
	Documents DocumentRepository
	Invoices  InvoiceRepository
	Clients   ClientRepository
}

// Transactor runs fn atomically; any error returned by fn rolls back every
// write made through the repositories it was handed.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
