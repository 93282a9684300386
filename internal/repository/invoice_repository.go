package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docflow/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var invoiceColumns = []string{
	"i.id", "i.number", "i.client_id", "COALESCE(c.name, '')", "i.matter", "i.issue_date", "i.due_date",
	"i.subtotal", "i.total", "i.status", "i.payment_date", "i.sent_at", "i.notes", "i.terms",
	"i.source_document_id", "i.created_at", "i.updated_at",
}

type PgInvoiceRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewInvoiceRepository(db DBTX, logger *zap.Logger) *PgInvoiceRepository {
	return &PgInvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the invoice row and its line items in one transaction.
func (r *PgInvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := squirrel.Insert("invoices").
		Columns("id", "number", "client_id", "matter", "issue_date", "due_date", "subtotal", "total", "status",
			"payment_date", "sent_at", "notes", "terms", "source_document_id", "created_at", "updated_at").
		Values(inv.ID, inv.Number, inv.ClientID, inv.Matter, inv.IssueDate, inv.DueDate, inv.Subtotal, inv.Total, inv.Status,
			inv.PaymentDate, inv.SentAt, inv.Notes, inv.Terms, inv.SourceDocumentID, inv.CreatedAt, inv.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice number %q: %w", inv.Number, ErrConflict)
		}
		return err
	}

	if err := insertLineItems(ctx, tx, inv.ID, inv.LineItems); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	sql, args, err := selectInvoices().
		Where(squirrel.Eq{"i.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	inv, err := scanInvoice(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadLineItems(ctx, []*models.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *PgInvoiceRepository) Update(ctx context.Context, inv *models.Invoice, from models.InvoiceStatus) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockInvoiceStatus(ctx, tx, inv.ID, from); err != nil {
		return err
	}

	query := squirrel.Update("invoices").
		Set("number", inv.Number).
		Set("client_id", inv.ClientID).
		Set("matter", inv.Matter).
		Set("issue_date", inv.IssueDate).
		Set("due_date", inv.DueDate).
		Set("subtotal", inv.Subtotal).
		Set("total", inv.Total).
		Set("status", inv.Status).
		Set("payment_date", inv.PaymentDate).
		Set("sent_at", inv.SentAt).
		Set("notes", inv.Notes).
		Set("terms", inv.Terms).
		Set("source_document_id", inv.SourceDocumentID).
		Set("updated_at", inv.UpdatedAt).
		Where(squirrel.Eq{"id": inv.ID, "status": from}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice number %q: %w", inv.Number, ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}

	delSQL, delArgs, err := squirrel.Delete("invoice_line_items").
		Where(squirrel.Eq{"invoice_id": inv.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, delSQL, delArgs...); err != nil {
		return err
	}
	if err := insertLineItems(ctx, tx, inv.ID, inv.LineItems); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete relies on ON DELETE CASCADE for line items.
func (r *PgInvoiceRepository) Delete(ctx context.Context, id uuid.UUID, from models.InvoiceStatus) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockInvoiceStatus(ctx, tx, id, from); err != nil {
		return err
	}

	sql, args, err := squirrel.Delete("invoices").
		Where(squirrel.Eq{"id": id, "status": from}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return tx.Commit(ctx)
}

// lockInvoiceStatus row-locks the invoice for the rest of tx and checks
// that its stored status is still from.
func lockInvoiceStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from models.InvoiceStatus) error {
	sql, args, err := squirrel.Select("status").
		From("invoices").
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	var status models.InvoiceStatus
	if err := tx.QueryRow(ctx, sql, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if status != from {
		return fmt.Errorf("invoice %s is %s, expected %s: %w", id, status, from, ErrStatusChanged)
	}
	return nil
}

func (r *PgInvoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]*models.Invoice, int, error) {
	where := squirrel.And{}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where = append(where, squirrel.Or{
			squirrel.Expr("i.id::text ILIKE ?", pattern),
			squirrel.ILike{"i.number": pattern},
			squirrel.ILike{"c.name": pattern},
			squirrel.ILike{"i.matter": pattern},
		})
	}
	if filter.Status != "" {
		where = append(where, statusCondition(filter.Status, models.StartOfDay(filter.Today)))
	}

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").
		From("invoices i").
		LeftJoin("clients c ON c.id = i.client_id").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectInvoices().
		Where(where).
		OrderBy("i.created_at DESC", "i.id ASC")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadLineItems(ctx, invoices); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *PgInvoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	sql, args, err := squirrel.Select("1").
		Prefix("SELECT EXISTS (").
		From("invoices").
		Where(squirrel.Eq{"number": number}).
		Suffix(")").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgInvoiceRepository) loadLineItems(ctx context.Context, invoices []*models.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Invoice, len(invoices))
	ids := make([]uuid.UUID, 0, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
		ids = append(ids, inv.ID)
	}

	sql, args, err := squirrel.Select("invoice_id", "description", "quantity", "rate").
		From("invoice_line_items").
		Where(squirrel.Eq{"invoice_id": ids}).
		OrderBy("invoice_id", "position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID uuid.UUID
		var item models.LineItem
		if err := rows.Scan(&invoiceID, &item.Description, &item.Quantity, &item.Rate); err != nil {
			return err
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.LineItems = append(inv.LineItems, item)
		}
	}
	return rows.Err()
}

func insertLineItems(ctx context.Context, db DBTX, invoiceID uuid.UUID, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	builder := squirrel.Insert("invoice_line_items").
		Columns("invoice_id", "position", "description", "quantity", "rate").
		PlaceholderFormat(squirrel.Dollar)

	for i, item := range items {
		builder = builder.Values(invoiceID, i, item.Description, item.Quantity, item.Rate)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, sql, args...)
	return err
}

func selectInvoices() squirrel.SelectBuilder {
	return squirrel.Select(invoiceColumns...).
		From("invoices i").
		LeftJoin("clients c ON c.id = i.client_id").
		PlaceholderFormat(squirrel.Dollar)
}

// statusCondition mirrors models.Invoice.EffectiveStatus in SQL.
func statusCondition(status models.InvoiceStatus, today time.Time) squirrel.Sqlizer {
	overdue := squirrel.And{
		squirrel.Eq{"i.status": models.InvoiceStatusSent},
		squirrel.Eq{"i.payment_date": nil},
		squirrel.Lt{"i.due_date": today},
	}
	switch status {
	case models.InvoiceStatusOverdue:
		return overdue
	case models.InvoiceStatusSent:
		return squirrel.And{
			squirrel.Eq{"i.status": models.InvoiceStatusSent},
			squirrel.Expr("NOT (i.payment_date IS NULL AND i.due_date < ?)", today),
		}
	default:
		return squirrel.Eq{"i.status": status}
	}
}

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &inv.ClientName, &inv.Matter, &inv.IssueDate, &inv.DueDate,
		&inv.Subtotal, &inv.Total, &inv.Status, &inv.PaymentDate, &inv.SentAt, &inv.Notes, &inv.Terms,
		&inv.SourceDocumentID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
