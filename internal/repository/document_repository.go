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

var documentColumns = []string{
	"id", "batch_id", "file_name", "extension", "mime_type", "size", "checksum", "storage_key", "pages",
	"status", "extracted_fields", "error_reason", "progress", "invoice_id",
	"created_at", "updated_at", "processed_at", "committed_at",
}

type PgDocumentRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewDocumentRepository(db DBTX, logger *zap.Logger) *PgDocumentRepository {
	return &PgDocumentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PgDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := squirrel.Insert("documents").
		Columns(documentColumns...).
		Values(
			doc.ID, doc.BatchID, doc.FileName, doc.Extension, doc.MimeType, doc.Size, doc.Checksum, doc.StorageKey, doc.Pages,
			doc.Status, doc.ExtractedFields, doc.ErrorReason, doc.Progress, doc.InvoiceID,
			doc.CreatedAt, doc.UpdatedAt, doc.ProcessedAt, doc.CommittedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document %s: %w", doc.ID, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *PgDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return r.getOne(ctx, r.db, squirrel.Eq{"id": id}, false)
}

func (r *PgDocumentRepository) GetByChecksum(ctx context.Context, checksum string) (*models.Document, error) {
	return r.getOne(ctx, r.db, squirrel.Eq{"checksum": checksum}, false)
}

func (r *PgDocumentRepository) getOne(ctx context.Context, db DBTX, where squirrel.Sqlizer, forUpdate bool) (*models.Document, error) {
	query := squirrel.Select(documentColumns...).
		From("documents").
		Where(where).
		OrderBy("created_at ASC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	doc, err := scanDocument(db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PgDocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]*models.Document, int, error) {
	where := squirrel.And{}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where = append(where, squirrel.Or{
			squirrel.Expr("id::text ILIKE ?", pattern),
			squirrel.ILike{"file_name": pattern},
		})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}
	if filter.BatchID != nil {
		where = append(where, squirrel.Eq{"batch_id": *filter.BatchID})
	}

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").
		From("documents").
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

	query := squirrel.Select(documentColumns...).
		From("documents").
		Where(where).
		OrderBy("created_at DESC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
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

	var documents []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		documents = append(documents, doc)
	}
	return documents, total, rows.Err()
}

func (r *PgDocumentRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from models.DocumentStatus, mutate func(*models.Document)) (*models.Document, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	doc, err := r.getOne(ctx, tx, squirrel.Eq{"id": id}, true)
	if err != nil {
		return nil, err
	}
	if doc.Status != from {
		return nil, fmt.Errorf("document %s is %s, expected %s: %w", id, doc.Status, from, ErrConflict)
	}

	mutate(doc)
	doc.UpdatedAt = time.Now().UTC()

	query := squirrel.Update("documents").
		Set("status", doc.Status).
		Set("extracted_fields", doc.ExtractedFields).
		Set("error_reason", doc.ErrorReason).
		Set("progress", doc.Progress).
		Set("invoice_id", doc.InvoiceID).
		Set("updated_at", doc.UpdatedAt).
		Set("processed_at", doc.ProcessedAt).
		Set("committed_at", doc.CommittedAt).
		Where(squirrel.Eq{"id": id, "status": from}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PgDocumentRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	query := squirrel.Update("documents").
		Set("progress", progress).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := squirrel.Delete("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgDocumentRepository) CountByStatus(ctx context.Context) (map[models.DocumentStatus]int, error) {
	sql, args, err := squirrel.Select("status", "COUNT(*)").
		From("documents").
		GroupBy("status").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.DocumentStatus]int)
	for rows.Next() {
		var status models.DocumentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID, &doc.BatchID, &doc.FileName, &doc.Extension, &doc.MimeType, &doc.Size, &doc.Checksum, &doc.StorageKey, &doc.Pages,
		&doc.Status, &doc.ExtractedFields, &doc.ErrorReason, &doc.Progress, &doc.InvoiceID,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.ProcessedAt, &doc.CommittedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
