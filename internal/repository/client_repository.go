package repository

import (
	"context"
	"errors"
	"fmt"

	"docflow/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PgClientRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewClientRepository(db DBTX, logger *zap.Logger) *PgClientRepository {
	return &PgClientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PgClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := squirrel.Insert("clients").
		Columns("id", "name", "email", "created_at").
		Values(client.ID, client.Name, client.Email, client.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client %q: %w", client.Email, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *PgClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	query := squirrel.Select("id", "name", "email", "created_at").
		From("clients").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var client models.Client
	err = r.db.QueryRow(ctx, sql, args...).Scan(&client.ID, &client.Name, &client.Email, &client.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *PgClientRepository) List(ctx context.Context) ([]*models.Client, error) {
	sql, args, err := squirrel.Select("id", "name", "email", "created_at").
		From("clients").
		OrderBy("name ASC", "id ASC").
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

	var clients []*models.Client
	for rows.Next() {
		var client models.Client
		if err := rows.Scan(&client.ID, &client.Name, &client.Email, &client.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, &client)
	}
	return clients, rows.Err()
}
