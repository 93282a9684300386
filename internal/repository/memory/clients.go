package memory

import (
	"context"
	"fmt"
	"sort"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
)

type ClientRepository struct {
	v *view
}

func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	return r.v.do(ctx, func(s *state) error {
		for _, existing := range s.clients {
			if existing.ID == client.ID || existing.Email == client.Email {
				return fmt.Errorf("client %q: %w", client.Email, repository.ErrConflict)
			}
		}
		cp := *client
		s.clients[client.ID] = &cp
		return nil
	})
}

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var out *models.Client
	err := r.v.do(ctx, func(s *state) error {
		client, ok := s.clients[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *client
		out = &cp
		return nil
	})
	return out, err
}

func (r *ClientRepository) List(ctx context.Context) ([]*models.Client, error) {
	var out []*models.Client
	err := r.v.do(ctx, func(s *state) error {
		for _, client := range s.clients {
			cp := *client
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}
