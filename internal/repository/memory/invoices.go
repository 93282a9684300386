package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
)

type InvoiceRepository struct {
	v *view
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	return r.v.do(ctx, func(s *state) error {
		if _, ok := s.invoices[inv.ID]; ok {
			return fmt.Errorf("invoice %s: %w", inv.ID, repository.ErrConflict)
		}
		if numberTaken(s, inv.Number, inv.ID) {
			return fmt.Errorf("invoice number %q: %w", inv.Number, repository.ErrConflict)
		}
		stored := inv.Clone()
		stored.ClientName = ""
		s.invoices[inv.ID] = stored
		return nil
	})
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var out *models.Invoice
	err := r.v.do(ctx, func(s *state) error {
		inv, ok := s.invoices[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = withClientName(s, inv)
		return nil
	})
	return out, err
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *models.Invoice, from models.InvoiceStatus) error {
	return r.v.do(ctx, func(s *state) error {
		if err := checkInvoiceStatus(s, inv.ID, from); err != nil {
			return err
		}
		if numberTaken(s, inv.Number, inv.ID) {
			return fmt.Errorf("invoice number %q: %w", inv.Number, repository.ErrConflict)
		}
		stored := inv.Clone()
		stored.ClientName = ""
		s.invoices[inv.ID] = stored
		return nil
	})
}

func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID, from models.InvoiceStatus) error {
	return r.v.do(ctx, func(s *state) error {
		if err := checkInvoiceStatus(s, id, from); err != nil {
			return err
		}
		delete(s.invoices, id)
		for _, doc := range s.documents {
			if doc.InvoiceID != nil && *doc.InvoiceID == id {
				doc.InvoiceID = nil
			}
		}
		return nil
	})
}

func (r *InvoiceRepository) List(ctx context.Context, filter repository.InvoiceFilter) ([]*models.Invoice, int, error) {
	var (
		page  []*models.Invoice
		total int
	)
	err := r.v.do(ctx, func(s *state) error {
		needle := strings.ToLower(filter.Search)
		var matched []*models.Invoice
		for _, stored := range s.invoices {
			inv := withClientName(s, stored)
			if filter.Status != "" && inv.EffectiveStatus(filter.Today) != filter.Status {
				continue
			}
			if needle != "" && !matchesInvoice(inv, needle) {
				continue
			}
			matched = append(matched, inv)
		}
		sort.Slice(matched, func(i, j int) bool {
			return newerFirst(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
		})

		total = len(matched)
		page = window(matched, filter.Offset, filter.Limit)
		return nil
	})
	return page, total, err
}

func (r *InvoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.v.do(ctx, func(s *state) error {
		exists = numberTaken(s, number, uuid.Nil)
		return nil
	})
	return exists, err
}

func checkInvoiceStatus(s *state, id uuid.UUID, from models.InvoiceStatus) error {
	inv, ok := s.invoices[id]
	if !ok {
		return repository.ErrNotFound
	}
	if inv.Status != from {
		return fmt.Errorf("invoice %s is %s, expected %s: %w", id, inv.Status, from, repository.ErrStatusChanged)
	}
	return nil
}

func matchesInvoice(inv *models.Invoice, needle string) bool {
	for _, field := range []string{inv.ID.String(), inv.Number, inv.ClientName, inv.Matter} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func numberTaken(s *state, number string, except uuid.UUID) bool {
	for id, inv := range s.invoices {
		if id != except && inv.Number == number {
			return true
		}
	}
	return false
}

func withClientName(s *state, inv *models.Invoice) *models.Invoice {
	out := inv.Clone()
	if inv.ClientID != nil {
		if client, ok := s.clients[*inv.ClientID]; ok {
			out.ClientName = client.Name
		}
	}
	return out
}
