package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
)

type DocumentRepository struct {
	v *view
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.v.do(ctx, func(s *state) error {
		if _, ok := s.documents[doc.ID]; ok {
			return fmt.Errorf("document %s: %w", doc.ID, repository.ErrConflict)
		}
		s.documents[doc.ID] = doc.Clone()
		return nil
	})
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var out *models.Document
	err := r.v.do(ctx, func(s *state) error {
		doc, ok := s.documents[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = doc.Clone()
		return nil
	})
	return out, err
}

// GetByChecksum returns the oldest document with the given checksum.
func (r *DocumentRepository) GetByChecksum(ctx context.Context, checksum string) (*models.Document, error) {
	var out *models.Document
	err := r.v.do(ctx, func(s *state) error {
		for _, doc := range s.documents {
			if doc.Checksum != checksum {
				continue
			}
			if out == nil || doc.CreatedAt.Before(out.CreatedAt) {
				out = doc
			}
		}
		if out == nil {
			return repository.ErrNotFound
		}
		out = out.Clone()
		return nil
	})
	return out, err
}

func (r *DocumentRepository) List(ctx context.Context, filter repository.DocumentFilter) ([]*models.Document, int, error) {
	var (
		page  []*models.Document
		total int
	)
	err := r.v.do(ctx, func(s *state) error {
		needle := strings.ToLower(filter.Search)
		var matched []*models.Document
		for _, doc := range s.documents {
			if filter.Status != "" && doc.Status != filter.Status {
				continue
			}
			if filter.BatchID != nil && doc.BatchID != *filter.BatchID {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(doc.ID.String()), needle) &&
				!strings.Contains(strings.ToLower(doc.FileName), needle) {
				continue
			}
			matched = append(matched, doc)
		}
		sort.Slice(matched, func(i, j int) bool {
			return newerFirst(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
		})

		total = len(matched)
		for _, doc := range window(matched, filter.Offset, filter.Limit) {
			page = append(page, doc.Clone())
		}
		return nil
	})
	return page, total, err
}

func (r *DocumentRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from models.DocumentStatus, mutate func(*models.Document)) (*models.Document, error) {
	var out *models.Document
	err := r.v.do(ctx, func(s *state) error {
		doc, ok := s.documents[id]
		if !ok {
			return repository.ErrNotFound
		}
		if doc.Status != from {
			return fmt.Errorf("document %s is %s, expected %s: %w", id, doc.Status, from, repository.ErrConflict)
		}
		next := doc.Clone()
		mutate(next)
		next.UpdatedAt = time.Now().UTC()
		s.documents[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}

func (r *DocumentRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return r.v.do(ctx, func(s *state) error {
		doc, ok := s.documents[id]
		if !ok {
			return repository.ErrNotFound
		}
		next := doc.Clone()
		next.Progress = progress
		next.UpdatedAt = time.Now().UTC()
		s.documents[id] = next
		return nil
	})
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.v.do(ctx, func(s *state) error {
		if _, ok := s.documents[id]; !ok {
			return repository.ErrNotFound
		}
		delete(s.documents, id)
		for _, inv := range s.invoices {
			if inv.SourceDocumentID != nil && *inv.SourceDocumentID == id {
				inv.SourceDocumentID = nil
			}
		}
		return nil
	})
}

func (r *DocumentRepository) CountByStatus(ctx context.Context) (map[models.DocumentStatus]int, error) {
	counts := make(map[models.DocumentStatus]int)
	err := r.v.do(ctx, func(s *state) error {
		for _, doc := range s.documents {
			counts[doc.Status]++
		}
		return nil
	})
	return counts, err
}

// newerFirst orders by creation time descending, ties by id ascending.
func newerFirst(aTime time.Time, aID uuid.UUID, bTime time.Time, bID uuid.UUID) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID.String() < bID.String()
}

func window[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		return items
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
