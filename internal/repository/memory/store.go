// Package memory implements the repository interfaces in process memory.
// It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sync"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	documents map[uuid.UUID]*models.Document
	invoices  map[uuid.UUID]*models.Invoice
	clients   map[uuid.UUID]*models.Client
}

func newState() *state {
	return &state{
		documents: make(map[uuid.UUID]*models.Document),
		invoices:  make(map[uuid.UUID]*models.Invoice),
		clients:   make(map[uuid.UUID]*models.Client),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, d := range s.documents {
		c.documents[id] = d.Clone()
	}
	for id, inv := range s.invoices {
		c.invoices[id] = inv.Clone()
	}
	for id, cl := range s.clients {
		cp := *cl
		c.clients[id] = &cp
	}
	return c
}

// Store guards one state with a single mutex. Transactions run against a
// clone that replaces the live state only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Repositories() repository.Repositories {
	return s.bind(nil)
}

// WithinTx holds the store lock for the duration of fn. fn must only use the
// repositories it is given.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(ctx, s.bind(draft)); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *Store) bind(tx *state) repository.Repositories {
	v := &view{store: s, tx: tx}
	return repository.Repositories{
		Documents: &DocumentRepository{v},
		Invoices:  &InvoiceRepository{v},
		Clients:   &ClientRepository{v},
	}
}

// view runs operations either on a transaction's private state or, under
// the store lock, on the live state. Every operation validates before it
// mutates, so a failed call leaves the state untouched.
type view struct {
	store *Store
	tx    *state
}

func (v *view) do(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}
