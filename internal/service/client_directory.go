package service

import (
	"context"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ClientDirectory is a read-through view of the client table. Lookups by
// id are cached with a TTL; listings always hit the store and warm the cache.
type ClientDirectory struct {
	clients repository.ClientRepository
	cache   *expirable.LRU[uuid.UUID, *models.Client]
	logger  *zap.Logger
}

func NewClientDirectory(clients repository.ClientRepository, size int, ttl time.Duration, logger *zap.Logger) *ClientDirectory {
	return &ClientDirectory{
		clients: clients,
		cache:   expirable.NewLRU[uuid.UUID, *models.Client](size, nil, ttl),
		logger:  logger,
	}
}

func (d *ClientDirectory) List(ctx context.Context) ([]*models.Client, error) {
	clients, err := d.clients.List(ctx)
	if err != nil {
		return nil, fromRepo(err, "clients")
	}
	for _, c := range clients {
		d.cache.Add(c.ID, c)
	}
	return clients, nil
}

func (d *ClientDirectory) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	if c, ok := d.cache.Get(id); ok {
		clientCacheHits.Inc()
		return c, nil
	}
	clientCacheMisses.Inc()

	c, err := d.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "client")
	}
	d.cache.Add(id, c)
	return c, nil
}
