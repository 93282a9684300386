package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"docflow/internal/models"
	"docflow/internal/repository"
	"docflow/pkg/config"
	"docflow/pkg/logger"
	"docflow/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeedClient is one entry of the client seed file.
type SeedClient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

var defaultClients = []SeedClient{
	{Name: "Johnson & Partners LLP", Email: "billing@johnsonpartners.com"},
	{Name: "Smith Collections Agency", Email: "accounts@smithcollections.com"},
	{Name: "Adams Credit Recovery", Email: "finance@adamscredit.com"},
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	if err := postgres.Migrate(&cfg.Database, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	clients, err := loadClients(os.Getenv("SEED_CLIENTS_FILE"))
	if err != nil {
		appLogger.Fatal("Failed to load seed clients", zap.Error(err))
	}

	appLogger.Info("Starting database seeding...", zap.Int("clients", len(clients)))

	repos := repository.NewStore(db, appLogger).Repositories()
	created, err := seedClients(ctx, repos.Clients, clients, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to seed clients", zap.Error(err))
	}

	appLogger.Info("Database seeding completed successfully!",
		zap.Int("created", created),
		zap.Int("skipped", len(clients)-created),
	)
}

// loadClients reads a JSON array of clients, or returns the built-in
// directory when path is empty.
func loadClients(path string) ([]SeedClient, error) {
	if path == "" {
		return defaultClients, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var clients []SeedClient
	if err := json.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, c := range clients {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
			return nil, fmt.Errorf("client %d: name and email are required", i+1)
		}
	}
	return clients, nil
}

// seedClients inserts clients whose email is not taken yet. Ids derive
// from the email so reruns are stable.
func seedClients(ctx context.Context, repo repository.ClientRepository, clients []SeedClient, appLogger *zap.Logger) (int, error) {
	created := 0
	for _, c := range clients {
		email := strings.ToLower(strings.TrimSpace(c.Email))
		client := &models.Client{
			ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)),
			Name:      strings.TrimSpace(c.Name),
			Email:     email,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.Create(ctx, client); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				appLogger.Info("Client already exists, skipping", zap.String("email", email))
				continue
			}
			return created, fmt.Errorf("create client %s: %w", email, err)
		}
		appLogger.Info("Client created", zap.String("id", client.ID.String()), zap.String("name", client.Name))
		created++
	}
	return created, nil
}
