package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is read-only to the invoicing pipeline.
type Client struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}
