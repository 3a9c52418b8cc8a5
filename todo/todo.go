// Package todo holds the protected domain model: to-do items owned by the
// authenticated principal that created them, backed by an append-only store.
package todo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Item is a single to-do entry. Ownership is subject-identifier equality:
// an item is visible only to the principal whose subject matches Owner.
type Item struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the backing collection for items. Append is the only mutation;
// items are never updated or deleted. Implementations must tolerate
// concurrent readers and writers, and ListByOwner must return a consistent
// snapshot taken at the time of the call.
type Store interface {
	Append(ctx context.Context, item Item) error
	ListByOwner(ctx context.Context, owner string) ([]Item, error)
}
