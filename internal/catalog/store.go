package catalog

import (
	"context"

	id "medvault/pkg/domain"
)

// Store resolves and enumerates the owner's items. The consent engine treats
// it as a black box; only ids, names, and categories cross the boundary.
type Store interface {
	// Resolve returns the item or sentinel.ErrNotFound.
	Resolve(ctx context.Context, itemID id.ItemID) (*Item, error)
	// List returns all items, ordered by name then id for determinism.
	List(ctx context.Context) ([]*Item, error)
	// Add registers a new item. Adding an existing id returns
	// sentinel.ErrConflict; items are immutable once created.
	Add(ctx context.Context, item *Item) error
}
