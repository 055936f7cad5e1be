package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

// PostgresStore persists the item catalog in the items table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Resolve(ctx context.Context, itemID id.ItemID) (*Item, error) {
	query := `
		SELECT id, name, category, source
		FROM items
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(itemID))

	var (
		item     Item
		rawID    uuid.UUID
		category string
		source   string
	)
	if err := row.Scan(&rawID, &item.Name, &category, &source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("resolve item: %w", err)
	}
	item.ID = id.ItemID(rawID)
	item.Category = id.ItemCategory(category)
	item.Source = id.ItemSource(source)
	return &item, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Item, error) {
	query := `
		SELECT id, name, category, source
		FROM items
		ORDER BY name, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var (
			item     Item
			rawID    uuid.UUID
			category string
			source   string
		)
		if err := rows.Scan(&rawID, &item.Name, &category, &source); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.ID = id.ItemID(rawID)
		item.Category = id.ItemCategory(category)
		item.Source = id.ItemSource(source)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Add(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO items (id, name, category, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(item.ID),
		item.Name,
		string(item.Category),
		string(item.Source),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
