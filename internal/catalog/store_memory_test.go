package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

func TestInMemoryStoreResolve(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	item := &Item{
		ID:       id.ItemID(uuid.New()),
		Name:     "Blood panel 2026-01",
		Category: id.CategoryLab,
		Source:   id.SourceDocument,
	}
	require.NoError(t, store.Add(ctx, item))

	got, err := store.Resolve(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)

	// The returned value is a copy.
	got.Name = "mutated"
	again, err := store.Resolve(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blood panel 2026-01", again.Name)

	_, err = store.Resolve(ctx, id.ItemID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStoreAddConflict(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	item := &Item{ID: id.ItemID(uuid.New()), Name: "MRI scan", Category: id.CategoryImaging, Source: id.SourceDocument}
	require.NoError(t, store.Add(ctx, item))
	assert.ErrorIs(t, store.Add(ctx, item), sentinel.ErrConflict)
}

func TestInMemoryStoreListOrdersByName(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	names := []string{"Prescription", "Allergy list", "MRI scan"}
	for _, name := range names {
		require.NoError(t, store.Add(ctx, &Item{
			ID:       id.ItemID(uuid.New()),
			Name:     name,
			Category: id.CategoryOther,
			Source:   id.SourceProfile,
		}))
	}

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Allergy list", items[0].Name)
	assert.Equal(t, "MRI scan", items[1].Name)
	assert.Equal(t, "Prescription", items[2].Name)
}
