package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfinv/internal/domain"
)

func TestViewDerivedViewsFollowInventoryWrites(t *testing.T) {
	v := NewViewFromSnapshot(1, "", testSnapshot())
	require.Len(t, v.StoreBooks(), 2)

	v.UpdateInventory(func(items []domain.InventoryItem) []domain.InventoryItem {
		return append(items, domain.InventoryItem{ID: 20, BookID: 3, StoreID: 1, Price: 3})
	})

	rows := v.StoreBooks()
	require.Len(t, rows, 3)
	assert.Equal(t, domain.ID(3), rows[2].ID)
	assert.Len(t, v.BooksWithStores()[2].Stores, 2)

	v.SetInventory(nil)
	assert.Empty(t, v.StoreBooks())
}

func TestViewSearchTerms(t *testing.T) {
	v := NewViewFromSnapshot(1, "dune", testSnapshot())

	assert.Equal(t, "dune", v.SearchTerm())
	assert.Len(t, v.StoreBooks(), 1)
	assert.Len(t, v.StoreBooksMatching("donovan"), 1)
	assert.Len(t, v.StoreBooksMatching(""), 2)
	// Lookups in between do not disturb the cached search.
	_ = v.AuthorMap()
	assert.Len(t, v.StoreBooks(), 1)
}

func TestViewInventoryIsACopy(t *testing.T) {
	v := NewViewFromSnapshot(1, "", testSnapshot())

	items := v.Inventory()
	items[0].Price = 0

	assert.InDelta(t, 39.99, v.Inventory()[0].Price, 1e-9)
}

func TestViewLookups(t *testing.T) {
	v := NewViewFromSnapshot(2, "", testSnapshot())

	assert.Equal(t, "Frank Herbert", v.AuthorMap()[2].Name())
	assert.Equal(t, "Uptown", v.StoreMap()[2].Name)
	require.NotNil(t, v.CurrentStore())
	assert.Equal(t, domain.ID(2), v.CurrentStore().ID)

	books, total := v.AvailableBooks("", 7)
	assert.Equal(t, 2, total)
	assert.Len(t, books, 2)
}

func TestViewWithoutLoaderCannotReload(t *testing.T) {
	v := NewViewFromSnapshot(1, "", testSnapshot())
	assert.Error(t, v.Reload(context.Background()))
	assert.True(t, v.Loaded())
}

func TestUpdateInventoryIfDeclined(t *testing.T) {
	v := NewViewFromSnapshot(1, "", testSnapshot())

	ok := v.UpdateInventoryIf(v.Generation(), func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
		return nil, false
	})
	assert.False(t, ok)
	assert.Len(t, v.Inventory(), 4)
}
