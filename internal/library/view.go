package library

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/vbonduro/shelfinv/internal/domain"
)

// View is the loaded state for one store filter: the four collections, the
// lookup maps and the derived views. Derived views are recomputed on read
// whenever a collection has changed since they were last built.
//
// Slices and maps returned by View are shared with its cache and must not be
// modified; use UpdateInventory to change inventory.
type View struct {
	loader  *Loader
	storeID domain.ID
	search  string

	mu         sync.RWMutex
	snap       Snapshot
	version    uint64
	generation uint64
	reloadSeq  uint64
	loading    bool
	loaded     bool
	cache      derived
}

var errNoLoader = errors.New("view has no loader")

type derived struct {
	version    uint64
	built      bool
	authorMap  map[domain.ID]domain.Author
	storeMap   map[domain.ID]domain.Store
	listings   []domain.BookListing
	search     string
	storeBooks []domain.StoreBook
}

// NewView returns an unloaded view bound to loader. Call Reload to fill it.
func NewView(loader *Loader, storeID domain.ID, search string) *View {
	return &View{loader: loader, storeID: storeID, search: search}
}

// NewViewFromSnapshot returns a loaded view over snap with no loader.
func NewViewFromSnapshot(storeID domain.ID, search string, snap Snapshot) *View {
	v := &View{storeID: storeID, search: search, loaded: true}
	v.commit(snap)
	return v
}

func (v *View) StoreID() domain.ID { return v.storeID }

func (v *View) SearchTerm() string { return v.search }

func (v *View) Loading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

func (v *View) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

// Generation changes every time a reload commits new data. Mutations compare
// it to drop responses that belong to an older load. A failed reload leaves
// it unchanged.
func (v *View) Generation() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.generation
}

// Reload fetches the four collections again. The view's state only changes
// if every fetch succeeds and no newer reload has started meanwhile.
func (v *View) Reload(ctx context.Context) error {
	if v.loader == nil {
		return errNoLoader
	}

	v.mu.Lock()
	v.reloadSeq++
	seq := v.reloadSeq
	v.loading = true
	v.mu.Unlock()

	snap, err := v.loader.fetch(ctx, v.storeID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.reloadSeq {
		return nil
	}
	v.loading = false
	if err != nil {
		return err
	}
	v.generation++
	v.commit(snap)
	v.loaded = true
	return nil
}

// commit replaces the collections. Callers hold mu or own v exclusively.
func (v *View) commit(snap Snapshot) {
	v.snap = snap
	v.version++
}

func (v *View) Books() []domain.Book {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap.Books
}

func (v *View) Authors() []domain.Author {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap.Authors
}

func (v *View) Stores() []domain.Store {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap.Stores
}

// Inventory returns a copy of the inventory collection.
func (v *View) Inventory() []domain.InventoryItem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.snap.Inventory)
}

// SetInventory replaces the inventory collection.
func (v *View) SetInventory(items []domain.InventoryItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Inventory = slices.Clone(items)
	v.version++
}

// UpdateInventory applies fn to a copy of the inventory collection and stores
// the result.
func (v *View) UpdateInventory(fn func([]domain.InventoryItem) []domain.InventoryItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Inventory = fn(slices.Clone(v.snap.Inventory))
	v.version++
}

// UpdateInventoryIf is UpdateInventory guarded by a generation: it does
// nothing and returns false if a reload has started since gen was read.
// fn may also decline by returning ok=false.
func (v *View) UpdateInventoryIf(gen uint64, fn func([]domain.InventoryItem) ([]domain.InventoryItem, bool)) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return false
	}
	next, ok := fn(slices.Clone(v.snap.Inventory))
	if !ok {
		return false
	}
	v.snap.Inventory = next
	v.version++
	return true
}

// Snapshot returns the current collections. The inventory slice is a copy.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	snap := v.snap
	snap.Inventory = slices.Clone(v.snap.Inventory)
	return snap
}

func (v *View) AuthorMap() map[domain.ID]domain.Author {
	return v.derive(nil).authorMap
}

func (v *View) StoreMap() map[domain.ID]domain.Store {
	return v.derive(nil).storeMap
}

// CurrentStore returns the store the view is filtered on, or nil when there
// is no filter or the store is not loaded.
func (v *View) CurrentStore() *domain.Store {
	if v.storeID == 0 {
		return nil
	}
	s, ok := v.StoreMap()[v.storeID]
	if !ok {
		return nil
	}
	return &s
}

// StoreBooks returns the store's books filtered by the view's search term.
func (v *View) StoreBooks() []domain.StoreBook {
	return v.StoreBooksMatching(v.search)
}

// StoreBooksMatching is StoreBooks with a different search term.
func (v *View) StoreBooksMatching(search string) []domain.StoreBook {
	return v.derive(&search).storeBooks
}

func (v *View) BooksWithStores() []domain.BookListing {
	return v.derive(nil).listings
}

// AvailableBooks returns books the store does not carry yet; see the package
// function of the same name.
func (v *View) AvailableBooks(query string, limit int) ([]domain.Book, int) {
	return AvailableBooks(v.Snapshot(), v.storeID, query, limit)
}

// derive returns the cache, rebuilding whatever is stale. A nil search leaves
// the cached storeBooks alone unless the collections changed.
func (v *View) derive(search *string) derived {
	v.mu.RLock()
	c := v.cache
	fresh := c.built && c.version == v.version && (search == nil || c.search == *search)
	v.mu.RUnlock()
	if fresh {
		return c
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.cache.built || v.cache.version != v.version {
		term := v.search
		if search != nil {
			term = *search
		}
		authors := AuthorMap(v.snap.Authors)
		stores := StoreMap(v.snap.Stores)
		v.cache = derived{
			version:    v.version,
			built:      true,
			authorMap:  authors,
			storeMap:   stores,
			listings:   BooksWithStores(v.snap, authors, stores),
			search:     term,
			storeBooks: StoreBooks(v.snap, authors, stores, v.storeID, term),
		}
	} else if search != nil && v.cache.search != *search {
		v.cache.search = *search
		v.cache.storeBooks = StoreBooks(v.snap, v.cache.authorMap, v.cache.storeMap, v.storeID, *search)
	}
	return v.cache
}
