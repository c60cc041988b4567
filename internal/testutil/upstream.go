// Package testutil provides an in-memory collection server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vbonduro/shelfinv/internal/domain"
)

// Upstream imitates the collection server: list endpoints for every
// collection, store_id filtering on inventory, and create/patch/delete on
// inventory rows.
type Upstream struct {
	Server *httptest.Server

	mu        sync.Mutex
	books     []domain.Book
	authors   []domain.Author
	stores    []domain.Store
	inventory []domain.InventoryItem
	users     []domain.User
	failures  map[string]int
	gate      chan struct{}
	requests  []string
}

// Fixture is the initial content of an Upstream.
type Fixture struct {
	Books     []domain.Book
	Authors   []domain.Author
	Stores    []domain.Store
	Inventory []domain.InventoryItem
	Users     []domain.User
}

// DefaultFixture is a small chain with two stores.
func DefaultFixture() Fixture {
	return Fixture{
		Books: []domain.Book{
			{ID: 1, Name: "The Go Programming Language", AuthorID: 1, PageCount: 380},
			{ID: 2, Name: "Dune", AuthorID: 2, PageCount: 412},
			{ID: 5, Name: "Concurrency in Go", AuthorID: 3, PageCount: 238},
		},
		Authors: []domain.Author{
			{ID: 1, FirstName: "Alan", LastName: "Donovan"},
			{ID: 2, FirstName: "Frank", LastName: "Herbert"},
			{ID: 3, FirstName: "Katherine", LastName: "Cox-Buday"},
		},
		Stores: []domain.Store{
			{ID: 1, Name: "Downtown"},
			{ID: 2, Name: "Uptown"},
		},
		Inventory: []domain.InventoryItem{
			{ID: 7, BookID: 1, StoreID: 1, Price: 10},
			{ID: 8, BookID: 2, StoreID: 1, Price: 15},
			{ID: 9, BookID: 2, StoreID: 2, Price: 14},
		},
		Users: []domain.User{
			{ID: 1, Username: "admin", Password: "secret", Name: "Admin", Role: "manager"},
		},
	}
}

func NewUpstream(t *testing.T, f Fixture) *Upstream {
	t.Helper()
	u := &Upstream{
		books:     f.Books,
		authors:   f.Authors,
		stores:    f.Stores,
		inventory: f.Inventory,
		users:     f.Users,
		failures:  make(map[string]int),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Server.Close)
	return u
}

func (u *Upstream) URL() string { return u.Server.URL }

// Fail makes every request with method to resource answer status.
// A zero status clears the failure.
func (u *Upstream) Fail(method, resource string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if status == 0 {
		delete(u.failures, method+" "+resource)
		return
	}
	u.failures[method+" "+resource] = status
}

// Hold blocks mutating requests until the returned release func is called.
func (u *Upstream) Hold() (release func()) {
	gate := make(chan struct{})
	u.mu.Lock()
	u.gate = gate
	u.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			u.mu.Lock()
			u.gate = nil
			u.mu.Unlock()
			close(gate)
		})
	}
}

func (u *Upstream) Inventory() []domain.InventoryItem {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.InventoryItem(nil), u.inventory...)
}

func (u *Upstream) Requests() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.requests...)
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	resource := parts[0]

	u.mu.Lock()
	u.requests = append(u.requests, r.Method+" "+r.URL.RequestURI())
	status, failing := u.failures[r.Method+" "+resource]
	gate := u.gate
	u.mu.Unlock()

	if r.Method != http.MethodGet && gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if failing {
		w.WriteHeader(status)
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		u.list(w, r, resource)
	case resource == "inventory" && r.Method == http.MethodPost && len(parts) == 1:
		u.create(w, r)
	case resource == "inventory" && r.Method == http.MethodPatch && len(parts) == 2:
		u.patch(w, r, parts[1])
	case resource == "inventory" && r.Method == http.MethodDelete && len(parts) == 2:
		u.remove(w, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *Upstream) list(w http.ResponseWriter, r *http.Request, resource string) {
	switch resource {
	case "books":
		writeJSON(w, http.StatusOK, u.books)
	case "authors":
		writeJSON(w, http.StatusOK, u.authors)
	case "stores":
		writeJSON(w, http.StatusOK, u.stores)
	case "users":
		writeJSON(w, http.StatusOK, u.users)
	case "inventory":
		items := make([]domain.InventoryItem, 0, len(u.inventory))
		storeID := r.URL.Query().Get("store_id")
		for _, item := range u.inventory {
			if storeID == "" || item.StoreID.String() == storeID {
				items = append(items, item)
			}
		}
		writeJSON(w, http.StatusOK, items)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *Upstream) create(w http.ResponseWriter, r *http.Request) {
	var in domain.NewInventoryItem
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var next domain.ID
	for _, item := range u.inventory {
		if item.ID > next {
			next = item.ID
		}
	}
	item := domain.InventoryItem{ID: next + 1, BookID: in.BookID, StoreID: in.StoreID, Price: in.Price}
	u.inventory = append(u.inventory, item)
	writeJSON(w, http.StatusCreated, item)
}

func (u *Upstream) patch(w http.ResponseWriter, r *http.Request, rawID string) {
	var body struct {
		Price *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for i, item := range u.inventory {
		if item.ID.String() == rawID {
			if body.Price != nil {
				u.inventory[i].Price = *body.Price
			}
			writeJSON(w, http.StatusOK, u.inventory[i])
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (u *Upstream) remove(w http.ResponseWriter, rawID string) {
	for i, item := range u.inventory {
		if item.ID.String() == rawID {
			u.inventory = append(u.inventory[:i], u.inventory[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
