package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Sentinel labels substituted for foreign keys that do not resolve.
const (
	UnknownAuthor = "Unknown Author"
	UnknownStore  = "Unknown Store"
)

// ID is an integer-like identifier. Collection servers are inconsistent
// about quoting ids, so it decodes from both 5 and "5".
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", data, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a path or query value into an ID.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(n), nil
}

type Book struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	AuthorID  ID     `json:"author_id"`
	PageCount int    `json:"page_count"`
}

type Author struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a Author) Name() string {
	return a.FirstName + " " + a.LastName
}

type Store struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type InventoryItem struct {
	ID      ID      `json:"id"`
	BookID  ID      `json:"book_id"`
	StoreID ID      `json:"store_id"`
	Price   float64 `json:"price"`
}

// NewInventoryItem is the body sent when creating an inventory row; the
// server assigns the id.
type NewInventoryItem struct {
	BookID  ID      `json:"book_id"`
	StoreID ID      `json:"store_id"`
	Price   float64 `json:"price"`
}

// User is a row of the users collection. Password is only ever read for the
// credential check and is dropped before a user is stored or returned.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Session is the persisted signed-in user.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreBook is a book carried by a store, joined with its inventory row and
// author name.
type StoreBook struct {
	Book
	Price       *float64 `json:"price"`
	InventoryID *ID      `json:"inventory_id"`
	AuthorName  string   `json:"author_name"`
}

// StoreOffer is one store's price for a book.
type StoreOffer struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// BookListing is a book with every store that carries it.
type BookListing struct {
	Title  string       `json:"title"`
	Author string       `json:"author"`
	Stores []StoreOffer `json:"stores"`
}
