package library

import (
	"strconv"
	"strings"

	"github.com/vbonduro/shelfinv/internal/domain"
)

// Snapshot is one load of the four collections.
type Snapshot struct {
	Books     []domain.Book
	Authors   []domain.Author
	Stores    []domain.Store
	Inventory []domain.InventoryItem
}

// AuthorMap indexes authors by id. Later duplicates win.
func AuthorMap(authors []domain.Author) map[domain.ID]domain.Author {
	m := make(map[domain.ID]domain.Author, len(authors))
	for _, a := range authors {
		m[a.ID] = a
	}
	return m
}

// StoreMap indexes stores by id. Later duplicates win.
func StoreMap(stores []domain.Store) map[domain.ID]domain.Store {
	m := make(map[domain.ID]domain.Store, len(stores))
	for _, s := range stores {
		m[s.ID] = s
	}
	return m
}

func authorName(authors map[domain.ID]domain.Author, id domain.ID) string {
	if a, ok := authors[id]; ok {
		return a.Name()
	}
	return domain.UnknownAuthor
}

func storeName(stores map[domain.ID]domain.Store, id domain.ID) string {
	if s, ok := stores[id]; ok {
		return s.Name
	}
	return domain.UnknownStore
}

// StoreBooks joins the books carried by storeID with their inventory row and
// author name, then applies search. storeID 0 means every store: all books
// are returned with author names and no inventory annotation. A storeID that
// is not a loaded store yields an empty result.
func StoreBooks(snap Snapshot, authors map[domain.ID]domain.Author, stores map[domain.ID]domain.Store, storeID domain.ID, search string) []domain.StoreBook {
	rows := make([]domain.StoreBook, 0)

	if storeID == 0 {
		for _, b := range snap.Books {
			rows = append(rows, domain.StoreBook{Book: b, AuthorName: authorName(authors, b.AuthorID)})
		}
		return filterRows(rows, search)
	}

	if _, ok := stores[storeID]; !ok {
		return rows
	}

	// First row per book wins when the (book, store) convention is broken.
	carried := make(map[domain.ID]domain.InventoryItem)
	for _, item := range snap.Inventory {
		if item.StoreID != storeID {
			continue
		}
		if _, seen := carried[item.BookID]; !seen {
			carried[item.BookID] = item
		}
	}

	for _, b := range snap.Books {
		item, ok := carried[b.ID]
		if !ok {
			continue
		}
		price, invID := item.Price, item.ID
		rows = append(rows, domain.StoreBook{
			Book:        b,
			Price:       &price,
			InventoryID: &invID,
			AuthorName:  authorName(authors, b.AuthorID),
		})
	}
	return filterRows(rows, search)
}

func filterRows(rows []domain.StoreBook, search string) []domain.StoreBook {
	if strings.TrimSpace(search) == "" {
		return rows
	}
	needle := strings.ToLower(search)
	out := make([]domain.StoreBook, 0, len(rows))
	for _, r := range rows {
		if matches(r, needle) {
			out = append(out, r)
		}
	}
	return out
}

// matches reports whether any field of r, stringified, contains needle
// case-insensitively. needle must already be lower case.
func matches(r domain.StoreBook, needle string) bool {
	fields := []string{
		r.ID.String(),
		r.Name,
		r.AuthorID.String(),
		strconv.Itoa(r.PageCount),
		r.AuthorName,
	}
	if r.Price != nil {
		fields = append(fields, strconv.FormatFloat(*r.Price, 'f', -1, 64))
	}
	if r.InventoryID != nil {
		fields = append(fields, r.InventoryID.String())
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// BooksWithStores lists every book with the name and price of each store
// carrying it, in inventory order.
func BooksWithStores(snap Snapshot, authors map[domain.ID]domain.Author, stores map[domain.ID]domain.Store) []domain.BookListing {
	byBook := make(map[domain.ID][]domain.StoreOffer)
	for _, item := range snap.Inventory {
		byBook[item.BookID] = append(byBook[item.BookID], domain.StoreOffer{
			Name:  storeName(stores, item.StoreID),
			Price: item.Price,
		})
	}

	out := make([]domain.BookListing, 0, len(snap.Books))
	for _, b := range snap.Books {
		offers := byBook[b.ID]
		if offers == nil {
			offers = []domain.StoreOffer{}
		}
		out = append(out, domain.BookListing{
			Title:  b.Name,
			Author: authorName(authors, b.AuthorID),
			Stores: offers,
		})
	}
	return out
}

// AvailableBooks returns up to limit books not carried by storeID whose name
// contains query, plus the number of books not carried before the query is
// applied.
func AvailableBooks(snap Snapshot, storeID domain.ID, query string, limit int) ([]domain.Book, int) {
	carried := make(map[domain.ID]bool)
	for _, item := range snap.Inventory {
		if item.StoreID == storeID {
			carried[item.BookID] = true
		}
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	total := 0
	out := make([]domain.Book, 0)
	for _, b := range snap.Books {
		if carried[b.ID] {
			continue
		}
		total++
		if needle != "" && !strings.Contains(strings.ToLower(b.Name), needle) {
			continue
		}
		if limit <= 0 || len(out) < limit {
			out = append(out, b)
		}
	}
	return out, total
}
