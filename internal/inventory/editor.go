package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/library"
	"github.com/vbonduro/shelfinv/internal/metrics"
)

// inventoryAPI is the subset of resource.Client that Editor requires.
type inventoryAPI interface {
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// Gate decides whether mutations are allowed.
type Gate interface {
	IsAuthenticated() bool
}

// Notifier shows a failure notice to the user.
type Notifier interface {
	Notify(op string, err error)
}

type NotifierFunc func(op string, err error)

func (f NotifierFunc) Notify(op string, err error) { f(op, err) }

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

// Editor runs optimistic mutations against a view's inventory. Every
// mutation is applied to the view before its request is sent; the returned
// channel yields the request's outcome once the view has been reconciled
// (success) or rolled back (failure). Responses that arrive after the view
// was reloaded, or after a newer mutation of the same row, are dropped.
type Editor struct {
	view     *library.View
	api      inventoryAPI
	gate     Gate
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	working  map[domain.ID]string
	rowGen   map[domain.ID]uint64
	lastTemp int64
	inflight sync.WaitGroup
}

// NewEditor binds an editor to view. A nil gate allows every mutation and a
// nil notifier drops notices.
func NewEditor(view *library.View, api inventoryAPI, gate Gate, notifier Notifier, logger *slog.Logger, m *metrics.Metrics) *Editor {
	return &Editor{
		view:     view,
		api:      api,
		gate:     gate,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		working:  make(map[domain.ID]string),
		rowGen:   make(map[domain.ID]uint64),
	}
}

func (e *Editor) View() *library.View { return e.view }

// Wait blocks until every in-flight request has settled.
func (e *Editor) Wait() { e.inflight.Wait() }

func (e *Editor) State(inventoryID domain.ID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.working[inventoryID]; ok {
		return Editing
	}
	return Viewing
}

// WorkingPrice returns the price being edited for a row.
func (e *Editor) WorkingPrice(inventoryID domain.ID) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.working[inventoryID]
	return w, ok
}

// Edit starts editing a row with its current price as the working value.
// Rows still carrying a temporary id cannot be edited until the server has
// assigned one.
func (e *Editor) Edit(inventoryID domain.ID) error {
	if err := e.authorize("edit"); err != nil {
		return err
	}
	if inventoryID < 0 {
		return ErrRowPending
	}
	item, _, ok := e.find(inventoryID)
	if !ok {
		return ErrUnknownRow
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.working[inventoryID] = formatPrice(item.Price)
	return nil
}

func (e *Editor) SetWorkingPrice(inventoryID domain.ID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.working[inventoryID]; !ok {
		return ErrNotEditing
	}
	e.working[inventoryID] = text
	return nil
}

// Cancel discards the working value. It never sends a request.
func (e *Editor) Cancel(inventoryID domain.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.working, inventoryID)
}

// Save validates the working price, writes it to the view and sends a PATCH.
// An invalid price leaves the row in editing without a request. Otherwise the
// row returns to viewing immediately; a failed request restores the previous
// price.
func (e *Editor) Save(ctx context.Context, inventoryID domain.ID) (<-chan error, error) {
	if err := e.authorize("save"); err != nil {
		return nil, err
	}
	if inventoryID < 0 {
		return nil, ErrRowPending
	}

	e.mu.Lock()
	text, editing := e.working[inventoryID]
	e.mu.Unlock()
	if !editing {
		return nil, ErrNotEditing
	}

	price, err := parsePrice(text)
	if err != nil {
		e.metrics.Mutation("save", "invalid")
		return nil, invalid("price", err)
	}

	gen := e.view.Generation()
	var prev float64
	applied := e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
		for i := range items {
			if items[i].ID == inventoryID {
				prev = items[i].Price
				items[i].Price = price
				return items, true
			}
		}
		return nil, false
	})

	e.mu.Lock()
	delete(e.working, inventoryID)
	e.mu.Unlock()
	if !applied {
		return nil, ErrUnknownRow
	}
	rowGen := e.bump(inventoryID)

	e.logger.Info("saving price", "inventory_id", inventoryID, "price", price, "previous", prev)
	return e.run(ctx, "save", func(ctx context.Context) error {
		var updated domain.InventoryItem
		if err := e.api.Patch(ctx, itemPath(inventoryID), map[string]float64{"price": price}, &updated); err != nil {
			return err
		}
		if updated.ID == inventoryID && e.isCurrent(inventoryID, rowGen) {
			e.replace(gen, inventoryID, updated)
		}
		return nil
	}, func() bool {
		if !e.isCurrent(inventoryID, rowGen) {
			return false
		}
		return e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
			for i := range items {
				if items[i].ID == inventoryID && items[i].Price == price {
					items[i].Price = prev
					return items, true
				}
			}
			return nil, false
		})
	}), nil
}

// Delete removes a row after confirmation and sends a DELETE. Declining
// returns ErrNotConfirmed and changes nothing. A failed request puts the row
// back where it was.
func (e *Editor) Delete(ctx context.Context, inventoryID domain.ID, confirm Confirmer) (<-chan error, error) {
	if err := e.authorize("delete"); err != nil {
		return nil, err
	}
	if inventoryID < 0 {
		return nil, ErrRowPending
	}
	if _, _, ok := e.find(inventoryID); !ok {
		return nil, ErrUnknownRow
	}
	if confirm == nil || !confirm.Confirm(e.deletePrompt(inventoryID)) {
		return nil, ErrNotConfirmed
	}

	gen := e.view.Generation()
	var removed domain.InventoryItem
	index := -1
	applied := e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
		for i := range items {
			if items[i].ID == inventoryID {
				removed, index = items[i], i
				return append(items[:i], items[i+1:]...), true
			}
		}
		return nil, false
	})
	if !applied {
		return nil, ErrUnknownRow
	}

	e.mu.Lock()
	delete(e.working, inventoryID)
	e.mu.Unlock()
	rowGen := e.bump(inventoryID)

	e.logger.Info("deleting inventory row", "inventory_id", inventoryID, "book_id", removed.BookID)
	return e.run(ctx, "delete", func(ctx context.Context) error {
		return e.api.Delete(ctx, itemPath(inventoryID))
	}, func() bool {
		if !e.isCurrent(inventoryID, rowGen) {
			return false
		}
		return e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
			for _, item := range items {
				if item.ID == inventoryID {
					return nil, false
				}
			}
			at := min(index, len(items))
			items = append(items, domain.InventoryItem{})
			copy(items[at+1:], items[at:])
			items[at] = removed
			return items, true
		})
	}), nil
}

// Add appends an optimistic row with a temporary id and POSTs it. On success
// the temporary row is replaced by the server's row; on failure it is
// removed.
func (e *Editor) Add(ctx context.Context, bookID domain.ID, priceText string) (domain.InventoryItem, <-chan error, error) {
	if err := e.authorize("add"); err != nil {
		return domain.InventoryItem{}, nil, err
	}

	storeID := e.view.StoreID()
	if storeID == 0 {
		e.metrics.Mutation("add", "invalid")
		return domain.InventoryItem{}, nil, invalid("store_id", ErrNoStore)
	}
	if bookID == 0 || strings.TrimSpace(priceText) == "" {
		e.metrics.Mutation("add", "invalid")
		return domain.InventoryItem{}, nil, invalid("book_id", ErrNoBookSelected)
	}
	price, err := parsePrice(priceText)
	if err != nil || price <= 0 {
		e.metrics.Mutation("add", "invalid")
		return domain.InventoryItem{}, nil, invalid("price", ErrInvalidPrice)
	}

	newItem := domain.NewInventoryItem{BookID: bookID, StoreID: storeID, Price: price}
	e.mu.Lock()
	e.lastTemp--
	tempID := domain.ID(e.lastTemp)
	e.mu.Unlock()
	optimistic := domain.InventoryItem{ID: tempID, BookID: bookID, StoreID: storeID, Price: price}

	gen := e.view.Generation()
	e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
		return append(items, optimistic), true
	})

	e.logger.Info("adding inventory row", "store_id", storeID, "book_id", bookID, "price", price, "temp_id", tempID)
	done := e.run(ctx, "add", func(ctx context.Context) error {
		var created domain.InventoryItem
		if err := e.api.Post(ctx, "inventory", newItem, &created); err != nil {
			return err
		}
		if created.ID <= 0 {
			return fmt.Errorf("server returned no id for new inventory row")
		}
		if !e.replace(gen, tempID, created) {
			e.logger.Debug("discarding stale add response", "temp_id", tempID, "inventory_id", created.ID)
		}
		return nil
	}, func() bool {
		return e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
			for i := range items {
				if items[i].ID == tempID {
					return append(items[:i], items[i+1:]...), true
				}
			}
			return nil, false
		})
	})
	return optimistic, done, nil
}

// run sends the request on its own goroutine. The request keeps ctx's values
// but not its cancellation: the caller may be gone by the time it settles.
func (e *Editor) run(ctx context.Context, op string, request func(context.Context) error, rollback func() bool) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer close(done)

		err := request(ctx)
		if err == nil {
			e.metrics.Mutation(op, "ok")
			done <- nil
			return
		}

		if rollback() {
			e.metrics.Mutation(op, "rolled_back")
			e.logger.Error("inventory mutation failed, rolled back", "op", op, "error", err)
		} else {
			e.metrics.Mutation(op, "stale")
			e.logger.Error("inventory mutation failed after state moved on", "op", op, "error", err)
		}
		if e.notifier != nil {
			e.notifier.Notify(op, err)
		}
		done <- fmt.Errorf("failed to %s inventory: %w", op, err)
	}()
	return done
}

func (e *Editor) authorize(op string) error {
	if e.gate != nil && !e.gate.IsAuthenticated() {
		e.metrics.Mutation(op, "unauthenticated")
		return ErrUnauthenticated
	}
	return nil
}

func (e *Editor) find(inventoryID domain.ID) (domain.InventoryItem, int, bool) {
	for i, item := range e.view.Inventory() {
		if item.ID == inventoryID {
			return item, i, true
		}
	}
	return domain.InventoryItem{}, -1, false
}

// replace swaps the row with id for item if the view has not been reloaded.
func (e *Editor) replace(gen uint64, id domain.ID, item domain.InventoryItem) bool {
	return e.view.UpdateInventoryIf(gen, func(items []domain.InventoryItem) ([]domain.InventoryItem, bool) {
		for i := range items {
			if items[i].ID == id {
				items[i] = item
				return items, true
			}
		}
		return nil, false
	})
}

func (e *Editor) bump(inventoryID domain.ID) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rowGen[inventoryID]++
	return e.rowGen[inventoryID]
}

func (e *Editor) isCurrent(inventoryID domain.ID, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rowGen[inventoryID] == gen
}

func (e *Editor) deletePrompt(inventoryID domain.ID) string {
	name := "this book"
	if item, _, ok := e.find(inventoryID); ok {
		for _, b := range e.view.Books() {
			if b.ID == item.BookID {
				name = b.Name
				break
			}
		}
	}
	return fmt.Sprintf("Are you sure you want to remove %q from this store?", name)
}

func itemPath(id domain.ID) string {
	return "inventory/" + id.String()
}

func parsePrice(text string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0, ErrInvalidPrice
	}
	return p, nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
